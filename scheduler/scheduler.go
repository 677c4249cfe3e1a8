package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/xid"

	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/model"
)

var log = logger.New("scheduler")

type (
	// Directory is the single source of truth for who gets notified and
	// whether they already were today.
	Directory interface {
		ListSubscribers(ctx context.Context) ([]model.Subscriber, error)
		RecordNotified(ctx context.Context, chatID int64, date time.Time) error
		StoreLocationKey(ctx context.Context, chatID int64, key model.LocationKey) error
	}

	Resolver interface {
		Resolve(ctx context.Context, addr model.Address) (model.LocationKey, error)
	}

	Calendar interface {
		EntriesFor(key model.LocationKey, date time.Time) []model.WasteCategory
		Covers(date time.Time) bool
	}

	Messenger interface {
		SendMessage(ctx context.Context, chatID int64, text string) error
	}

	Config struct {
		Hour            int
		Minute          int
		Location        *time.Location
		Workers         int
		DispatchTimeout time.Duration

		// RefreshCalendar re-fetches the published schedule. Runs once a
		// day at RefreshHour:RefreshMinute, configured well before the
		// notification time.
		RefreshCalendar func(ctx context.Context) error
		RefreshHour     int
		RefreshMinute   int
	}

	Scheduler struct {
		cron      gocron.Scheduler
		cfg       Config
		directory Directory
		resolver  Resolver
		calendar  Calendar
		messenger Messenger

		// now is swapped out in tests.
		now func() time.Time
	}
)

func New(cfg Config, directory Directory, resolver Resolver, cal Calendar, messenger Messenger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location))
	if err != nil {
		return nil, err
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Scheduler{
		cron:      cron,
		cfg:       cfg,
		directory: directory,
		resolver:  resolver,
		calendar:  cal,
		messenger: messenger,
		now:       func() time.Time { return time.Now().In(cfg.Location) },
	}, nil
}

// Start registers the daily jobs and starts the trigger loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(gocron.NewAtTime(uint(s.cfg.Hour), uint(s.cfg.Minute), 0)),
		),
		gocron.NewTask(func() {
			s.Run(ctx)
		}),
		gocron.WithName("daily-notification"),
	)
	if err != nil {
		return err
	}

	if s.cfg.RefreshCalendar != nil {
		_, err = s.cron.NewJob(
			gocron.DailyJob(
				1,
				gocron.NewAtTimes(gocron.NewAtTime(uint(s.cfg.RefreshHour), uint(s.cfg.RefreshMinute), 0)),
			),
			gocron.NewTask(func() {
				if err := s.cfg.RefreshCalendar(ctx); err != nil {
					log.Err(err).Msg("Calendar refresh failed, keeping previous schedule")
				}
			}),
			gocron.WithName("calendar-refresh"),
		)
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Info().
		Str("notify_time", time.Date(0, 1, 1, s.cfg.Hour, s.cfg.Minute, 0, 0, time.UTC).Format("15:04")).
		Str("timezone", s.cfg.Location.String()).
		Msg("Notification scheduler started")
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}

// Run executes one notification run: one pass over all subscribers, each of
// which independently reaches exactly one terminal outcome. Re-running on
// the same day is harmless, the last-notified date makes dispatch
// idempotent per subscriber and day.
func (s *Scheduler) Run(ctx context.Context) Summary {
	runID := xid.New().String()
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	runLog := log.With().Str("run_id", runID).Logger()
	runLog.Info().
		Str("tomorrow", tomorrow.Format(time.DateOnly)).
		Msg("Notification run triggered")

	if !s.calendar.Covers(tomorrow) {
		runLog.Warn().
			Str("date", tomorrow.Format(time.DateOnly)).
			Msg("No calendar data covering tomorrow, subscribers will be skipped as empty")
	}

	subscribers, err := s.directory.ListSubscribers(ctx)
	if err != nil {
		runLog.Err(err).Msg("Listing subscribers failed, aborting run")
		return Summary{Failed: true}
	}

	var (
		summary   Summary
		summaryMu sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, s.cfg.Workers)
	)

	for _, sub := range subscribers {
		sub := sub
		wg.Add(1)
		semaphore <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := s.process(ctx, runLog, sub, today, tomorrow)

			summaryMu.Lock()
			summary.count(outcome)
			summaryMu.Unlock()
		}()
	}

	wg.Wait()

	runLog.Info().
		Int("subscribers", len(subscribers)).
		Int("sent", summary.Sent).
		Int("skipped_empty", summary.SkippedEmpty).
		Int("skipped_already_notified", summary.SkippedAlreadyNotified).
		Int("skipped_disabled", summary.SkippedDisabled).
		Int("failed_resolve", summary.FailedResolve).
		Int("failed_dispatch", summary.FailedDispatch).
		Int("failed_record", summary.FailedRecord).
		Int("aborted", summary.Aborted).
		Msg("Notification run finished")

	return summary
}
