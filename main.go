package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/muelltonne/muellbot/bot"
	"github.com/muelltonne/muellbot/calendar"
	"github.com/muelltonne/muellbot/config"
	"github.com/muelltonne/muellbot/geocoding"
	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/model/dataapi"
	"github.com/muelltonne/muellbot/model/sql"
	"github.com/muelltonne/muellbot/scheduler"
)

var log = logger.New("main")

func readVersionInfo() {
	var (
		Revision   = "unknown"
		LastCommit time.Time
	)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			Revision = kv.Value
		case "vcs.time":
			LastCommit, _ = time.Parse(time.RFC3339, kv.Value)
		}
	}
	log.Info().Msgf("Muellbot-%s, %v", Revision, LastCommit)
}

func main() {
	readVersionInfo()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration is invalid")
	}

	location, _ := cfg.Location()
	hour, minute, _ := cfg.NotifyAt()
	refreshHour, refreshMinute, _ := cfg.RefreshAt()

	var geocodeStore geocoding.Store
	if os.Getenv("MYSQL_HOST") != "" {
		db, err := sql.New()
		if err != nil {
			log.Fatal().Err(err).Send()
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Send()
		}
		log.Info().Msg("Geocode cache database connection established")
		geocodeStore = sql.NewGeocodingService(db)
	}

	api := dataapi.NewClient(cfg.DataAPIURL, cfg.DataAPISecret)
	geocoder := geocoding.New(cfg.GeocoderURL, geocodeStore, cfg.GeocodeTTL, cfg.GeocodeNegativeTTL)

	cal := calendar.New()
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := cal.Reload(startupCtx, api); err != nil {
		// Not fatal: the daily refresh retries, lookups return empty
		// sets until then.
		log.Warn().Err(err).Msg("Initial calendar load failed")
	}
	cancelStartup()

	b, err := bot.New(cfg.BotToken, api, geocoder, cal, location)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	log.Info().Msgf("Logged in as @%s", b.Username())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := scheduler.New(
		scheduler.Config{
			Hour:            hour,
			Minute:          minute,
			Location:        location,
			Workers:         cfg.Workers,
			DispatchTimeout: cfg.DispatchTimeout,
			RefreshCalendar: func(ctx context.Context) error {
				return cal.Reload(ctx, api)
			},
			RefreshHour:   refreshHour,
			RefreshMinute: refreshMinute,
		},
		api,
		geocoder,
		cal,
		b,
	)
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Send()
	}

	if err := b.Start(); err != nil {
		log.Fatal().Err(err).Send()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info().Msg("Shutting down")
	cancel()
	if err := sched.Shutdown(); err != nil {
		log.Err(err).Msg("Scheduler shutdown failed")
	}
	if err := b.Stop(); err != nil {
		log.Err(err).Msg("Bot shutdown failed")
	}
}
