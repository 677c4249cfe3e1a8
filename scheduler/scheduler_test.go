package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muelltonne/muellbot/model"
)

type (
	fakeDirectory struct {
		mu          sync.Mutex
		subscribers []model.Subscriber
		listErr     error
		recordErr   error
		recorded    map[int64]time.Time
		storedKeys  map[int64]model.LocationKey
	}

	fakeResolver struct {
		mu    sync.Mutex
		keys  map[string]model.LocationKey
		err   error
		calls int
	}

	fakeCalendar struct {
		entries map[string][]model.WasteCategory
		covered bool
	}

	fakeMessenger struct {
		mu       sync.Mutex
		sent     map[int64]string
		failFor  map[int64]error
		blockFor map[int64]struct{} // hangs until the context expires
	}
)

func (d *fakeDirectory) ListSubscribers(context.Context) ([]model.Subscriber, error) {
	return d.subscribers, d.listErr
}

func (d *fakeDirectory) RecordNotified(_ context.Context, chatID int64, date time.Time) error {
	if d.recordErr != nil {
		return d.recordErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recorded == nil {
		d.recorded = make(map[int64]time.Time)
	}
	d.recorded[chatID] = date
	return nil
}

func (d *fakeDirectory) StoreLocationKey(_ context.Context, chatID int64, key model.LocationKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.storedKeys == nil {
		d.storedKeys = make(map[int64]model.LocationKey)
	}
	d.storedKeys[chatID] = key
	return nil
}

func (r *fakeResolver) Resolve(_ context.Context, addr model.Address) (model.LocationKey, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	key, ok := r.keys[addr.Canonical()]
	if !ok {
		return "", model.ErrAddressNotFound
	}
	return key, nil
}

func (c *fakeCalendar) EntriesFor(key model.LocationKey, date time.Time) []model.WasteCategory {
	return c.entries[string(key)+"/"+date.Format(time.DateOnly)]
}

func (c *fakeCalendar) Covers(time.Time) bool {
	return c.covered
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	if _, ok := m.blockFor[chatID]; ok {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[chatID]; ok {
		return err
	}
	if m.sent == nil {
		m.sent = make(map[int64]string)
	}
	m.sent[chatID] = text
	return nil
}

func newTestScheduler(t *testing.T, d *fakeDirectory, r *fakeResolver, c *fakeCalendar, m *fakeMessenger) *Scheduler {
	t.Helper()

	s, err := New(Config{
		Hour:            16,
		Minute:          0,
		Location:        time.UTC,
		Workers:         4,
		DispatchTimeout: time.Second,
	}, d, r, c, m)
	require.NoError(t, err)

	// Freeze the clock: the run happens on 2024-03-14, "tomorrow" is the
	// 15th.
	s.now = func() time.Time {
		return time.Date(2024, 3, 14, 16, 0, 0, 0, time.UTC)
	}
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRunSendsNotification(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{{
		ChatID:        100,
		Address:       model.Address{Street: "Kaiserstraße", HouseNumber: "1"},
		Notifications: true,
	}}}
	resolver := &fakeResolver{keys: map[string]model.LocationKey{"kaiserstraße,1": "z1"}}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z1/2024-03-15": {model.WastePaper, model.WasteResidual},
		},
	}
	messenger := &fakeMessenger{}

	summary := newTestScheduler(t, directory, resolver, cal, messenger).Run(context.Background())

	assert.Equal(t, 1, summary.Sent)
	require.Contains(t, messenger.sent, int64(100))
	assert.Contains(t, messenger.sent[100], "Papier")
	assert.Contains(t, messenger.sent[100], "Restmüll")
	assert.Contains(t, messenger.sent[100], "15.03.2024")

	assert.Equal(t, day(2024, 3, 14), directory.recorded[100], "last-notified must be the trigger day")
	assert.Equal(t, model.LocationKey("z1"), directory.storedKeys[100], "resolved key must be written back")
}

func TestRunSecondFiringSameDayIsDeduplicated(t *testing.T) {
	notified := day(2024, 3, 14)
	directory := &fakeDirectory{subscribers: []model.Subscriber{{
		ChatID:        100,
		Address:       model.Address{Street: "Kaiserstraße", HouseNumber: "1"},
		LocationKey:   "z1",
		Notifications: true,
		LastNotified:  &notified,
	}}}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z1/2024-03-15": {model.WastePaper},
		},
	}
	messenger := &fakeMessenger{}

	summary := newTestScheduler(t, directory, &fakeResolver{}, cal, messenger).Run(context.Background())

	assert.Equal(t, 1, summary.SkippedAlreadyNotified)
	assert.Zero(t, summary.Sent)
	assert.Empty(t, messenger.sent, "no duplicate message on a restarted trigger")
}

func TestRunIsolatesDispatchFailures(t *testing.T) {
	subscribers := []model.Subscriber{
		{ChatID: 1, LocationKey: "z1", Notifications: true},
		{ChatID: 2, LocationKey: "z1", Notifications: true},
		{ChatID: 3, LocationKey: "z1", Notifications: true},
	}
	directory := &fakeDirectory{subscribers: subscribers}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z1/2024-03-15": {model.WasteBio},
		},
	}
	messenger := &fakeMessenger{failFor: map[int64]error{2: errors.New("bot was blocked by the user")}}

	summary := newTestScheduler(t, directory, &fakeResolver{}, cal, messenger).Run(context.Background())

	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.FailedDispatch)
	assert.Contains(t, messenger.sent, int64(1))
	assert.Contains(t, messenger.sent, int64(3))

	directory.mu.Lock()
	defer directory.mu.Unlock()
	assert.NotContains(t, directory.recorded, int64(2), "failed dispatch must not be recorded as sent")
}

func TestRunDispatchTimeoutBoundsHangingSend(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{
		{ChatID: 1, LocationKey: "z1", Notifications: true},
		{ChatID: 2, LocationKey: "z1", Notifications: true},
	}}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z1/2024-03-15": {model.WasteBio},
		},
	}
	messenger := &fakeMessenger{blockFor: map[int64]struct{}{1: {}}}

	s, err := New(Config{
		Hour:            16,
		Location:        time.UTC,
		Workers:         4,
		DispatchTimeout: 50 * time.Millisecond,
	}, directory, &fakeResolver{}, cal, messenger)
	require.NoError(t, err)
	s.now = func() time.Time {
		return time.Date(2024, 3, 14, 16, 0, 0, 0, time.UTC)
	}

	start := time.Now()
	summary := s.Run(context.Background())

	assert.Less(t, time.Since(start), 5*time.Second, "a hanging chat must not stall the run")
	assert.Equal(t, 1, summary.FailedDispatch)
	assert.Equal(t, 1, summary.Sent)
	assert.Contains(t, messenger.sent, int64(2))

	directory.mu.Lock()
	defer directory.mu.Unlock()
	assert.NotContains(t, directory.recorded, int64(1), "timed-out dispatch must not be recorded as sent")
}

func TestRunEmptyAddressFailsResolveWithoutLookup(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{{
		ChatID:        100,
		Notifications: true,
	}}}
	resolver := &fakeResolver{}
	messenger := &fakeMessenger{}

	summary := newTestScheduler(t, directory, resolver, &fakeCalendar{covered: true}, messenger).Run(context.Background())

	assert.Equal(t, 1, summary.FailedResolve)
	assert.Zero(t, resolver.calls, "an empty address must not reach the geocoder")
	assert.Empty(t, messenger.sent)
}

func TestRunFailedResolve(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{{
		ChatID:        100,
		Address:       model.Address{Street: "Gibtsnichtstraße", HouseNumber: "99"},
		Notifications: true,
	}}}
	resolver := &fakeResolver{err: model.ErrAddressNotFound}
	messenger := &fakeMessenger{}

	summary := newTestScheduler(t, directory, resolver, &fakeCalendar{covered: true}, messenger).Run(context.Background())

	assert.Equal(t, 1, summary.FailedResolve)
	assert.Empty(t, messenger.sent)
	assert.Empty(t, directory.recorded, "failed resolve must not touch last-notified")
}

func TestRunSkipsEmptyAndDisabled(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{
		{ChatID: 1, LocationKey: "z1", Notifications: true},  // nothing tomorrow
		{ChatID: 2, LocationKey: "z2", Notifications: false}, // disabled
	}}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z2/2024-03-15": {model.WasteBio},
		},
	}
	messenger := &fakeMessenger{}

	summary := newTestScheduler(t, directory, &fakeResolver{}, cal, messenger).Run(context.Background())

	assert.Equal(t, 1, summary.SkippedEmpty)
	assert.Equal(t, 1, summary.SkippedDisabled)
	assert.Empty(t, messenger.sent)
}

func TestRunCachedLocationKeySkipsResolver(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{{
		ChatID:        100,
		LocationKey:   "z1",
		Notifications: true,
	}}}
	resolver := &fakeResolver{}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z1/2024-03-15": {model.WasteBio},
		},
	}

	summary := newTestScheduler(t, directory, resolver, cal, &fakeMessenger{}).Run(context.Background())

	assert.Equal(t, 1, summary.Sent)
	assert.Zero(t, resolver.calls)
}

func TestRunRecordFailure(t *testing.T) {
	directory := &fakeDirectory{
		subscribers: []model.Subscriber{{ChatID: 100, LocationKey: "z1", Notifications: true}},
		recordErr:   errors.New("data API down"),
	}
	cal := &fakeCalendar{
		covered: true,
		entries: map[string][]model.WasteCategory{
			"z1/2024-03-15": {model.WasteBio},
		},
	}
	messenger := &fakeMessenger{}

	summary := newTestScheduler(t, directory, &fakeResolver{}, cal, messenger).Run(context.Background())

	// The message went out but did not commit: better a re-send tomorrow
	// than a silent skip.
	assert.Equal(t, 1, summary.FailedRecord)
	assert.Contains(t, messenger.sent, int64(100))
}

func TestRunListFailureAbortsRun(t *testing.T) {
	directory := &fakeDirectory{listErr: errors.New("data API down")}

	summary := newTestScheduler(t, directory, &fakeResolver{}, &fakeCalendar{}, &fakeMessenger{}).Run(context.Background())

	assert.True(t, summary.Failed)
}

func TestRunCancelledContextAborts(t *testing.T) {
	directory := &fakeDirectory{subscribers: []model.Subscriber{
		{ChatID: 1, LocationKey: "z1", Notifications: true},
		{ChatID: 2, LocationKey: "z1", Notifications: true},
	}}
	messenger := &fakeMessenger{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := newTestScheduler(t, directory, &fakeResolver{}, &fakeCalendar{covered: true}, messenger).Run(ctx)

	assert.Equal(t, 2, summary.Aborted)
	assert.Empty(t, messenger.sent)
}

func TestNotificationText(t *testing.T) {
	text := NotificationText(day(2024, 3, 15), []model.WasteCategory{model.WastePaper, model.WasteResidual})

	assert.Contains(t, text, "Freitag")
	assert.Contains(t, text, "15.03.2024")
	assert.Contains(t, text, "Papier")
	assert.Contains(t, text, "Restmüll")
	assert.NotContains(t, text, "Bioabfall")
}
