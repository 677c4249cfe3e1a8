package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/muelltonne/muellbot/model"
)

// Outcome is the terminal state a subscriber reaches within one run.
type Outcome string

const (
	OutcomeSent                   Outcome = "sent"
	OutcomeSkippedEmpty           Outcome = "skipped_empty"
	OutcomeSkippedAlreadyNotified Outcome = "skipped_already_notified"
	OutcomeSkippedDisabled        Outcome = "skipped_disabled"
	OutcomeFailedResolve          Outcome = "failed_resolve"
	OutcomeFailedDispatch         Outcome = "failed_dispatch"
	OutcomeFailedRecord           Outcome = "failed_record"
	OutcomeAborted                Outcome = "aborted"
)

// Summary counts terminal outcomes for one run.
type Summary struct {
	Failed bool // the run itself failed before processing anyone

	Sent                   int
	SkippedEmpty           int
	SkippedAlreadyNotified int
	SkippedDisabled        int
	FailedResolve          int
	FailedDispatch         int
	FailedRecord           int
	Aborted                int
}

func (s *Summary) count(outcome Outcome) {
	switch outcome {
	case OutcomeSent:
		s.Sent++
	case OutcomeSkippedEmpty:
		s.SkippedEmpty++
	case OutcomeSkippedAlreadyNotified:
		s.SkippedAlreadyNotified++
	case OutcomeSkippedDisabled:
		s.SkippedDisabled++
	case OutcomeFailedResolve:
		s.FailedResolve++
	case OutcomeFailedDispatch:
		s.FailedDispatch++
	case OutcomeFailedRecord:
		s.FailedRecord++
	case OutcomeAborted:
		s.Aborted++
	}
}

// process takes one subscriber to a terminal outcome. Every failure is
// contained here so it cannot touch the rest of the run.
func (s *Scheduler) process(ctx context.Context, runLog zerolog.Logger, sub model.Subscriber, today, tomorrow time.Time) Outcome {
	subLog := runLog.With().Int64("chat_id", sub.ChatID).Logger()

	if ctx.Err() != nil {
		// Shutdown mid-run: whoever was not processed is picked up on
		// the next trigger, dedup keeps this safe.
		return OutcomeAborted
	}

	if !sub.Notifications {
		return OutcomeSkippedDisabled
	}

	if sub.NotifiedOn(today) {
		subLog.Debug().Msg("Already notified today")
		return OutcomeSkippedAlreadyNotified
	}

	key := sub.LocationKey
	if key == "" {
		if sub.Address.IsZero() {
			subLog.Warn().Msg("Subscriber has no usable address")
			return OutcomeFailedResolve
		}
		resolved, err := s.resolver.Resolve(ctx, sub.Address)
		if err != nil {
			subLog.Warn().Err(err).Msg("Address resolution failed")
			return OutcomeFailedResolve
		}
		key = resolved

		// Write-back is best effort, the next run resolves from cache.
		if err := s.directory.StoreLocationKey(ctx, sub.ChatID, key); err != nil {
			subLog.Err(err).Msg("Storing resolved location key failed")
		}
	}

	categories := s.calendar.EntriesFor(key, tomorrow)
	if len(categories) == 0 {
		return OutcomeSkippedEmpty
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	text := NotificationText(tomorrow, categories)
	if err := s.messenger.SendMessage(dispatchCtx, sub.ChatID, text); err != nil {
		subLog.Err(err).Msg("Dispatch failed")
		return OutcomeFailedDispatch
	}

	// The commit point: only a successful record makes the notification
	// count as sent. A crash in between re-sends tomorrow at worst, it
	// never silently skips.
	if err := s.directory.RecordNotified(ctx, sub.ChatID, today); err != nil {
		subLog.Err(err).Msg("Recording last-notified date failed")
		return OutcomeFailedRecord
	}

	subLog.Info().
		Str("location_key", string(key)).
		Int("categories", len(categories)).
		Msg("Notification sent")
	return OutcomeSent
}
