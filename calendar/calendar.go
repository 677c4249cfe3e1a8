package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/model"
)

var log = logger.New("calendar")

type (
	// Source delivers the raw schedule document, typically from the data
	// API. Implemented by model/dataapi.
	Source interface {
		FetchSchedule(ctx context.Context) (json.RawMessage, error)
	}

	// Calendar answers "which categories are collected at this location
	// on this date". Reads go against an immutable snapshot that Reload
	// swaps wholesale, so concurrent readers never see a half-loaded
	// table.
	Calendar struct {
		table atomic.Pointer[Table]
	}

	// Table is one immutable schedule snapshot.
	Table struct {
		validFrom time.Time
		validTo   time.Time
		zones     map[model.LocationKey]zone
	}

	zone struct {
		rules     []rule
		cancelled map[string]struct{}              // "2006-01-02/category"
		moved     map[string][]model.WasteCategory // replacement date → categories
	}

	rule struct {
		category model.WasteCategory
		weekday  time.Weekday
		interval int       // weeks between pickups, 1 = weekly
		anchor   time.Time // a known pickup date, fixes the phase for interval > 1
	}
)

func New() *Calendar {
	return &Calendar{}
}

// EntriesFor returns the categories collected at the given location on the
// given date. Unknown locations and uncovered dates yield an empty set,
// never an error.
func (c *Calendar) EntriesFor(key model.LocationKey, date time.Time) []model.WasteCategory {
	table := c.table.Load()
	if table == nil {
		return nil
	}
	return table.entriesFor(key, date)
}

// Covers reports whether the loaded table has data for the given date. The
// scheduler warns, but does not fail, when tomorrow falls outside.
func (c *Calendar) Covers(date time.Time) bool {
	table := c.table.Load()
	if table == nil {
		return false
	}
	day := truncate(date)
	if !table.validFrom.IsZero() && day.Before(table.validFrom) {
		return false
	}
	if !table.validTo.IsZero() && day.After(table.validTo) {
		return false
	}
	return true
}

// Reload fetches and parses the schedule and swaps it in atomically. On any
// failure the previous table stays in effect.
func (c *Calendar) Reload(ctx context.Context, source Source) error {
	raw, err := source.FetchSchedule(ctx)
	if err != nil {
		return fmt.Errorf("fetching schedule: %w", err)
	}

	table, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing schedule: %w", err)
	}

	c.table.Store(table)
	log.Info().
		Int("zones", len(table.zones)).
		Time("valid_from", table.validFrom).
		Time("valid_to", table.validTo).
		Msg("Collection schedule loaded")
	return nil
}

func (t *Table) entriesFor(key model.LocationKey, date time.Time) []model.WasteCategory {
	z, ok := t.zones[key]
	if !ok {
		return nil
	}

	day := truncate(date)
	dayKey := day.Format(time.DateOnly)

	var out []model.WasteCategory
	for _, r := range z.rules {
		if !r.matches(day) {
			continue
		}
		if _, cancelled := z.cancelled[dayKey+"/"+string(r.category)]; cancelled {
			continue
		}
		out = appendCategory(out, r.category)
	}

	// Pickups moved onto this date, e.g. shifted by a holiday.
	for _, category := range z.moved[dayKey] {
		out = appendCategory(out, category)
	}

	return model.SortCategories(out)
}

func (r rule) matches(day time.Time) bool {
	if day.Weekday() != r.weekday {
		return false
	}
	if r.interval <= 1 {
		return true
	}
	weeks := int(day.Sub(r.anchor).Hours()) / (24 * 7)
	if weeks < 0 {
		weeks = -weeks
	}
	return weeks%r.interval == 0
}

func appendCategory(categories []model.WasteCategory, category model.WasteCategory) []model.WasteCategory {
	for _, existing := range categories {
		if existing == category {
			return categories
		}
	}
	return append(categories, category)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
