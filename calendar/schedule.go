package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/muelltonne/muellbot/model"
)

// Document types for the published schedule. One document covers the whole
// validity period; the city republishes it once a year.
type (
	scheduleDoc struct {
		ValidFrom string                 `json:"valid_from"`
		ValidTo   string                 `json:"valid_to"`
		Zones     map[string]zoneDoc     `json:"zones"`
		Metadata  map[string]string      `json:"metadata"`
	}

	zoneDoc struct {
		Rules      []ruleDoc      `json:"rules"`
		Exceptions []exceptionDoc `json:"exceptions"`
	}

	ruleDoc struct {
		Type          string `json:"type"`           // "Bioabfall", "Wertstoff", ...
		Weekday       int    `json:"weekday"`        // ISO: 1 = Monday ... 7 = Sunday
		IntervalWeeks int    `json:"interval_weeks"` // 0/1 = weekly
		Anchor        string `json:"anchor"`         // a known pickup date, required for interval > 1
	}

	// exceptionDoc overrides the cycle on one date: without moved_to the
	// pickup is cancelled, with moved_to it happens on that date instead.
	exceptionDoc struct {
		Date    string `json:"date"`
		Type    string `json:"type"`
		MovedTo string `json:"moved_to"`
	}
)

// Parse builds an immutable table from the raw schedule document.
func Parse(raw json.RawMessage) (*Table, error) {
	var doc scheduleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	if len(doc.Zones) == 0 {
		return nil, fmt.Errorf("schedule contains no zones")
	}

	table := &Table{
		zones: make(map[model.LocationKey]zone, len(doc.Zones)),
	}

	var err error
	if doc.ValidFrom != "" {
		table.validFrom, err = parseDate(doc.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("valid_from: %w", err)
		}
	}
	if doc.ValidTo != "" {
		table.validTo, err = parseDate(doc.ValidTo)
		if err != nil {
			return nil, fmt.Errorf("valid_to: %w", err)
		}
	}

	for name, zd := range doc.Zones {
		z, err := parseZone(zd)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", name, err)
		}
		key := model.LocationKey(strings.ToLower(strings.Join(strings.Fields(name), " ")))
		table.zones[key] = z
	}

	return table, nil
}

func parseZone(zd zoneDoc) (zone, error) {
	z := zone{
		rules:     make([]rule, 0, len(zd.Rules)),
		cancelled: make(map[string]struct{}),
		moved:     make(map[string][]model.WasteCategory),
	}

	for _, rd := range zd.Rules {
		category, ok := model.CategoryFromName(rd.Type)
		if !ok {
			return zone{}, fmt.Errorf("unknown waste type %q", rd.Type)
		}
		if rd.Weekday < 1 || rd.Weekday > 7 {
			return zone{}, fmt.Errorf("weekday %d out of range", rd.Weekday)
		}

		r := rule{
			category: category,
			weekday:  time.Weekday(rd.Weekday % 7), // ISO 7 (Sunday) → Go 0
			interval: rd.IntervalWeeks,
		}
		if r.interval > 1 {
			if rd.Anchor == "" {
				return zone{}, fmt.Errorf("rule for %q: interval %d weeks needs an anchor date", rd.Type, r.interval)
			}
			anchor, err := parseDate(rd.Anchor)
			if err != nil {
				return zone{}, fmt.Errorf("rule for %q: %w", rd.Type, err)
			}
			if anchor.Weekday() != r.weekday {
				return zone{}, fmt.Errorf("rule for %q: anchor %s is not a %s", rd.Type, rd.Anchor, r.weekday)
			}
			r.anchor = anchor
		}
		z.rules = append(z.rules, r)
	}

	for _, ed := range zd.Exceptions {
		category, ok := model.CategoryFromName(ed.Type)
		if !ok {
			return zone{}, fmt.Errorf("unknown waste type %q in exception", ed.Type)
		}
		date, err := parseDate(ed.Date)
		if err != nil {
			return zone{}, fmt.Errorf("exception: %w", err)
		}

		z.cancelled[date.Format(time.DateOnly)+"/"+string(category)] = struct{}{}

		if ed.MovedTo != "" {
			movedTo, err := parseDate(ed.MovedTo)
			if err != nil {
				return zone{}, fmt.Errorf("exception moved_to: %w", err)
			}
			dayKey := movedTo.Format(time.DateOnly)
			z.moved[dayKey] = append(z.moved[dayKey], category)
		}
	}

	return z, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
