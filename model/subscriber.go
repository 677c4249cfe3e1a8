package model

import (
	"strings"
	"time"
)

type (
	// Address is a street and house number exactly as the user entered it.
	Address struct {
		Street      string
		HouseNumber string
	}

	// LocationKey is the normalized identifier the collection calendar is
	// indexed by. Resolving the same address twice yields the same key.
	LocationKey string

	// Subscriber is one registered chat.
	Subscriber struct {
		ChatID        int64
		FirstName     string
		LastName      string
		Address       Address
		LocationKey   LocationKey // empty until resolved at least once
		Notifications bool
		LastNotified  *time.Time // nil = never notified
	}
)

// Canonical returns the cache key form of the address: lower-cased,
// whitespace collapsed, street and house number separated by a single comma.
func (a Address) Canonical() string {
	street := strings.ToLower(strings.Join(strings.Fields(a.Street), " "))
	number := strings.ToLower(strings.Join(strings.Fields(a.HouseNumber), ""))
	return street + "," + number
}

// Query is the free-text form sent to the geocoder.
func (a Address) Query() string {
	return strings.TrimSpace(a.Street + " " + a.HouseNumber)
}

func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.HouseNumber) == ""
}

// NotifiedOn reports whether the subscriber was already notified on the
// given calendar day.
func (s *Subscriber) NotifiedOn(day time.Time) bool {
	if s.LastNotified == nil {
		return false
	}
	y1, m1, d1 := s.LastNotified.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (s *Subscriber) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
