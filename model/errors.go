package model

import "errors"

var (
	// ErrAddressNotFound means the geocoder produced no match. Cached
	// negatively so a broken address does not hammer the upstream.
	ErrAddressNotFound = errors.New("address not found")

	// ErrAddressAmbiguous means the geocoder produced several plausible
	// locations. Never guessed: a wrong zone silently notifies for the
	// wrong calendar.
	ErrAddressAmbiguous = errors.New("address is ambiguous")

	// ErrServiceUnavailable means the geocoder could not be reached.
	ErrServiceUnavailable = errors.New("geocoding service unavailable")

	ErrNotFound = errors.New("record not found")
)
