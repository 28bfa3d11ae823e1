package models

import (
	"errors"
	"fmt"
	"time"
)

// CreatedLayout is the persisted format of Guest.Created.
const CreatedLayout = "2006-01-02 15:04:05"

// Persisted flag values.
const (
	FlagYes = "yes"
	FlagNo  = "no"
)

// ErrDuplicateKey is returned when a record set contains two guests sharing
// an ID or a phone number.
var ErrDuplicateKey = errors.New("duplicate guest key")

// Guest represents one registered guest.
type Guest struct {
	// ID is the generated identifier encoded in the guest's QR badge.
	// Format: two-letter name prefix + last four phone digits + six hex chars.
	ID string

	// Name is the guest's display name.
	Name string

	// Phone is the guest's 10-digit phone number (unique).
	Phone string

	Address    string
	Profession string
	Notes      string

	// CheckedIn reports whether the guest has arrived at the door.
	// Persisted as the "added" column.
	CheckedIn bool

	// Created is when the guest registered, stored at second precision.
	Created time.Time

	// PlusOne reports whether a companion admission has been granted.
	PlusOne bool
}

// Matches reports whether key is this guest's ID or phone number.
func (g *Guest) Matches(key string) bool {
	return key != "" && (g.ID == key || g.Phone == key)
}

// CreatedString returns Created in the persisted layout.
func (g *Guest) CreatedString() string {
	if g.Created.IsZero() {
		return ""
	}
	return g.Created.Format(CreatedLayout)
}

// FormatFlag converts a flag to its persisted "yes"/"no" form.
func FormatFlag(v bool) string {
	if v {
		return FlagYes
	}
	return FlagNo
}

// ParseFlag reads a persisted flag. Anything other than "yes" is false,
// including the empty value of a missing column.
func ParseFlag(s string) bool {
	return s == FlagYes
}

// CheckUnique verifies that no two guests share an ID or a phone number.
func CheckUnique(guests []Guest) error {
	ids := make(map[string]struct{}, len(guests))
	phones := make(map[string]struct{}, len(guests))
	for i := range guests {
		g := &guests[i]
		if _, ok := ids[g.ID]; ok {
			return fmt.Errorf("%w: id %q", ErrDuplicateKey, g.ID)
		}
		ids[g.ID] = struct{}{}
		if _, ok := phones[g.Phone]; ok {
			return fmt.Errorf("%w: phone %q", ErrDuplicateKey, g.Phone)
		}
		phones[g.Phone] = struct{}{}
	}
	return nil
}
