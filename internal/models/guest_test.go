package models

import (
	"errors"
	"testing"
	"time"
)

func TestCheckUnique(t *testing.T) {
	tests := []struct {
		name    string
		guests  []Guest
		wantErr bool
	}{
		{"empty", nil, false},
		{"distinct", []Guest{{ID: "A", Phone: "1"}, {ID: "B", Phone: "2"}}, false},
		{"shared id", []Guest{{ID: "A", Phone: "1"}, {ID: "A", Phone: "2"}}, true},
		{"shared phone", []Guest{{ID: "A", Phone: "1"}, {ID: "B", Phone: "1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUnique(tt.guests)
			if tt.wantErr && !errors.Is(err, ErrDuplicateKey) {
				t.Errorf("CheckUnique() = %v, want ErrDuplicateKey", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("CheckUnique() = %v, want nil", err)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	g := Guest{ID: "AN3210ABCDEF", Phone: "9876543210"}
	if !g.Matches("AN3210ABCDEF") || !g.Matches("9876543210") {
		t.Error("Expected match by id and phone")
	}
	if g.Matches("") || g.Matches("AN3210") {
		t.Error("Unexpected match")
	}
}

func TestFlags(t *testing.T) {
	if FormatFlag(true) != "yes" || FormatFlag(false) != "no" {
		t.Error("FormatFlag mismatch")
	}
	if !ParseFlag("yes") || ParseFlag("no") || ParseFlag("") || ParseFlag("YES") {
		t.Error("ParseFlag mismatch")
	}
}

func TestCreatedString(t *testing.T) {
	var g Guest
	if g.CreatedString() != "" {
		t.Errorf("zero Created should format empty, got %q", g.CreatedString())
	}
	g.Created = time.Date(2025, 8, 3, 19, 5, 9, 0, time.UTC)
	if got := g.CreatedString(); got != "2025-08-03 19:05:09" {
		t.Errorf("CreatedString() = %q", got)
	}
}

func TestComputeStats(t *testing.T) {
	guests := []Guest{
		{CheckedIn: true, PlusOne: true},
		{CheckedIn: true},
		{},
	}
	got := ComputeStats(guests)
	want := DashboardStats{Total: 3, CheckedIn: 2, NotCheckedIn: 1, PlusOnes: 1}
	if got != want {
		t.Errorf("ComputeStats() = %+v, want %+v", got, want)
	}
	if got.CheckedIn+got.NotCheckedIn != got.Total {
		t.Error("counts do not add up")
	}
}
