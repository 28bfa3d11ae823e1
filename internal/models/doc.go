// Package models defines the core domain models for guestpass.
//
// # Models
//
//   - Guest: one row of the guest table (registration details plus the
//     checked-in and plus-one flags)
//   - DashboardStats: aggregate counts shown on the guest list page
//
// # Persistence
//
// The guest table is persisted as a whole: every mutation rewrites the full
// record set. Flags are plain bools in Go and become "yes"/"no" only at the
// persistence and export boundary (see FormatFlag and ParseFlag).
//
// # Invariants
//
//  1. Phone identifies at most one guest, and ID is unique and never changes
//  2. PlusOne may only be set once CheckedIn is true
//  3. CheckedIn goes false→true exactly once
//  4. Guests are never deleted
package models
