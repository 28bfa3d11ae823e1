// Package checkin implements the guest registration and door check-in
// workflow on top of a storage.Store.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mmynk/guestpass/internal/guestid"
	"github.com/mmynk/guestpass/internal/metrics"
	"github.com/mmynk/guestpass/internal/models"
	"github.com/mmynk/guestpass/internal/storage"
	"github.com/mmynk/guestpass/internal/storage/csvstore"
	"github.com/mmynk/guestpass/pkg/logging"
)

var (
	ErrInvalidPhone   = errors.New("phone must be 10 digits")
	ErrDuplicatePhone = errors.New("phone already registered")
	ErrNotFound       = errors.New("guest not found")
	ErrNoGuests       = errors.New("no guests registered yet")
)

// maxIDAttempts bounds id regeneration when a generated id is already taken.
const maxIDAttempts = 8

// errNoChange aborts a store update that would not modify anything, so no
// backup or rewrite happens.
var errNoChange = errors.New("no change")

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Name       string
	Phone      string
	Address    string
	Profession string
	Notes      string
}

func (in RegisterInput) trimmed() RegisterInput {
	return RegisterInput{
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		Address:    strings.TrimSpace(in.Address),
		Profession: strings.TrimSpace(in.Profession),
		Notes:      strings.TrimSpace(in.Notes),
	}
}

// Service implements registration, lookup, check-in and plus-one grants.
type Service struct {
	store   storage.Store
	ids     *guestid.Generator
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for creation timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithGenerator sets the identifier generator.
func WithGenerator(g *guestid.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// WithMetrics sets the collectors updated by the workflow.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service backed by store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ids:    guestid.New(),
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// ValidPhone reports whether phone is exactly 10 ASCII digits.
func ValidPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for i := 0; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// find returns the index of the first guest matching key by id or phone.
func find(guests []models.Guest, key string) int {
	for i := range guests {
		if guests[i].Matches(key) {
			return i
		}
	}
	return -1
}

// Lookup finds a guest by id or phone.
func (s *Service) Lookup(ctx context.Context, key string) (*models.Guest, error) {
	key = strings.TrimSpace(key)
	guests, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read guests: %w", err)
	}
	i := find(guests, key)
	if i < 0 {
		return nil, ErrNotFound
	}
	g := guests[i]
	return &g, nil
}

// Register validates the input and appends a new guest.
// The duplicate check and the append happen under one store lock.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Guest, error) {
	in = in.trimmed()
	log := s.log(ctx)
	log.Info("START Registration", "name", in.Name, "phone", in.Phone)

	if !ValidPhone(in.Phone) {
		log.Warn("FAILED Registration: invalid phone", "phone", in.Phone)
		s.metrics.Registrations.WithLabelValues("invalid_phone").Inc()
		return nil, ErrInvalidPhone
	}

	var created models.Guest
	err := s.store.Update(ctx, func(guests []models.Guest) ([]models.Guest, error) {
		if find(guests, in.Phone) >= 0 {
			return nil, ErrDuplicatePhone
		}
		id, err := s.uniqueID(guests, in.Name, in.Phone)
		if err != nil {
			return nil, err
		}
		created = models.Guest{
			ID:         id,
			Name:       in.Name,
			Phone:      in.Phone,
			Address:    in.Address,
			Profession: in.Profession,
			Notes:      in.Notes,
			Created:    s.clock.Now().Truncate(time.Second),
		}
		return append(guests, created), nil
	})
	if errors.Is(err, ErrDuplicatePhone) {
		log.Warn("FAILED Registration: duplicate phone", "phone", in.Phone)
		s.metrics.Registrations.WithLabelValues("duplicate_phone").Inc()
		return nil, err
	}
	if err != nil {
		log.Error("FAILED Registration", "phone", in.Phone, "error", err)
		s.metrics.Registrations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to register guest: %w", err)
	}

	log.Info("SUCCESS Registration", "guest_id", created.ID, "name", created.Name, "phone", created.Phone)
	s.metrics.Registrations.WithLabelValues("ok").Inc()
	return &created, nil
}

// uniqueID generates an id not already present in guests.
func (s *Service) uniqueID(guests []models.Guest, name, phone string) (string, error) {
	taken := make(map[string]struct{}, len(guests))
	for i := range guests {
		taken[guests[i].ID] = struct{}{}
	}
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.ids.Generate(name, phone)
		if _, ok := taken[id]; !ok {
			return id, nil
		}
		s.logger.Warn("Generated guest id collided, retrying", "guest_id", id, "attempt", attempt+1)
	}
	return "", fmt.Errorf("no unique guest id after %d attempts", maxIDAttempts)
}

// CheckIn marks the guest matching key (id or phone) as arrived.
// changed is false when the guest was already checked in.
func (s *Service) CheckIn(ctx context.Context, key string) (guest *models.Guest, changed bool, err error) {
	key = strings.TrimSpace(key)
	log := s.log(ctx)

	var found models.Guest
	err = s.store.Update(ctx, func(guests []models.Guest) ([]models.Guest, error) {
		i := find(guests, key)
		if i < 0 {
			return nil, ErrNotFound
		}
		if guests[i].CheckedIn {
			found = guests[i]
			return nil, errNoChange
		}
		guests[i].CheckedIn = true
		found = guests[i]
		return guests, nil
	})
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn("FAILED Check-in: guest not found", "lookup", key)
		s.metrics.CheckIns.WithLabelValues("not_found").Inc()
		return nil, false, ErrNotFound
	case errors.Is(err, errNoChange):
		log.Info("Check-in: already checked in", "guest_id", found.ID, "phone", found.Phone)
		s.metrics.CheckIns.WithLabelValues("already").Inc()
		return &found, false, nil
	case err != nil:
		log.Error("FAILED Check-in", "lookup", key, "error", err)
		s.metrics.CheckIns.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to check in guest: %w", err)
	}

	log.Info("SUCCESS Check-in", "guest_id", found.ID, "name", found.Name)
	s.metrics.CheckIns.WithLabelValues("ok").Inc()
	return &found, true, nil
}

// GrantPlusOne grants a companion to the checked-in guest with the given id.
// found is false when the guest does not exist or has not checked in;
// granted is false when the plus one was already granted.
func (s *Service) GrantPlusOne(ctx context.Context, id string) (found, granted bool, err error) {
	id = strings.TrimSpace(id)
	log := s.log(ctx)
	log.Info("START Add Plus One", "lookup", id)

	err = s.store.Update(ctx, func(guests []models.Guest) ([]models.Guest, error) {
		for i := range guests {
			if id == "" || guests[i].ID != id {
				continue
			}
			if !guests[i].CheckedIn {
				return nil, ErrNotFound
			}
			if guests[i].PlusOne {
				return nil, errNoChange
			}
			guests[i].PlusOne = true
			return guests, nil
		}
		return nil, ErrNotFound
	})
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn("FAILED Plus One: not eligible", "lookup", id)
		s.metrics.PlusOnes.WithLabelValues("not_eligible").Inc()
		return false, false, nil
	case errors.Is(err, errNoChange):
		log.Info("IGNORED Plus One: already added", "guest_id", id)
		s.metrics.PlusOnes.WithLabelValues("already").Inc()
		return true, false, nil
	case err != nil:
		log.Error("FAILED Plus One", "lookup", id, "error", err)
		s.metrics.PlusOnes.WithLabelValues("error").Inc()
		return false, false, fmt.Errorf("failed to grant plus one: %w", err)
	}

	log.Info("SUCCESS Plus One Added", "guest_id", id)
	s.metrics.PlusOnes.WithLabelValues("ok").Inc()
	return true, true, nil
}

// List returns all guests in table order.
func (s *Service) List(ctx context.Context) ([]models.Guest, error) {
	guests, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read guests: %w", err)
	}
	return guests, nil
}

// DashboardStats counts guests by state.
func DashboardStats(guests []models.Guest) models.DashboardStats {
	return models.ComputeStats(guests)
}

// Stats reads the table and returns its dashboard counts.
func (s *Service) Stats(ctx context.Context) (models.DashboardStats, error) {
	guests, err := s.List(ctx)
	if err != nil {
		return models.DashboardStats{}, err
	}
	stats := DashboardStats(guests)
	s.metrics.ObserveStats(stats)
	return stats, nil
}

// Export backs up the table and writes it to w as CSV.
// Returns ErrNoGuests when nothing has been persisted yet.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	log := s.log(ctx)

	backup, guests, err := s.store.Snapshot(ctx)
	if errors.Is(err, storage.ErrNoTable) {
		return 0, ErrNoGuests
	}
	if err != nil {
		return 0, fmt.Errorf("failed to back up guests: %w", err)
	}
	if err := csvstore.Encode(w, guests); err != nil {
		return 0, fmt.Errorf("failed to encode guests: %w", err)
	}

	log.Info("Guest list exported", "guests", len(guests), "backup", backup)
	return len(guests), nil
}
