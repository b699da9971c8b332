package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"sprayDispatch/internal/route"
	"sprayDispatch/models"
)

// SeedFunc supplies the initial booking collection.
type SeedFunc func(ctx context.Context) ([]models.Booking, error)

// Clock returns the current instant.
type Clock func() time.Time

// ChangeKind says which record a Change carries.
type ChangeKind string

const (
	ChangeBooking  ChangeKind = "booking"
	ChangeOperator ChangeKind = "operator"
)

// Change is delivered to subscribers after every successful mutation.
// Operator is nil when the session was closed.
type Change struct {
	Kind           ChangeKind
	Booking        *models.Booking
	PreviousStatus models.BookingStatus
	Operator       *models.Operator
	At             time.Time
}

// Store owns the booking collection and the current operator session.
// The collection is replaced wholesale on every write so readers can hold
// a snapshot without locking.
type Store struct {
	// writeMu serializes writers so subscribers see changes in commit order.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	bookings []models.Booking
	index    map[string]int
	operator *models.Operator

	template   models.Operator
	permissive bool
	now        Clock
	loc        *time.Location
	validate   *validator.Validate

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.now = c
		}
	}
}

// WithLocation sets the location used for calendar-date math.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPermissiveTransitions restores force-set semantics: any status may be
// written and unknown ids are ignored.
func WithPermissiveTransitions() Option {
	return func(s *Store) { s.permissive = true }
}

// WithOperatorTemplate sets the profile merged with the phone on login.
func WithOperatorTemplate(o models.Operator) Option {
	return func(s *Store) { s.template = o.Clone() }
}

// New builds a Store from the bookings returned by seed.
func New(ctx context.Context, seed SeedFunc, opts ...Option) (*Store, error) {
	s := &Store{
		now:      time.Now,
		loc:      time.Local,
		template: MockOperator(),
		validate: newValidator(),
		subs:     map[int]func(Change){},
	}
	for _, opt := range opts {
		opt(s)
	}
	var initial []models.Booking
	if seed != nil {
		var err error
		initial, err = seed(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed bookings: %w", err)
		}
	}
	index := make(map[string]int, len(initial))
	bookings := make([]models.Booking, 0, len(initial))
	for _, b := range initial {
		if err := s.validate.Struct(b); err != nil {
			return nil, fmt.Errorf("%w: booking %q: %v", models.ErrValidation, b.ID, err)
		}
		if err := b.CheckCompletion(); err != nil {
			return nil, err
		}
		if _, dup := index[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate booking id %q", models.ErrValidation, b.ID)
		}
		index[b.ID] = len(bookings)
		bookings = append(bookings, b.Clone())
	}
	s.bookings = bookings
	s.index = index
	return s, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock12", validateClock)
	return v
}

// validateClock accepts the "HH:MM AM|PM" form route planning sorts by.
func validateClock(fl validator.FieldLevel) bool {
	_, err := route.ParseClock(fl.Field().String())
	return err == nil
}

// Permissive reports whether transitions are unchecked.
func (s *Store) Permissive() bool { return s.permissive }

// Location returns the location used for calendar-date math.
func (s *Store) Location() *time.Location { return s.loc }

// Now returns the store clock in the store location.
func (s *Store) Now() time.Time { return s.now().In(s.loc) }

func (s *Store) snapshot() []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookings
}

// Bookings returns a copy of every booking in collection order.
func (s *Store) Bookings() []models.Booking {
	return cloneAll(s.snapshot())
}

// Booking returns a copy of the booking with the given id.
func (s *Store) Booking(id string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Booking{}, fmt.Errorf("booking %q: %w", id, models.ErrNotFound)
	}
	return s.bookings[i].Clone(), nil
}

// UpdateStatus moves a booking to status. Entering completed stamps
// completedAt with the store clock, also when the booking was already
// completed; leaving it clears the stamp.
func (s *Store) UpdateStatus(id string, status models.BookingStatus) (models.Booking, error) {
	if !status.Valid() {
		return models.Booking{}, &models.StatusError{Value: string(status)}
	}
	return s.mutate(id, func(cur models.BookingStatus) (models.BookingStatus, error) {
		if !s.permissive && !models.CanTransition(cur, status) {
			return "", &models.InvalidTransitionError{From: cur, To: status}
		}
		return status, nil
	})
}

// Apply fires an event on a booking. Events always follow the status
// machine, regardless of permissive mode.
func (s *Store) Apply(id string, ev models.Event) (models.Booking, error) {
	return s.mutate(id, func(cur models.BookingStatus) (models.BookingStatus, error) {
		return models.Next(cur, ev)
	})
}

func (s *Store) mutate(id string, decide func(models.BookingStatus) (models.BookingStatus, error)) (models.Booking, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		if s.permissive {
			return models.Booking{}, nil
		}
		return models.Booking{}, fmt.Errorf("booking %q: %w", id, models.ErrNotFound)
	}
	prev := s.bookings[i].Status
	next, err := decide(prev)
	if err != nil {
		s.mu.Unlock()
		return models.Booking{}, fmt.Errorf("booking %q: %w", id, err)
	}
	at := s.now()
	updated := s.bookings[i].Clone()
	updated.Status = next
	if next == models.BookingStatusCompleted {
		stamp := at
		updated.CompletedAt = &stamp
	} else {
		updated.CompletedAt = nil
	}
	fresh := make([]models.Booking, len(s.bookings))
	copy(fresh, s.bookings)
	fresh[i] = updated
	s.bookings = fresh
	s.mu.Unlock()

	out := updated.Clone()
	s.publish(Change{Kind: ChangeBooking, Booking: &out, PreviousStatus: prev, At: at})
	return updated.Clone(), nil
}

// Subscribe registers fn for every future change. Calls happen
// synchronously on the mutating goroutine, after the write is visible,
// so fn must not write to the store.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Change), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func cloneAll(in []models.Booking) []models.Booking {
	out := make([]models.Booking, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
