package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"sprayDispatch/internal/logging"
	"sprayDispatch/internal/store"
	"sprayDispatch/repository"
)

// Persister writes store changes through to sqlite on one goroutine, in
// commit order. Write failures are logged; the store stays authoritative.
type Persister struct {
	bookings  repository.BookingRepositoryI
	operators repository.OperatorRepositoryI
	log       *slog.Logger
	queue     chan store.Change
	done      chan struct{}
}

func NewPersister(bookings repository.BookingRepositoryI, operators repository.OperatorRepositoryI, log *slog.Logger) *Persister {
	return &Persister{
		bookings:  bookings,
		operators: operators,
		log:       logging.OrDiscard(log),
		queue:     make(chan store.Change, 128),
		done:      make(chan struct{}),
	}
}

// Enqueue is the store subscriber. It blocks while the queue is full and
// drops the change once Run has returned.
func (p *Persister) Enqueue(c store.Change) {
	select {
	case p.queue <- c:
	case <-p.done:
		p.log.Warn("persist_skipped", slog.String("kind", string(c.Kind)))
	}
}

// Run drains the queue until ctx is done, then flushes what is left.
func (p *Persister) Run(ctx context.Context) error {
	defer close(p.done)
	for {
		select {
		case c := <-p.queue:
			p.write(c)
		case <-ctx.Done():
			for {
				select {
				case c := <-p.queue:
					p.write(c)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Persister) write(c store.Change) {
	// Repositories bound each call with their own timeout.
	ctx := context.Background()
	switch {
	case c.Kind == store.ChangeBooking && c.Booking != nil:
		err := p.bookings.UpdateStatus(ctx, c.Booking.ID, c.Booking.Status, c.Booking.CompletedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// The row went missing under us; the store copy is authoritative.
			err = p.bookings.Insert(ctx, c.Booking)
		}
		if err != nil {
			p.log.Error("persist_booking_failed", slog.String("booking_id", c.Booking.ID), slog.String("error", err.Error()))
		}
	case c.Kind == store.ChangeOperator && c.Operator != nil:
		if err := p.operators.Save(ctx, c.Operator); err != nil {
			p.log.Error("persist_operator_failed", slog.String("operator_id", c.Operator.ID), slog.String("error", err.Error()))
		}
	}
}
