// Package audit populates created/modified timestamps and actors on records
// right before the storage layer writes them.
//
// The storage layer calls OnInsert before the first durable write of a record
// and OnUpdate before every later one, inside the same transaction as the
// write itself. Who is acting is answered by an ActorResolver supplied by the
// caller, so the populator holds no global state.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPrecision is the timestamp resolution used when none is configured.
const DefaultPrecision = time.Microsecond

// Populator stamps audit fields on insert and update.
type Populator struct {
	now       func() time.Time
	precision time.Duration
}

// Option configures a Populator.
type Option func(*Populator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Populator) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPrecision sets the resolution timestamps are truncated to.
func WithPrecision(d time.Duration) Option {
	return func(p *Populator) {
		if d > 0 {
			p.precision = d
		}
	}
}

func NewPopulator(opts ...Option) *Populator {
	p := &Populator{
		now:       time.Now,
		precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Precision returns the resolution timestamps are stored at.
func (p *Populator) Precision() time.Duration {
	return p.precision
}

// OnInsert sets all four audit fields on a record about to be inserted.
// Nothing is written if the actor cannot be resolved.
func (p *Populator) OnInsert(ctx context.Context, rec Auditable, actors ActorResolver) error {
	fields, err := fieldsOf(rec)
	if err != nil {
		return err
	}
	actor, err := ResolveActor(ctx, actors)
	if err != nil {
		return err
	}

	t := p.Now()
	fields.CreatedAt = t
	fields.CreatedBy = actor
	fields.ModifiedAt = t
	fields.ModifiedBy = actor
	return nil
}

// OnUpdate refreshes the modification fields of an already inserted record.
// CreatedAt and CreatedBy are never touched. ModifiedAt always moves forward,
// even when the clock has not advanced past the previous value.
func (p *Populator) OnUpdate(ctx context.Context, rec Auditable, actors ActorResolver) error {
	fields, err := fieldsOf(rec)
	if err != nil {
		return err
	}
	if !fields.Inserted() {
		return ErrNotInserted
	}
	actor, err := ResolveActor(ctx, actors)
	if err != nil {
		return err
	}

	t := p.Now()
	floor := fields.ModifiedAt
	if floor.Before(fields.CreatedAt) {
		floor = fields.CreatedAt
	}
	if !t.After(floor) {
		t = floor.Add(p.precision)
	}
	fields.ModifiedAt = t
	fields.ModifiedBy = actor
	return nil
}

// Now returns the current UTC time truncated to the populator's precision.
func (p *Populator) Now() time.Time {
	return p.now().UTC().Truncate(p.precision)
}

func fieldsOf(rec Auditable) (*Fields, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	fields := rec.AuditFields()
	if fields == nil {
		return nil, ErrNilRecord
	}
	return fields, nil
}

// ResolveActor asks actors for the current principal. Resolver failures are
// wrapped with ErrResolveActor and a blank result is ErrNoActor. A non-blank
// actor is returned exactly as the resolver produced it.
func ResolveActor(ctx context.Context, actors ActorResolver) (string, error) {
	if actors == nil {
		return "", ErrNoActor
	}
	actor, err := actors.CurrentActor(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolveActor, err)
	}
	if strings.TrimSpace(actor) == "" {
		return "", ErrNoActor
	}
	return actor, nil
}
