package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name     string
	Username string
	Fields
}

func (r *record) AuditFields() *Fields { return &r.Fields }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func TestOnInsertPopulatesAllFields(t *testing.T) {
	clock := newClock()
	p := NewPopulator(WithClock(clock.Now))
	rec := &record{Name: "Rashidi Zin", Username: "rashidi.zin"}

	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("Mr. Auditor")))

	assert.Equal(t, clock.Now(), rec.CreatedAt)
	assert.Equal(t, rec.CreatedAt, rec.ModifiedAt)
	assert.Equal(t, "Mr. Auditor", rec.CreatedBy)
	assert.Equal(t, "Mr. Auditor", rec.ModifiedBy)
	assert.True(t, rec.Inserted())
}

func TestOnUpdateKeepsCreationFields(t *testing.T) {
	clock := newClock()
	p := NewPopulator(WithClock(clock.Now))
	rec := &record{Name: "Rashidi Zin", Username: "rashidi.zin"}
	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("Mr. Auditor")))
	created, createdBy, modified := rec.CreatedAt, rec.CreatedBy, rec.ModifiedAt

	clock.Advance(time.Second)
	rec.Username = "rashidi"
	require.NoError(t, p.OnUpdate(context.Background(), rec, StaticActor("Mr. Auditor")))

	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, createdBy, rec.CreatedBy)
	assert.True(t, rec.ModifiedAt.After(modified))
	assert.Equal(t, "Mr. Auditor", rec.ModifiedBy)
}

func TestOnUpdateWithSwappedResolver(t *testing.T) {
	clock := newClock()
	p := NewPopulator(WithClock(clock.Now))
	rec := &record{Name: "Rashidi Zin", Username: "rashidi.zin"}
	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("Mr. Auditor")))

	clock.Advance(time.Minute)
	require.NoError(t, p.OnUpdate(context.Background(), rec, StaticActor("Other Auditor")))

	assert.Equal(t, "Mr. Auditor", rec.CreatedBy)
	assert.Equal(t, "Other Auditor", rec.ModifiedBy)
}

func TestOnUpdateWithoutInsertFails(t *testing.T) {
	p := NewPopulator()
	rec := &record{Name: "Rashidi Zin", Username: "rashidi.zin"}

	err := p.OnUpdate(context.Background(), rec, StaticActor("Mr. Auditor"))

	require.ErrorIs(t, err, ErrNotInserted)
	assert.Equal(t, Fields{}, rec.Fields)
}

func TestOnUpdateIsNotIdempotent(t *testing.T) {
	clock := newClock()
	p := NewPopulator(WithClock(clock.Now))
	rec := &record{}
	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("a")))

	// clock frozen: successive updates still move forward by one precision step
	require.NoError(t, p.OnUpdate(context.Background(), rec, StaticActor("a")))
	first := rec.ModifiedAt
	require.NoError(t, p.OnUpdate(context.Background(), rec, StaticActor("a")))
	second := rec.ModifiedAt

	assert.True(t, first.After(rec.CreatedAt))
	assert.True(t, second.After(first))
	assert.Equal(t, DefaultPrecision, second.Sub(first))
}

func TestOnUpdateWithClockGoingBackwards(t *testing.T) {
	clock := newClock()
	p := NewPopulator(WithClock(clock.Now), WithPrecision(time.Millisecond))
	rec := &record{}
	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("a")))

	clock.Advance(-time.Hour)
	require.NoError(t, p.OnUpdate(context.Background(), rec, StaticActor("a")))

	assert.Equal(t, rec.CreatedAt.Add(time.Millisecond), rec.ModifiedAt)
	assert.False(t, rec.ModifiedAt.Before(rec.CreatedAt))
}

func TestPrecisionTruncatesTimestamps(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.FixedZone("MYT", 8*3600))
	p := NewPopulator(WithClock(func() time.Time { return at }), WithPrecision(time.Millisecond))
	rec := &record{}

	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("a")))

	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.Equal(t, 123000000, rec.CreatedAt.Nanosecond())
	assert.Equal(t, time.Millisecond, p.Precision())
}

func TestResolverFailureIsPropagated(t *testing.T) {
	boom := errors.New("session store unavailable")
	failing := ActorFunc(func(context.Context) (string, error) { return "", boom })
	p := NewPopulator()

	rec := &record{}
	err := p.OnInsert(context.Background(), rec, failing)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrResolveActor)
	assert.Equal(t, Fields{}, rec.Fields)

	require.NoError(t, p.OnInsert(context.Background(), rec, StaticActor("a")))
	before := rec.Fields
	err = p.OnUpdate(context.Background(), rec, failing)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, rec.Fields)
}

func TestBlankActorIsRejected(t *testing.T) {
	p := NewPopulator()
	rec := &record{}

	require.ErrorIs(t, p.OnInsert(context.Background(), rec, StaticActor("  ")), ErrNoActor)
	require.ErrorIs(t, p.OnInsert(context.Background(), rec, nil), ErrNoActor)
	assert.False(t, rec.Inserted())
}

func TestActorIsStoredAsResolved(t *testing.T) {
	p := NewPopulator()
	rec := &record{}
	padded := StaticActor(" Mr. Auditor ")

	require.NoError(t, p.OnInsert(context.Background(), rec, padded))
	assert.Equal(t, " Mr. Auditor ", rec.CreatedBy)
	assert.Equal(t, rec.CreatedBy, rec.ModifiedBy)

	require.NoError(t, p.OnUpdate(context.Background(), rec, padded))
	assert.Equal(t, " Mr. Auditor ", rec.ModifiedBy)
}

func TestNilRecord(t *testing.T) {
	p := NewPopulator()
	require.ErrorIs(t, p.OnInsert(context.Background(), nil, StaticActor("a")), ErrNilRecord)
	require.ErrorIs(t, p.OnUpdate(context.Background(), nil, StaticActor("a")), ErrNilRecord)
}

func TestConcurrentInsertsOnDistinctRecords(t *testing.T) {
	p := NewPopulator()
	records := make([]*record, 64)
	var wg sync.WaitGroup
	for i := range records {
		records[i] = &record{}
		wg.Add(1)
		go func(r *record) {
			defer wg.Done()
			assert.NoError(t, p.OnInsert(context.Background(), r, StaticActor("worker")))
		}(records[i])
	}
	wg.Wait()

	for _, r := range records {
		assert.True(t, r.Inserted())
		assert.Equal(t, r.CreatedAt, r.ModifiedAt)
	}
}
