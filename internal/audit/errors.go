package audit

import "errors"

var (
	// ErrNotInserted is returned by OnUpdate when the record never went through OnInsert.
	ErrNotInserted = errors.New("audit fields not populated: record was never inserted")
	// ErrNoActor indicates the resolver produced a blank actor.
	ErrNoActor = errors.New("no acting principal")
	// ErrNilRecord is returned when a nil record or nil audit fields are passed in.
	ErrNilRecord = errors.New("nil auditable record")
	// ErrResolveActor wraps failures returned by an ActorResolver.
	ErrResolveActor = errors.New("resolve actor")
)
