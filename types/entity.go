package types

import "time"

// Entity carries the creation and modification timestamps of a record.
// Timestamps are UTC and truncated to whole seconds, which is the
// resolution every backend stores.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped at now.
func NewEntity(now time.Time) Entity {
	now = Truncate(now)
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch moves UpdatedAt to now.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = Truncate(now)
}

// Truncate normalizes t to UTC seconds.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Unix converts seconds since the epoch back to a UTC time.
func Unix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
