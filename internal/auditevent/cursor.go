package auditevent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event IDs are UUIDv7: a 48-bit millisecond timestamp prefix followed by a
// monotonic sequence. Byte order equals insertion order, which makes the ID
// usable both as a primary key and as an exclusive pagination cursor, and
// lets a time filter be expressed as a range over ID space.

// NewEventID returns a fresh time-ordered event ID.
func NewEventID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// ParseCursor parses an offset query parameter into an event ID.
func ParseCursor(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing cursor %q: %w", s, err)
	}
	return id, nil
}

// CursorFromTime builds the smallest possible event ID for the given instant:
// the timestamp bits are set, the version and variant bits are fixed, and all
// entropy bits are zero. Every real ID generated at or after t compares
// greater or equal.
func CursorFromTime(t time.Time) uuid.UUID {
	ms := t.UnixMilli()

	var id uuid.UUID
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)
	id[6] = 0x70 // version 7
	id[8] = 0x80 // RFC 4122 variant
	return id
}

// TimeFromID extracts the record timestamp embedded in an event ID.
func TimeFromID(id uuid.UUID) time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms).UTC()
}
