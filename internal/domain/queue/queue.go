// Package queue holds the ordered list of pending tracks of a room.
package queue

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Track is a media track submitted for playback.
type Track struct {
	TrackRef        string  `json:"track_ref" validate:"required,max=2048"`
	Title           string  `json:"title" validate:"required,max=512"`
	Artist          string  `json:"artist,omitempty" validate:"max=512"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gt=0,lte=86400"`
}

// Validate checks the track fields.
func (t Track) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid track: %w", err)
	}
	return nil
}

// Entry is a queued track.
type Entry struct {
	Track
	ID              string `json:"id"`
	AddedByIdentity string `json:"added_by_identity"`
	AddedAtEpochMs  int64  `json:"added_at_epoch_ms"`
}

// Queue is a FIFO of entries. It is not safe for concurrent use.
type Queue struct {
	entries []Entry
}

// New creates a queue holding entries in the given order.
func New(entries ...Entry) *Queue {
	q := &Queue{entries: make([]Entry, 0, len(entries))}
	q.entries = append(q.entries, entries...)
	return q
}

// Enqueue appends entry at the tail.
func (q *Queue) Enqueue(entry Entry) {
	q.entries = append(q.entries, entry)
}

// Pop removes and returns the head.
func (q *Queue) Pop() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	head := q.entries[0]
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	return head, true
}

// Remove deletes the entry with id, keeping the order of the rest.
func (q *Queue) Remove(id string) (Entry, bool) {
	for i, entry := range q.entries {
		if entry.ID == id {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			return entry, true
		}
	}
	return Entry{}, false
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Entries returns a copy of the pending entries in order.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}
