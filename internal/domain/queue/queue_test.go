package queue_test

import (
	"testing"

	"jan-server/services/listen-api/internal/domain/queue"
)

func entry(id string) queue.Entry {
	return queue.Entry{
		ID: id,
		Track: queue.Track{
			TrackRef:        "ref-" + id,
			Title:           "title " + id,
			DurationSeconds: 180,
		},
	}
}

func ids(entries []queue.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestFIFOOrder(t *testing.T) {
	q := queue.New()
	q.Enqueue(entry("a"))
	q.Enqueue(entry("b"))
	q.Enqueue(entry("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		if !ok || got.ID != want {
			t.Fatalf("Pop() = %v, %v; want %s", got.ID, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue should report false")
	}
}

func TestRemoveKeepsOrder(t *testing.T) {
	q := queue.New(entry("a"), entry("b"), entry("c"), entry("d"))

	removed, ok := q.Remove("b")
	if !ok || removed.ID != "b" {
		t.Fatalf("Remove(b) = %v, %v", removed.ID, ok)
	}
	if got := ids(q.Entries()); len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "d" {
		t.Fatalf("unexpected order after remove: %v", got)
	}
	if _, ok := q.Remove("missing"); ok {
		t.Fatal("Remove of unknown id should report false")
	}
}

func TestEntriesIsACopy(t *testing.T) {
	q := queue.New(entry("a"))
	snapshot := q.Entries()
	snapshot[0].ID = "mutated"

	if q.Entries()[0].ID != "a" {
		t.Fatal("Entries must not expose internal storage")
	}
}

func TestRemoveDoesNotAliasSnapshots(t *testing.T) {
	q := queue.New(entry("a"), entry("b"), entry("c"))
	before := q.Entries()
	q.Remove("a")

	if ids(before)[0] != "a" || ids(before)[1] != "b" {
		t.Fatalf("earlier snapshot changed after remove: %v", ids(before))
	}
}

func TestTrackValidate(t *testing.T) {
	tests := []struct {
		name    string
		track   queue.Track
		wantErr bool
	}{
		{name: "valid", track: queue.Track{TrackRef: "yt:1", Title: "Song", DurationSeconds: 200}},
		{name: "missing ref", track: queue.Track{Title: "Song", DurationSeconds: 200}, wantErr: true},
		{name: "missing title", track: queue.Track{TrackRef: "yt:1", DurationSeconds: 200}, wantErr: true},
		{name: "zero duration", track: queue.Track{TrackRef: "yt:1", Title: "Song"}, wantErr: true},
		{name: "too long", track: queue.Track{TrackRef: "yt:1", Title: "Song", DurationSeconds: 90000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.track.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
