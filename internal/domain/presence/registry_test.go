package presence_test

import (
	"reflect"
	"testing"
	"time"

	"jan-server/services/listen-api/internal/domain/presence"
)

const ttl = 60 * time.Second

var t0 = time.UnixMilli(1_700_000_000_000)

func TestJoinIsIdempotentUpsert(t *testing.T) {
	reg := presence.NewRegistry(ttl)

	first, created := reg.Join("alice", presence.Meta{DisplayName: "Alice"}, t0)
	if !created {
		t.Fatal("first join should create the entry")
	}

	second, created := reg.Join("alice", presence.Meta{DisplayName: "Alice B"}, t0.Add(10*time.Second))
	if created {
		t.Fatal("second join should update the existing entry")
	}
	if second.JoinedAtEpochMs != first.JoinedAtEpochMs {
		t.Errorf("join time changed on upsert: %d != %d", second.JoinedAtEpochMs, first.JoinedAtEpochMs)
	}
	if second.LastHeartbeatAtEpochMs != t0.Add(10*time.Second).UnixMilli() {
		t.Errorf("join did not refresh heartbeat")
	}
	if got := reg.List(t0.Add(10 * time.Second)); len(got) != 1 || got[0].DisplayMeta.DisplayName != "Alice B" {
		t.Fatalf("unexpected list after upsert: %+v", got)
	}
}

func TestHeartbeatIdempotence(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("alice", presence.Meta{}, t0)

	now := t0.Add(20 * time.Second)
	if !reg.Heartbeat("alice", now) {
		t.Fatal("heartbeat for present identity should succeed")
	}
	once := reg.All()

	for i := 0; i < 5; i++ {
		reg.Heartbeat("alice", now)
	}
	if !reflect.DeepEqual(once, reg.All()) {
		t.Fatalf("repeated heartbeats changed state: %+v vs %+v", once, reg.All())
	}
}

func TestHeartbeatAfterExpiryFailsSilently(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("alice", presence.Meta{}, t0)

	late := t0.Add(61 * time.Second)
	if reg.Heartbeat("alice", late) {
		t.Fatal("heartbeat for expired identity must not revive it")
	}
	if reg.Heartbeat("nobody", late) {
		t.Fatal("heartbeat for unknown identity must report false")
	}
	if reg.Contains("alice", late) {
		t.Fatal("expired identity still reported as present")
	}

	if _, created := reg.Join("alice", presence.Meta{}, late); !created {
		t.Fatal("join after expiry should recreate the entry")
	}
}

func TestPresenceExpiryScenario(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("alice", presence.Meta{}, t0)
	reg.Join("bob", presence.Meta{}, t0)

	// bob keeps heartbeating every 30s, alice goes silent
	reg.Heartbeat("bob", t0.Add(30*time.Second))
	reg.Heartbeat("bob", t0.Add(60*time.Second))

	list := reg.List(t0.Add(61 * time.Second))
	if len(list) != 1 || list[0].Identity != "bob" {
		t.Fatalf("expected only bob after 61s, got %+v", list)
	}

	if got := reg.List(t0.Add(60 * time.Second)); len(got) != 2 {
		t.Fatalf("alice should still be present at exactly 60s, got %+v", got)
	}
}

func TestReapIdempotence(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("alice", presence.Meta{}, t0)
	reg.Join("bob", presence.Meta{}, t0.Add(30*time.Second))

	now := t0.Add(70 * time.Second)
	removed := reg.Reap(now)
	if len(removed) != 1 || removed[0].Identity != "alice" {
		t.Fatalf("expected alice to be reaped, got %+v", removed)
	}
	after := reg.All()

	for i := 0; i < 3; i++ {
		if again := reg.Reap(now); len(again) != 0 {
			t.Fatalf("reap removed more entries on repeat: %+v", again)
		}
	}
	if !reflect.DeepEqual(after, reg.All()) {
		t.Fatal("repeated reap changed presence state")
	}

	empty := presence.NewRegistry(ttl)
	if got := empty.Reap(now); len(got) != 0 {
		t.Fatalf("reap on empty registry returned %+v", got)
	}
}

func TestListIsPure(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("alice", presence.Meta{}, t0)

	late := t0.Add(2 * time.Minute)
	if got := reg.List(late); len(got) != 0 {
		t.Fatalf("expired entry listed: %+v", got)
	}
	if got := reg.All(); len(got) != 1 {
		t.Fatal("List must not remove entries")
	}
}

func TestLeave(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("alice", presence.Meta{}, t0)

	if !reg.Leave("alice") {
		t.Fatal("leave of present identity should report true")
	}
	if reg.Leave("alice") {
		t.Fatal("second leave should report false")
	}
	if reg.Contains("alice", t0) {
		t.Fatal("identity present after leave")
	}
}

func TestListOrderedByJoinTime(t *testing.T) {
	reg := presence.NewRegistry(ttl)
	reg.Join("carol", presence.Meta{}, t0.Add(2*time.Second))
	reg.Join("alice", presence.Meta{}, t0)
	reg.Join("bob", presence.Meta{}, t0.Add(time.Second))

	list := reg.List(t0.Add(5 * time.Second))
	got := []string{list[0].Identity, list[1].Identity, list[2].Identity}
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}
