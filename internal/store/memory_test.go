package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func recvSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		if !ok {
			t.Fatalf("subscription channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestMemoryStoreSubscribe_InitialSnapshot(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "rooms", "a", map[string]string{"name": "Geral"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	sub, err := s.Subscribe(ctx, "rooms")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	snap := recvSnapshot(t, sub)
	if len(snap.Children) != 1 || snap.Children[0].Key != "a" {
		t.Fatalf("expected initial snapshot with child a, got %+v", snap.Children)
	}
}

func TestMemoryStoreSubscribe_FullSnapshotPerChange(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "rooms")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if got := recvSnapshot(t, sub); len(got.Children) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", got.Children)
	}

	if err := s.Set(ctx, "rooms", "b", map[string]string{"name": "Dos"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := recvSnapshot(t, sub); len(got.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(got.Children))
	}

	if err := s.Set(ctx, "rooms", "a", map[string]string{"name": "Uno"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap := recvSnapshot(t, sub)
	if len(snap.Children) != 2 {
		t.Fatalf("expected full rebuild with 2 children, got %d", len(snap.Children))
	}
	// orden nativo del backend: keys ascendentes
	if snap.Children[0].Key != "a" || snap.Children[1].Key != "b" {
		t.Fatalf("expected key order a,b got %s,%s", snap.Children[0].Key, snap.Children[1].Key)
	}

	if err := s.Remove(ctx, "rooms", "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	snap = recvSnapshot(t, sub)
	if len(snap.Children) != 1 || snap.Children[0].Key != "b" {
		t.Fatalf("expected only b after remove, got %+v", snap.Children)
	}
}

func TestMemoryStoreSubscribe_ScopedByPath(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "messages/a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	recvSnapshot(t, sub)

	if err := s.Set(ctx, "messages/b", "m1", map[string]string{"text": "oi"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case snap := <-sub.C:
		t.Fatalf("unexpected snapshot for other path: %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryStoreSubscribe_CloseStopsDelivery(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "rooms")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvSnapshot(t, sub)
	sub.Close()

	// la baja del suscriptor es asíncrona respecto de Close
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.subs["rooms"])
		s.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not unregistered after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := s.Set(ctx, "rooms", "a", map[string]string{"name": "Geral"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case snap, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected snapshot after close: %+v", snap)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryStorePush_UniqueOrderedIDs(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	first, err := s.Push(ctx, "rooms")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	second, err := s.Push(ctx, "rooms")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if first == "" || second == "" || first == second {
		t.Fatalf("expected distinct ids, got %q %q", first, second)
	}
	if !(first < second) {
		t.Fatalf("expected chronologically ordered ids, got %q then %q", first, second)
	}
}

func TestMemoryStoreSlowSubscriber_KeepsNewestSnapshot(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "messages/r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	// el suscriptor no lee nada mientras el buffer se desborda
	total := subscriberBuffer + 8
	for i := 0; i < total; i++ {
		key := fmt.Sprintf("m%03d", i)
		if err := s.Set(ctx, "messages/r1", key, map[string]int{"n": i}); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	// lo que se descarta es lo viejo: el último snapshot encolado
	// siempre refleja el estado final
	var last Snapshot
	received := 0
	for drained := false; !drained; {
		select {
		case snap := <-sub.C:
			last = snap
			received++
		default:
			drained = true
		}
	}
	if received == 0 {
		t.Fatalf("expected buffered snapshots for the slow subscriber")
	}
	if len(last.Children) != total {
		t.Fatalf("expected newest snapshot with %d children, got %d", total, len(last.Children))
	}
	if got := last.Children[total-1].Key; got != fmt.Sprintf("m%03d", total-1) {
		t.Fatalf("unexpected newest child %q", got)
	}
}

func TestChildDecode_PartialRecord(t *testing.T) {
	child := Child{Key: "x", Data: json.RawMessage(`{"id":"x"}`)}
	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := child.Decode(&out); err != nil {
		t.Fatalf("expected partial record to decode, got %v", err)
	}
	if out.ID != "x" || out.Name != "" {
		t.Fatalf("expected defaults for missing fields, got %+v", out)
	}

	empty := Child{Key: "y"}
	if err := empty.Decode(&out); err != nil {
		t.Fatalf("expected empty record to decode, got %v", err)
	}
}
