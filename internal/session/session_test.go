package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	want := &Data{UserID: 42, Identifier: "a@b.com", Role: "parent"}
	if err := store.Put(ctx, "sid-1", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || *got != *want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGetMissingSession(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	got, err := store.Get(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Get errored: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestGetEmptySessionID(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	got, err := store.Get(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("Get(\"\") = %+v, %v; want nil, nil", got, err)
	}
}

func TestSessionExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	store.Put(ctx, "sid-1", &Data{UserID: 1})
	mr.FastForward(time.Hour + time.Second)

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get errored: %v", err)
	}
	if got != nil {
		t.Errorf("expired session still readable: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	store.Put(ctx, "sid-1", &Data{UserID: 1})
	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got, _ := store.Get(ctx, "sid-1"); got != nil {
		t.Errorf("deleted session still readable: %+v", got)
	}
}

func TestDeleteEmptySessionID(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	if err := store.Delete(context.Background(), ""); err != nil {
		t.Errorf("Delete(\"\") errored: %v", err)
	}
}
