package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewSessionID(t *testing.T) {
	a, b := newSessionID(), newSessionID()
	if a == b {
		t.Fatal("session ids must be random")
	}
	if len(a) != 52 {
		t.Fatalf("len = %d, want 52 (32 bytes, unpadded base32)", len(a))
	}
}

func TestNewSessionStore_DefaultMaxAge(t *testing.T) {
	s := NewSessionStore(nil, []byte("test-auth-key-must-be-32-bytes!!"), nil, false, 0)
	if s.options.MaxAge != int((8 * time.Hour).Seconds()) {
		t.Fatalf("MaxAge = %d", s.options.MaxAge)
	}
	if !s.options.HttpOnly || s.options.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie options = %+v", s.options)
	}
}

// Integration test: skipped unless REDIS_URL is set.
func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration tests")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close() //nolint:errcheck

	store := NewSessionStore(client,
		[]byte("test-auth-key-must-be-32-bytes!!"),
		[]byte("test-enc-key-must-be-32-bytes!!!"),
		false, time.Minute)

	want := Principal{UserID: "jdoe", Role: "Administrator", SessionID: 239259}
	r := requestWithPrincipal(t, store, &want)

	got, ok := LoadPrincipal(store, r)
	if !ok || *got != want {
		t.Fatalf("LoadPrincipal = %+v, %v", got, ok)
	}

	session, err := store.Get(r, sessionName)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	ttl, err := client.TTL(context.Background(), store.key(session.ID)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v, %v", ttl, err)
	}

	if err := store.Destroy(context.Background(), session.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	fresh := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range r.Cookies() {
		fresh.AddCookie(c)
	}
	if _, ok := LoadPrincipal(store, fresh); ok {
		t.Fatal("destroyed session must not load")
	}
}
