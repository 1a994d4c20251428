package cache

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/ghuser/timetable/pkg/config"
)

func TestNewRedisClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "invalid url", url: "not-a-valid-url"},
		{name: "unknown scheme", url: "http://localhost:6379"},
		{name: "unreachable", url: "redis://localhost:19999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := NewRedisClient(context.Background(), &config.Config{RedisURL: tt.url, ServiceName: "timetable-test"})
			if err == nil {
				_ = rc.Close()
				t.Fatal("expected error")
			}
		})
	}
}

func TestRedisClient_CloseWithoutPool(t *testing.T) {
	if err := (&RedisClient{}).Close(); err != nil {
		t.Fatalf("Close on an unopened client: %v", err)
	}
}

// Integration tests: skipped unless REDIS_URL is set.
func TestRedisIntegration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration tests")
	}
	rc, err := NewRedisClient(context.Background(), &config.Config{RedisURL: url, ServiceName: "timetable-test"})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer rc.Close() //nolint:errcheck
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		if err := rc.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})

	t.Run("client name", func(t *testing.T) {
		name, err := rc.Client().ClientGetName(ctx).Result()
		if err != nil || name != "timetable-test" {
			t.Fatalf("CLIENT GETNAME = %q, %v", name, err)
		}
	})

	t.Run("preference refresh replaces snapshot", func(t *testing.T) {
		loader := &staticLoader{prefs: []Preference{
			{StudentID: 901, Name: "modality", Value: "online"},
			{StudentID: 902, Name: "modality", Value: "in-person"},
		}}
		pc := NewPreferenceCache(rc, loader)

		if n, err := pc.Refresh(ctx); err != nil || n != 2 {
			t.Fatalf("Refresh: n=%d err=%v", n, err)
		}
		got, err := pc.Get(ctx, 901)
		if err != nil || got["modality"] != "online" {
			t.Fatalf("Get(901) = %v, %v", got, err)
		}

		loader.prefs = loader.prefs[:1]
		if _, err := pc.Refresh(ctx); err != nil {
			t.Fatalf("second Refresh: %v", err)
		}
		if _, err := pc.Get(ctx, 902); !errors.Is(err, redis.Nil) {
			t.Fatalf("dropped student: got %v, want redis.Nil", err)
		}
	})
}

type staticLoader struct{ prefs []Preference }

func (l *staticLoader) LoadPreferences(context.Context) ([]Preference, error) {
	return l.prefs, nil
}
