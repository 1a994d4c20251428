package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func fixedHost(h string) func() (string, error) {
	return func() (string, error) { return h, nil }
}

func TestNewPopulator_ShortHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo.bar.example.com", "foo"},
		{"web1", "web1"},
		{"  db2.local ", "db2"},
	}
	for _, tt := range tests {
		if got := newPopulator(fixedHost(tt.in)).Host(); got != tt.want {
			t.Errorf("host %q => %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewPopulator_HostUnresolvable(t *testing.T) {
	p := newPopulator(func() (string, error) { return "", errors.New("no hostname") })
	if p.Host() != "" {
		t.Fatalf("expected empty host, got %q", p.Host())
	}
	_, tags := p.OnRequestStart(context.Background(), nil)
	if tags.Len() != 0 {
		t.Fatalf("expected no tags, got %v", tags.Values())
	}
}

func TestOnRequestStart_Order(t *testing.T) {
	p := newPopulator(fixedHost("foo.bar.example.com"))

	tests := []struct {
		name string
		id   *Identity
		want []string
	}{
		{
			name: "full principal",
			id:   &Identity{UserID: "123", Role: "Administrator", SessionID: 239259},
			want: []string{"uid:123", "role:Administrator", "sid:239259", "host:foo"},
		},
		{
			name: "no role selected",
			id:   &Identity{UserID: "123", SessionID: 42},
			want: []string{"uid:123", "sid:42", "host:foo"},
		},
		{
			name: "no academic session",
			id:   &Identity{UserID: "123", Role: "Student"},
			want: []string{"uid:123", "role:Student", "host:foo"},
		},
		{
			name: "anonymous",
			id:   nil,
			want: []string{"host:foo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, tags := p.OnRequestStart(context.Background(), tt.id)
			if got := tags.Values(); !slices.Equal(got, tt.want) {
				t.Fatalf("tags = %v, want %v", got, tt.want)
			}
			if TagsFromCtx(ctx) != tags {
				t.Fatal("context does not carry the returned tags")
			}
			p.OnRequestEnd(tags)
			if tags.Len() != 0 {
				t.Fatalf("tags not cleared: %v", tags.Values())
			}
		})
	}
}

func TestContextMiddleware_ClearsOnPanic(t *testing.T) {
	p := newPopulator(fixedHost("web1.example.edu"))
	resolve := func(*http.Request) (*Identity, bool) {
		return &Identity{UserID: "u1", Role: "Dept Sched Mgr", SessionID: 7}, true
	}

	var seen *Tags
	var during []string
	h := ContextMiddleware(p, resolve)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = TagsFromCtx(r.Context())
		during = seen.Values()
		panic("downstream failure")
	}))

	func() {
		defer func() { _ = recover() }()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	}()

	want := []string{"uid:u1", "role:Dept Sched Mgr", "sid:7", "host:web1"}
	if !slices.Equal(during, want) {
		t.Fatalf("tags during request = %v, want %v", during, want)
	}
	if seen.Len() != 0 {
		t.Fatalf("tags leaked after panic: %v", seen.Values())
	}
}

func TestContextMiddleware_RequestsAreIsolated(t *testing.T) {
	p := newPopulator(fixedHost("web1"))
	users := []string{"alice", "bob"}
	i := 0
	resolve := func(*http.Request) (*Identity, bool) {
		id := &Identity{UserID: users[i]}
		i++
		return id, true
	}

	var got [][]string
	h := ContextMiddleware(p, resolve)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = append(got, TagsFromCtx(r.Context()).Values())
	}))
	for range users {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	}

	if !slices.Equal(got[0], []string{"uid:alice", "host:web1"}) {
		t.Errorf("first request tags = %v", got[0])
	}
	if !slices.Equal(got[1], []string{"uid:bob", "host:web1"}) {
		t.Errorf("second request tags = %v", got[1])
	}
}

func TestContextMiddleware_ResolverPanicIsSwallowed(t *testing.T) {
	p := newPopulator(fixedHost("web1"))
	resolve := func(*http.Request) (*Identity, bool) { panic("session store down") }

	called := false
	h := ContextMiddleware(p, resolve)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := TagsFromCtx(r.Context()).Values(); !slices.Equal(got, []string{"host:web1"}) {
			t.Errorf("tags = %v, want host only", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !called || rr.Code != http.StatusNoContent {
		t.Fatalf("request not served: called=%v code=%d", called, rr.Code)
	}
}
