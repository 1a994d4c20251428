package auth

import (
	"context"
	"errors"
	"testing"
)

func TestWithPrincipal_PrincipalFromCtx(t *testing.T) {
	want := &Principal{UserID: "0012345", Role: "Student Advisor", SessionID: 239259}
	ctx := WithPrincipal(context.Background(), want)

	got, err := PrincipalFromCtx(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestPrincipalFromCtx_EmptyContext(t *testing.T) {
	_, err := PrincipalFromCtx(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestPrincipalFromCtx_BlankUser(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &Principal{Role: "Administrator"})
	if _, err := PrincipalFromCtx(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for blank user id, got %v", err)
	}
}

func TestPrincipal_HasRole(t *testing.T) {
	p := &Principal{UserID: "1", Role: "Administrator"}
	if !p.HasRole("Dept Sched Mgr", "Administrator") {
		t.Fatal("expected role match")
	}
	if p.HasRole("Student") {
		t.Fatal("unexpected role match")
	}
	if p.HasRole() {
		t.Fatal("no roles must not match")
	}
}
