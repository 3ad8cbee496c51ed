package auth

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{" Admin ", RoleAdmin, true},
		{"supervisor", RoleSupervisor, true},
		{"manager", RoleSupervisor, true},
		{"user", RoleUser, true},
		{"guest", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseRole(%q) = %q,%v; want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range AllRoles() {
		if !r.Valid() {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	if Role("manager").Valid() {
		t.Fatalf("alias must not be a canonical role")
	}
}

func TestSession_Identity(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	s := Session{
		ID:        "sid",
		UserID:    "u",
		Email:     "e",
		Groups:    []string{"g"},
		Metadata:  map[string]any{"role": "admin"},
		ExpiresAt: exp,
	}
	id := s.Identity()
	if id.UserID != "u" || id.Email != "e" || id.Metadata["role"] != "admin" || !id.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	if (Session{}).Expired(now) {
		t.Fatalf("zero expiry must not count as expired")
	}
	if !(Session{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatalf("expected expired")
	}
	if (Session{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("did not expect expired")
	}
}

func TestRole_StoredNames(t *testing.T) {
	got := RoleSupervisor.StoredNames()
	if len(got) != 2 || got[0] != "supervisor" || got[1] != "manager" {
		t.Fatalf("StoredNames() = %v, want [supervisor manager]", got)
	}
	if got := RoleAdmin.StoredNames(); len(got) != 1 || got[0] != "admin" {
		t.Fatalf("StoredNames() = %v, want [admin]", got)
	}
}
