// ABOUTME: Tests for propagating the authenticated operator through a context
// ABOUTME: Covers WithAuth/FromContext round trips and the admin check

package auth

import (
	"context"
	"testing"
)

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %+v, want nil", got)
	}
}

func TestWithAuth_RoundTrip(t *testing.T) {
	want := &AuthContext{Subject: "alice", Role: RoleAdmin}
	got := FromContext(WithAuth(context.Background(), want))
	if got != want {
		t.Errorf("FromContext() = %+v, want %+v", got, want)
	}
}

func TestAuthContext_IsAdmin(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RoleAdmin, true},
		{RoleViewer, false},
		{"", false},
	}
	for _, tt := range tests {
		a := &AuthContext{Subject: "alice", Role: tt.role}
		if got := a.IsAdmin(); got != tt.want {
			t.Errorf("IsAdmin() with role %q = %v, want %v", tt.role, got, tt.want)
		}
	}
}
