package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUpstreamError(t *testing.T) {
	t.Run("always matches ErrUpstream", func(t *testing.T) {
		err := &UpstreamError{Endpoint: "/me", Status: 500}
		if !errors.Is(err, ErrUpstream) {
			t.Error("UpstreamError does not match ErrUpstream")
		}
	})

	t.Run("status-specific targets", func(t *testing.T) {
		tests := []struct {
			status int
			target error
		}{
			{403, ErrForbidden},
			{429, ErrRateLimited},
			{401, ErrNotAuthenticated},
		}

		for _, tt := range tests {
			err := &UpstreamError{Endpoint: "/me", Status: tt.status}
			if !errors.Is(err, tt.target) {
				t.Errorf("status %d does not match %v", tt.status, tt.target)
			}
		}

		err := &UpstreamError{Endpoint: "/me", Status: 500}
		for _, target := range []error{ErrForbidden, ErrRateLimited, ErrNotAuthenticated} {
			if errors.Is(err, target) {
				t.Errorf("status 500 should not match %v", target)
			}
		}
	})

	t.Run("message includes endpoint, status, and body", func(t *testing.T) {
		err := &UpstreamError{Endpoint: "/search", Status: 502, Body: "bad gateway"}
		msg := err.Error()
		for _, want := range []string{"/search", "502", "bad gateway"} {
			if !strings.Contains(msg, want) {
				t.Errorf("message %q missing %q", msg, want)
			}
		}
	})

	t.Run("survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("fetch profile: %w", &UpstreamError{Status: 429})
		if !errors.Is(err, ErrRateLimited) {
			t.Error("wrapped UpstreamError lost its identity")
		}

		var upstream *UpstreamError
		if !errors.As(err, &upstream) || upstream.Status != 429 {
			t.Error("errors.As failed to recover the UpstreamError")
		}
	})
}
