package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeferTrackingResolution(t *testing.T) {
	cases := []struct {
		name        string
		matchActive bool
		userFound   bool
		connected   bool
		wantDefer   bool
	}{
		{"match over resolves regardless of user row", false, false, false, false},
		{"connected user resolves", true, true, true, false},
		{"dark user with a row takes the ban", true, true, false, false},
		{"dark user without a row waits for retry", true, false, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := deferTrackingResolution(tc.matchActive, tc.userFound, tc.connected)
			assert.Equal(t, tc.wantDefer, got)
		})
	}
}
