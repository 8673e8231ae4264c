package models

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func newConfirmation(createdAt time.Time) *MatchConfirmation {
	return &MatchConfirmation{
		ID:          "c1",
		RequesterID: "alice",
		ResponderID: "bob",
		Action:      "roster_substitution",
		Status:      ConfirmationPending,
		ExpiresAt:   createdAt.Add(ConfirmationTTL),
	}
}

func TestConfirmationAcceptWithinWindow(t *testing.T) {
	t0 := time.Now()
	c := newConfirmation(t0)

	require.NoError(t, c.Respond(true, t0.Add(29*time.Second)))
	assert.Equal(t, ConfirmationAccepted, c.Status)
	require.NotNil(t, c.RespondedAt)
}

func TestConfirmationDeclineWithinWindow(t *testing.T) {
	t0 := time.Now()
	c := newConfirmation(t0)

	require.NoError(t, c.Respond(false, t0.Add(5*time.Second)))
	assert.Equal(t, ConfirmationDeclined, c.Status)
}

func TestConfirmationLateResponseRejected(t *testing.T) {
	t0 := time.Now()

	cases := []struct {
		name string
		at   time.Duration
	}{
		{"exactly at expiry", 30 * time.Second},
		{"past expiry", 31 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newConfirmation(t0)
			err := c.Respond(true, t0.Add(tc.at))
			assert.ErrorIs(t, err, ErrConfirmationExpired)
			assert.Equal(t, ConfirmationExpired, c.Status)
		})
	}
}

func TestConfirmationResponseIsTerminal(t *testing.T) {
	t0 := time.Now()
	c := newConfirmation(t0)

	require.NoError(t, c.Respond(false, t0.Add(time.Second)))

	err := c.Respond(true, t0.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrConfirmationResolved)
	assert.Equal(t, ConfirmationDeclined, c.Status)
}

func TestConfirmationPendingWindow(t *testing.T) {
	t0 := time.Now()
	c := newConfirmation(t0)

	assert.True(t, c.Pending(t0.Add(29*time.Second)))
	assert.False(t, c.Pending(t0.Add(30*time.Second)))

	require.NoError(t, c.Respond(true, t0))
	assert.False(t, c.Pending(t0.Add(time.Second)))
}

func TestConfirmationSchemaEnforcesOnePendingPerResponder(t *testing.T) {
	// The handler's existence check is only a fast path; the schema has to
	// carry a partial unique index so concurrent creates cannot both land.
	s, err := schema.Parse(&MatchConfirmation{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	found := false
	for _, idx := range s.ParseIndexes() {
		if idx.Name != "idx_confirmations_responder_pending" {
			continue
		}
		found = true
		assert.Equal(t, "UNIQUE", idx.Class)
		assert.Equal(t, "status = 'pending'", idx.Where)
		require.Len(t, idx.Fields, 1)
		assert.Equal(t, "ResponderID", idx.Fields[0].Name)
	}
	assert.True(t, found, "pending-confirmation unique index missing from schema")
}
