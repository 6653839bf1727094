package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdprules/pkg/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", "cdprules_", nil)
	require.NoError(t, err)
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rule := domain.Rule{
		ID:      "r1",
		Name:    "block ads",
		Pattern: "https://ads.example/*",
		Action:  domain.Action{Type: domain.ActionBlock},
		Active:  true,
	}
	require.NoError(t, s.Put(rule))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.Disabled)
	require.Len(t, snap.Rules, 1)
	assert.Equal(t, rule, snap.Rules[0])
}

func TestSnapshotSkipsBrokenRuleRows(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(domain.Rule{
		ID:      "good",
		Pattern: "*",
		Action:  domain.Action{Type: domain.ActionAllow},
		Active:  true,
	}))
	require.NoError(t, s.db.Save(&RuleRow{UUID: "bad", Body: "not json"}).Error)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Rules, 1)
	assert.Equal(t, domain.RuleID("good"), snap.Rules[0].ID)
}

func TestSetDisabled(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetDisabled(true))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Disabled)

	require.NoError(t, s.SetDisabled(false))
	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.Disabled)
}

func TestDeleteRule(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(domain.Rule{
		ID:      "r1",
		Pattern: "*",
		Action:  domain.Action{Type: domain.ActionBlock},
		Active:  true,
	}))
	require.NoError(t, s.Delete("r1"))
	// deleting a missing rule is a no-op
	require.NoError(t, s.Delete("r1"))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Rules)
}
