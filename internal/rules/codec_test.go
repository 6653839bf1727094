package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdprules/pkg/domain"
)

func TestParseRule(t *testing.T) {
	body := `{
		"id": "11111111-2222-3333-4444-555555555555",
		"name": "redirect trackers",
		"pattern": "https://tracker.example/*",
		"types": ["Script", "XHR"],
		"action": {"type": "redirect", "to": "https://localhost/empty.js", "updateTab": false},
		"tag": "privacy",
		"active": true,
		"priority": 5
	}`

	rule, err := ParseRule(body)
	require.NoError(t, err)
	assert.Equal(t, domain.RuleID("11111111-2222-3333-4444-555555555555"), rule.ID)
	assert.Equal(t, "https://tracker.example/*", rule.Pattern)
	assert.Equal(t, []string{"Script", "XHR"}, rule.Types)
	assert.Equal(t, domain.ActionRedirect, rule.Action.Type)
	assert.Equal(t, "https://localhost/empty.js", rule.Action.To)
	assert.True(t, rule.Active)
	assert.Equal(t, 5, rule.Priority)
}

func TestParseRuleGeneratesMissingID(t *testing.T) {
	rule, err := ParseRule(`{"pattern": "*", "action": {"type": "block"}}`)
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
}

func TestParseRuleRejectsBrokenDocuments(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"action": {"type": "block"}}`,
		`{"pattern": "*"}`,
	} {
		_, err := ParseRule(body)
		assert.Error(t, err, body)
	}
}

func TestEncodeRuleRoundTrip(t *testing.T) {
	in := domain.Rule{
		ID:      "r1",
		Name:    "block ads",
		Pattern: "https://ads.example/*",
		Types:   []string{"Image"},
		Action:  domain.Action{Type: domain.ActionBlock},
		Active:  true,
	}
	body, err := EncodeRule(in)
	require.NoError(t, err)

	out, err := ParseRule(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
