package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRules(t *testing.T) *FileRuleTable {
	t.Helper()
	rt, err := NewFileRuleTable(t.TempDir())
	require.NoError(t, err)
	return rt
}

func ruleDomains(t *testing.T, rt *FileRuleTable) []string {
	t.Helper()
	rules, err := rt.Rules()
	require.NoError(t, err)
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Domain
	}
	return out
}

func TestFileRuleTable_ReplaceIsFullReplace(t *testing.T) {
	rt := newTestRules(t)

	require.NoError(t, rt.Replace([]string{"a.com", "b.com"}))
	assert.Equal(t, []string{"a.com", "b.com"}, ruleDomains(t, rt))

	require.NoError(t, rt.Replace([]string{"c.com"}))
	assert.Equal(t, []string{"c.com"}, ruleDomains(t, rt))

	rules, err := rt.Rules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].ID)
	assert.Equal(t, "/blocked?domain=c.com", rules[0].Redirect)
}

func TestFileRuleTable_ReplaceEmptyClears(t *testing.T) {
	rt := newTestRules(t)
	require.NoError(t, rt.Replace([]string{"a.com"}))
	require.NoError(t, rt.Replace(nil))
	assert.Empty(t, ruleDomains(t, rt))
}

func TestFileRuleTable_RemoveDomainLeavesRestUntouched(t *testing.T) {
	rt := newTestRules(t)
	require.NoError(t, rt.Replace([]string{"a.com", "b.com", "c.com"}))

	require.NoError(t, rt.RemoveDomain("b.com"))
	assert.Equal(t, []string{"a.com", "c.com"}, ruleDomains(t, rt))

	// www-form matches the bare rule.
	require.NoError(t, rt.RemoveDomain("www.a.com"))
	assert.Equal(t, []string{"c.com"}, ruleDomains(t, rt))

	// Removing an absent domain is a no-op.
	require.NoError(t, rt.RemoveDomain("zz.com"))
	assert.Equal(t, []string{"c.com"}, ruleDomains(t, rt))
}

func TestFileRuleTable_ClearAndIdempotence(t *testing.T) {
	rt := newTestRules(t)
	require.NoError(t, rt.Replace([]string{"a.com"}))
	require.NoError(t, rt.Clear())
	require.NoError(t, rt.Clear())
	assert.Empty(t, ruleDomains(t, rt))
}
