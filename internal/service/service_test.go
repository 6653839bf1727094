package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdprules/pkg/domain"
)

// fakeHost 以进程内回调模拟宿主：fire 跑一遍标记钩子再要求阻塞裁决
type fakeHost struct {
	hooks   []func(domain.Request)
	filters []domain.Filter
	resolve func(domain.Request) domain.Decision

	commit    func(domain.NavigationCommit)
	tabClosed func(domain.TabID)
}

func (h *fakeHost) AddMarkHook(f domain.Filter, fn func(domain.Request)) error {
	h.filters = append(h.filters, f)
	h.hooks = append(h.hooks, fn)
	return nil
}

func (h *fakeHost) SetResolveHook(fn func(domain.Request) domain.Decision) error {
	h.resolve = fn
	return nil
}

func (h *fakeHost) ClearHooks() error {
	h.hooks = nil
	h.filters = nil
	h.resolve = nil
	return nil
}

func (h *fakeHost) InvalidateHandlerCache() error { return nil }
func (h *fakeHost) NavigateTab(tab domain.TabID, url string) error { return nil }
func (h *fakeHost) Attach(target string) error { return nil }
func (h *fakeHost) Detach() error { return nil }
func (h *fakeHost) EnableInterception() error { return nil }
func (h *fakeHost) DisableInterception() error { return nil }
func (h *fakeHost) SetCommitSink(fn func(domain.NavigationCommit)) { h.commit = fn }
func (h *fakeHost) SetTabClosedSink(fn func(domain.TabID)) { h.tabClosed = fn }
func (h *fakeHost) Tab() domain.TabID { return "tab-1" }

func (h *fakeHost) fire(req domain.Request) domain.Decision {
	for i := range h.hooks {
		if h.filters[i].Match == nil || h.filters[i].Match(req) {
			h.hooks[i](req)
		}
	}
	if h.resolve == nil {
		return domain.Decision{Kind: domain.DecidePass}
	}
	return h.resolve(req)
}

type fakeSource struct {
	snap domain.Snapshot
}

func (s *fakeSource) Snapshot() (domain.Snapshot, error) { return s.snap, nil }
func (s *fakeSource) Put(rule domain.Rule) error { return nil }
func (s *fakeSource) Delete(id domain.RuleID) error { return nil }
func (s *fakeSource) SetDisabled(disabled bool) error { s.snap.Disabled = disabled; return nil }

func snapshotWith(rules ...domain.Rule) domain.Snapshot {
	return domain.Snapshot{Rules: rules}
}

func blockAll(id string) domain.Rule {
	return domain.Rule{
		ID:      domain.RuleID(id),
		Pattern: "*",
		Action:  domain.Action{Type: domain.ActionBlock},
		Active:  true,
	}
}

func TestStartInstallsRulesAndResolvesRequests(t *testing.T) {
	host := &fakeHost{}
	source := &fakeSource{snap: snapshotWith(blockAll("r1"))}
	svc := New(host, source, nil)

	require.NoError(t, svc.Start(""))
	assert.Equal(t, 1, svc.Installed())

	dec := host.fire(domain.Request{ID: "req-1", Tab: "tab-1", URL: "https://a.example"})
	assert.Equal(t, domain.DecideBlock, dec.Kind)

	seq, ok := svc.Records("")
	require.True(t, ok)
	assert.Len(t, seq, 1)
	assert.Equal(t, domain.RuleID("r1"), seq[0].Rule)
}

func TestUnmatchedRequestLeavesNoTrace(t *testing.T) {
	host := &fakeHost{}
	rule := blockAll("r1")
	rule.Pattern = "https://ads.example/*"
	source := &fakeSource{snap: snapshotWith(rule)}
	svc := New(host, source, nil)
	require.NoError(t, svc.Start(""))

	dec := host.fire(domain.Request{ID: "req-1", Tab: "tab-1", URL: "https://clean.example"})

	assert.Equal(t, domain.DecidePass, dec.Kind)
	_, ok := svc.Records("tab-1")
	assert.False(t, ok)
}

func TestDisabledConfigRemovesHooksAndClearsRecords(t *testing.T) {
	host := &fakeHost{}
	source := &fakeSource{snap: snapshotWith(blockAll("r1"))}
	svc := New(host, source, nil)
	require.NoError(t, svc.Start(""))

	host.fire(domain.Request{ID: "req-1", Tab: "tab-1", URL: "https://a.example"})
	_, ok := svc.Records("tab-1")
	require.True(t, ok)

	require.NoError(t, svc.SetDisabled(true))

	assert.Equal(t, 0, svc.Installed())
	assert.Empty(t, host.hooks)
	_, ok = svc.Records("tab-1")
	assert.False(t, ok)
}

func TestReloadRebuildsListeners(t *testing.T) {
	host := &fakeHost{}
	source := &fakeSource{snap: snapshotWith(blockAll("r1"), blockAll("r2"))}
	svc := New(host, source, nil)
	require.NoError(t, svc.Start(""))
	assert.Equal(t, 2, svc.Installed())

	source.snap = snapshotWith(blockAll("r3"))
	require.NoError(t, svc.Reload())

	assert.Equal(t, 1, svc.Installed())
	assert.Len(t, host.hooks, 1)
}

func TestTabRemovalDropsRecords(t *testing.T) {
	host := &fakeHost{}
	source := &fakeSource{snap: snapshotWith(blockAll("r1"))}
	svc := New(host, source, nil)
	require.NoError(t, svc.Start(""))

	host.fire(domain.Request{ID: "req-1", Tab: "tab-1", URL: "https://a.example"})
	host.tabClosed("tab-1")

	_, ok := svc.Records("tab-1")
	assert.False(t, ok)

	// removing an unknown tab must be a no-op
	assert.NotPanics(t, func() { host.tabClosed("ghost") })
}

func TestNavigationCommitReconcilesHistory(t *testing.T) {
	host := &fakeHost{}
	rule := blockAll("r1")
	rule.Action = domain.Action{Type: domain.ActionRedirect, To: "https://b.example"}
	source := &fakeSource{snap: snapshotWith(rule)}
	svc := New(host, source, nil)
	require.NoError(t, svc.Start(""))

	dec := host.fire(domain.Request{ID: "req-1", Tab: "tab-1", URL: "https://a.example", Type: "Document"})
	require.Equal(t, domain.DecideRedirect, dec.Kind)

	host.commit(domain.NavigationCommit{Tab: "tab-1", URL: "https://b.example", TopLevel: true})

	seq, ok := svc.Records("tab-1")
	require.True(t, ok)
	assert.Len(t, seq, 1)
	assert.Equal(t, "https://b.example", seq[0].Target)

	// an untraceable navigation clears the history
	host.commit(domain.NavigationCommit{Tab: "tab-1", URL: "https://elsewhere.example", TopLevel: true})
	_, ok = svc.Records("tab-1")
	assert.False(t, ok)
}
