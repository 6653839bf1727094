package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"cdprules/pkg/domain"
)

type fakeHost struct {
	markHooks    int
	resolveHooks int
	cleared      int
	invalidated  int
}

func (h *fakeHost) AddMarkHook(f domain.Filter, fn func(domain.Request)) error {
	h.markHooks++
	return nil
}

func (h *fakeHost) SetResolveHook(fn func(domain.Request) domain.Decision) error {
	h.resolveHooks++
	return nil
}

func (h *fakeHost) ClearHooks() error {
	h.markHooks = 0
	h.cleared++
	return nil
}

func (h *fakeHost) InvalidateHandlerCache() error {
	h.invalidated++
	return nil
}

type fakeCompiler struct{}

func (fakeCompiler) Compile(rule domain.Rule) (domain.Filter, error) {
	if rule.Pattern == "broken" {
		return domain.Filter{}, fmt.Errorf("rule %s: bad pattern", rule.ID)
	}
	return domain.Filter{Match: func(domain.Request) bool { return true }}, nil
}

type fakeMarker struct{ marked []string }

func (m *fakeMarker) Mark(requestID string, rule domain.Rule) {
	m.marked = append(m.marked, requestID)
}

type fakeNotifier struct{ errors []string }

func (f *fakeNotifier) EnabledState() {}
func (f *fakeNotifier) DisabledState(map[domain.TabID][]domain.Record) {}
func (f *fakeNotifier) Notify(tab domain.TabID, rule domain.RuleID, count int) {}
func (f *fakeNotifier) Clear(tab domain.TabID) {}
func (f *fakeNotifier) Error(tab domain.TabID, msg string) { f.errors = append(f.errors, msg) }

func activeRule(id, pattern string) domain.Rule {
	return domain.Rule{
		ID:      domain.RuleID(id),
		Pattern: pattern,
		Action:  domain.Action{Type: domain.ActionBlock},
		Active:  true,
	}
}

func newTestRegistry(host *fakeHost, n *fakeNotifier) *Registry {
	return New(host, fakeCompiler{}, &fakeMarker{}, n,
		func(domain.Request) domain.Decision { return domain.Decision{Kind: domain.DecidePass} }, nil)
}

func TestInstallSkipsMalformedRule(t *testing.T) {
	host := &fakeHost{}
	n := &fakeNotifier{}
	r := newTestRegistry(host, n)

	count := r.Install([]domain.Rule{
		activeRule("r1", "*"),
		activeRule("r2", "broken"),
		activeRule("r3", "https://a.example/*"),
	})

	assert.Equal(t, 2, count)
	assert.Equal(t, 2, host.markHooks)
	assert.Len(t, n.errors, 1)
	// exactly one catch-all blocking hook regardless of rule count
	assert.Equal(t, 1, host.resolveHooks)
}

func TestInstallSkipsInactiveRules(t *testing.T) {
	host := &fakeHost{}
	r := newTestRegistry(host, &fakeNotifier{})

	inactive := activeRule("r1", "*")
	inactive.Active = false
	count := r.Install([]domain.Rule{inactive, activeRule("r2", "*")})

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, host.markHooks)
}

func TestInstallInvalidatesHandlerCache(t *testing.T) {
	host := &fakeHost{}
	r := newTestRegistry(host, &fakeNotifier{})

	r.Install([]domain.Rule{activeRule("r1", "*")})
	assert.Equal(t, 1, host.invalidated)

	r.Uninstall()
	assert.Equal(t, 2, host.invalidated)
}

func TestUninstallIsIdempotent(t *testing.T) {
	host := &fakeHost{}
	r := newTestRegistry(host, &fakeNotifier{})

	// safe with nothing installed
	assert.NotPanics(t, r.Uninstall)

	r.Install([]domain.Rule{activeRule("r1", "*")})
	r.Uninstall()
	r.Uninstall()

	assert.Equal(t, 0, host.markHooks)
	assert.Equal(t, 0, r.Installed())
}

func TestReinstallRebuildsFromScratch(t *testing.T) {
	host := &fakeHost{}
	r := newTestRegistry(host, &fakeNotifier{})

	r.Install([]domain.Rule{activeRule("r1", "*"), activeRule("r2", "*")})
	r.Uninstall()
	count := r.Install([]domain.Rule{activeRule("r3", "*")})

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, host.markHooks)
	assert.Equal(t, 1, r.Installed())
}
