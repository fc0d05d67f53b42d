package feed

import (
	"slices"

	"go.uber.org/zap"
)

// InterestStore persists the interest set between sessions.
type InterestStore interface {
	LoadInterests() ([]string, error)
	SaveInterests(interests []string) error
}

// Interests is an insertion-ordered set of topics and tags the user has
// interacted with. It only grows within a session.
type Interests struct {
	order []string
	set   map[string]struct{}
	dirty bool
	log   *zap.Logger
}

// NewInterests returns an empty interest set
func NewInterests(log *zap.Logger) *Interests {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interests{set: make(map[string]struct{}), log: log}
}

// Record unions the topic and every tag into the set and returns how many
// entries were new. Empty strings are ignored.
func (i *Interests) Record(topic string, tags ...string) int {
	added := 0
	for _, s := range append([]string{topic}, tags...) {
		if s == "" {
			continue
		}
		if _, ok := i.set[s]; ok {
			continue
		}
		i.set[s] = struct{}{}
		i.order = append(i.order, s)
		added++
	}
	if added > 0 {
		i.dirty = true
	}
	return added
}

// Snapshot returns the set in insertion order.
func (i *Interests) Snapshot() []string { return slices.Clone(i.order) }

// Recent returns up to n of the most recently added entries, newest first.
// n <= 0 returns everything.
func (i *Interests) Recent(n int) []string {
	if n <= 0 || n > len(i.order) {
		n = len(i.order)
	}
	out := make([]string, 0, n)
	for j := len(i.order) - 1; j >= 0 && len(out) < n; j-- {
		out = append(out, i.order[j])
	}
	return out
}

func (i *Interests) Contains(s string) bool {
	_, ok := i.set[s]
	return ok
}

func (i *Interests) Len() int { return len(i.order) }

// Dirty reports whether there are entries not yet flushed.
func (i *Interests) Dirty() bool { return i.dirty }

// Load merges the persisted set into this one. A missing or failing store
// yields nothing new rather than an error.
func (i *Interests) Load(store InterestStore) {
	if store == nil {
		return
	}
	saved, err := store.LoadInterests()
	if err != nil {
		i.log.Warn("could not load interests, starting empty", zap.Error(err))
		return
	}
	wasDirty := i.dirty
	for _, s := range saved {
		i.Record(s)
	}
	i.dirty = wasDirty
	i.log.Debug("loaded interests", zap.Int("count", len(saved)))
}

// Flush saves the set if it changed since the last successful flush.
func (i *Interests) Flush(store InterestStore) error {
	if store == nil || !i.dirty {
		return nil
	}
	if err := store.SaveInterests(i.Snapshot()); err != nil {
		i.log.Warn("could not save interests", zap.Error(err))
		return err
	}
	i.dirty = false
	return nil
}
