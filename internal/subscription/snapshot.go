package subscription

import (
	"sort"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Snapshot is a read-only view of the registry at one instant.
// It is safe for concurrent use and never changes after creation.
type Snapshot struct {
	objects map[model.ObjectID]Entry
	markets map[model.AssetPair]Entry
}

// ObjectMatch is a changed object id with the entry subscribed to it.
type ObjectMatch struct {
	ID    model.ObjectID
	Entry Entry
}

// Object returns the entry subscribed to id.
func (s Snapshot) Object(id model.ObjectID) (Entry, bool) {
	e, ok := s.objects[id]
	return e, ok
}

// Market returns the entry subscribed to pair.
func (s Snapshot) Market(pair model.AssetPair) (Entry, bool) {
	e, ok := s.markets[pair]
	return e, ok
}

// ObjectCount returns the number of object subscriptions.
func (s Snapshot) ObjectCount() int {
	return len(s.objects)
}

// MarketCount returns the number of market subscriptions.
func (s Snapshot) MarketCount() int {
	return len(s.markets)
}

// Empty reports whether the snapshot holds no subscriptions at all.
func (s Snapshot) Empty() bool {
	return len(s.objects) == 0 && len(s.markets) == 0
}

// MatchObjects intersects changed with the subscribed object ids.
// It walks whichever side is smaller; results are sorted by id.
func (s Snapshot) MatchObjects(changed model.ChangeSet) []ObjectMatch {
	if len(changed) == 0 || len(s.objects) == 0 {
		return nil
	}

	var matches []ObjectMatch
	if len(changed) <= len(s.objects) {
		for id := range changed {
			if e, ok := s.objects[id]; ok {
				matches = append(matches, ObjectMatch{ID: id, Entry: e})
			}
		}
	} else {
		for id, e := range s.objects {
			if changed.Has(id) {
				matches = append(matches, ObjectMatch{ID: id, Entry: e})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID.Less(matches[j].ID) })
	return matches
}
