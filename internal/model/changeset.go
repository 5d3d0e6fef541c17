package model

import "sort"

// ChangeSet is the set of object ids mutated by one unit of work.
type ChangeSet map[ObjectID]struct{}

// NewChangeSet builds a ChangeSet from ids, collapsing duplicates.
func NewChangeSet(ids ...ObjectID) ChangeSet {
	cs := make(ChangeSet, len(ids))
	for _, id := range ids {
		cs[id] = struct{}{}
	}
	return cs
}

// Add inserts id.
func (cs ChangeSet) Add(id ObjectID) {
	cs[id] = struct{}{}
}

// Has reports whether id changed.
func (cs ChangeSet) Has(id ObjectID) bool {
	_, ok := cs[id]
	return ok
}

// Len returns the number of changed ids.
func (cs ChangeSet) Len() int {
	return len(cs)
}

// Merge adds every id of other into cs.
func (cs ChangeSet) Merge(other ChangeSet) {
	for id := range other {
		cs[id] = struct{}{}
	}
}

// IDs returns the changed ids in ascending order.
func (cs ChangeSet) IDs() []ObjectID {
	ids := make([]ObjectID, 0, len(cs))
	for id := range cs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// UnitOfWork is what the ledger reports after applying one block.
type UnitOfWork struct {
	Block     uint64     // Block number (monotonic)
	ChangeSet ChangeSet  // Objects written or removed by the block
	Ops       []OpResult // Operations in application order, with their results
}
