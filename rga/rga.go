/*
Package rga implements a Replicated Growable Array (RGA): a causal-tree
sequence CRDT.

Every element carries a unique identifier and a pointer to the element it
was inserted after (its causal predecessor). Concurrent siblings — elements
inserted after the same predecessor from different replicas — are ordered
deterministically by an externally supplied comparator over their creation
events, with the element's UUID as a final tie-break. Deletions are
tombstones: the element stays in the map so that concurrent operations
still referencing it as a predecessor continue to resolve.

This gives the type its central property: two replicas that have observed
the same set of elements produce the identical visible sequence, regardless
of the order operations were received or merged in.
*/
package rga

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// +-----------------------+
// | Basic data structures |
// +-----------------------+

// Event is a caller-supplied opaque identity for the source of an edit
// (replica, session, causality token). Its string representation is used
// as the secondary component of a NodeID's identity; the total order
// between events, which is the primary sibling tie-break during traversal,
// is supplied separately via a Comparator.
type Event interface {
	fmt.Stringer
}

// Comparator totally orders two events, returning a negative number if a
// sorts before b, a positive number if a sorts after b, and zero if they
// are equivalent for ordering purposes. It must be pure and must agree
// across every replica that will ever merge, or convergence is lost.
type Comparator func(a, b Event) int

// NodeID identifies a node across every replica. Two NodeIDs are equal iff
// their UUID and their event's string representation are equal.
type NodeID struct {
	UUID  uuid.UUID
	Event Event
}

// String renders the id as "<uuid>@<event>", useful for debugging and log
// output.
func (id NodeID) String() string {
	return fmt.Sprintf("%s@%s", id.UUID, id.Event)
}

// key returns the comparable map key backing a NodeID. UUIDs are already
// comparable; events are reduced to their string form, per spec.
func (id NodeID) key() nodeKey {
	return nodeKey{id.UUID, id.Event.String()}
}

type nodeKey struct {
	uuid  uuid.UUID
	event string
}

// Node is one element of an Rga. Once created, ID and AfterID never change;
// Tombstoned only ever transitions from false to true; Value is never
// mutated in place (a modification is a delete followed by an insert).
type Node[T any] struct {
	ID         NodeID
	Value      T
	AfterID    *NodeID // nil means "after the virtual root"
	Tombstoned bool
}

// Rga is a Replicated Growable Array: a map from NodeID to Node, ordered
// purely as a function of the node set, the event comparator below and
// each node's UUID — never by insertion order or map iteration order.
type Rga[T any] struct {
	nodes       map[nodeKey]Node[T]
	fingerprint func(T) string
	cmp         Comparator
}

// New creates an empty Rga. fingerprint is a pure function producing a
// stable content hash of a value; the Rga only stores it, for callers to
// read back through Fingerprint, and never calls it itself. cmp totally
// orders the opaque Event type used by every node inserted into this Rga.
func New[T any](fingerprint func(T) string, cmp Comparator) *Rga[T] {
	return &Rga[T]{
		nodes:       make(map[nodeKey]Node[T]),
		fingerprint: fingerprint,
		cmp:         cmp,
	}
}

// FromArray builds an Rga by inserting items sequentially, each one after
// the previous, all attributed to the same event.
func FromArray[T any](items []T, event Event, fingerprint func(T) string, cmp Comparator) *Rga[T] {
	r := New[T](fingerprint, cmp)
	var after *NodeID
	for _, item := range items {
		id := r.Insert(after, item, event)
		after = &id
	}
	return r
}

// FromNodes rebuilds an Rga directly from a flat node list, the shape used
// on the wire (§6: "a flat list; traversal order is reconstructed on
// decode"). Node identity, not list order, determines the result.
func FromNodes[T any](nodes []Node[T], fingerprint func(T) string, cmp Comparator) *Rga[T] {
	r := New[T](fingerprint, cmp)
	for _, node := range nodes {
		r.nodes[node.ID.key()] = node
	}
	return r
}

// Fingerprint returns this Rga's content-hash function, so that callers
// building nested structures (see package doctree) can reuse it.
func (r *Rga[T]) Fingerprint() func(T) string { return r.fingerprint }

// Comparator returns this Rga's event comparator.
func (r *Rga[T]) Comparator() Comparator { return r.cmp }

// +------------+
// | Operations |
// +------------+

// Insert creates a new node after the node identified by after (nil for
// the virtual root), with the given value and event, and returns its new
// NodeID. No idempotence check is needed: collisions between freshly
// minted UUIDs are statistically impossible.
func (r *Rga[T]) Insert(after *NodeID, value T, event Event) NodeID {
	id := NodeID{UUID: uuid.New(), Event: event}
	node := Node[T]{ID: id, Value: value, AfterID: after}
	r.nodes[id.key()] = node
	return id
}

// Delete tombstones the node with the given id. A missing id is a no-op,
// so repeated deletes of the same id (e.g. replayed from a peer) are safe.
func (r *Rga[T]) Delete(id NodeID) {
	k := id.key()
	node, ok := r.nodes[k]
	if !ok {
		return
	}
	node.Tombstoned = true
	r.nodes[k] = node
}

// Get returns the node with the given id, if present (tombstoned or not).
func (r *Rga[T]) Get(id NodeID) (Node[T], bool) {
	node, ok := r.nodes[id.key()]
	return node, ok
}

// Merge folds another Rga's node set into this one. Nodes absent locally
// are copied in; nodes present in both have their tombstone flags OR'd
// together. Values and AfterIDs are never overwritten, since they are
// invariant per id. Merge is commutative, associative and idempotent on
// the node set, so the visible sequence it produces is a deterministic
// function of the union of both node sets.
func (r *Rga[T]) Merge(other *Rga[T]) {
	for k, remote := range other.nodes {
		local, ok := r.nodes[k]
		if !ok {
			r.nodes[k] = remote
			continue
		}
		if remote.Tombstoned && !local.Tombstoned {
			local.Tombstoned = true
			r.nodes[k] = local
		}
	}
}

// Clone returns a copy of the Rga that shares no mutable state with the
// original at this level. If T itself owns further Rgas (as doctree parent
// nodes do), a caller needing a fully independent spine must clone those
// nested Rgas too — see doctree.Clone, which does exactly that.
func (r *Rga[T]) Clone() *Rga[T] {
	clone := New[T](r.fingerprint, r.cmp)
	for k, node := range r.nodes {
		clone.nodes[k] = node
	}
	return clone
}

// Len returns the number of non-tombstoned nodes.
func (r *Rga[T]) Len() int {
	return len(r.visibleKeys())
}

// +-----------+
// | Traversal |
// +-----------+

// groupKey identifies a sibling group: either the virtual root (hasParent
// false) or the children of a specific node.
type groupKey struct {
	hasParent bool
	parent    nodeKey
}

func afterGroupKey(after *NodeID) groupKey {
	if after == nil {
		return groupKey{hasParent: false}
	}
	return groupKey{hasParent: true, parent: after.key()}
}

// orderedKeys returns every node key in deterministic pre-order: children
// of the virtual root first (in sibling order), then recursively each
// child's own children, depth-first. This is the heart of convergence: it
// is a pure function of the node set plus the two comparators, independent
// of insertion order or map iteration order.
func (r *Rga[T]) orderedKeys() []nodeKey {
	children := make(map[groupKey][]nodeKey, len(r.nodes))
	for k, node := range r.nodes {
		gk := afterGroupKey(node.AfterID)
		children[gk] = append(children[gk], k)
	}
	for gk, ks := range children {
		r.sortSiblings(ks)
		children[gk] = ks
	}

	var out []nodeKey
	var walk func(gk groupKey)
	walk = func(gk groupKey) {
		for _, k := range children[gk] {
			out = append(out, k)
			walk(groupKey{hasParent: true, parent: k})
		}
	}
	walk(groupKey{hasParent: false})
	return out
}

// sortSiblings orders a sibling group by (event precedence, uuid
// lexicographic), per spec: event comparator is primary, the node's own
// uuid string breaks ties between nodes from indistinguishable events.
func (r *Rga[T]) sortSiblings(ks []nodeKey) {
	sort.Slice(ks, func(i, j int) bool {
		ni, nj := r.nodes[ks[i]], r.nodes[ks[j]]
		if c := r.cmp(ni.ID.Event, nj.ID.Event); c != 0 {
			return c < 0
		}
		return ni.ID.UUID.String() < nj.ID.UUID.String()
	})
}

func (r *Rga[T]) visibleKeys() []nodeKey {
	var out []nodeKey
	for _, k := range r.orderedKeys() {
		if !r.nodes[k].Tombstoned {
			out = append(out, k)
		}
	}
	return out
}

// ToArray returns the visible sequence of values: non-tombstoned nodes, in
// traversal order.
func (r *Rga[T]) ToArray() []T {
	keys := r.visibleKeys()
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = r.nodes[k].Value
	}
	return out
}

// ToNodes returns the visible sequence of nodes (excluding tombstones).
func (r *Rga[T]) ToNodes() []Node[T] {
	keys := r.visibleKeys()
	out := make([]Node[T], len(keys))
	for i, k := range keys {
		out[i] = r.nodes[k]
	}
	return out
}

// ToAllNodes returns every node in traversal order, including tombstones.
func (r *Rga[T]) ToAllNodes() []Node[T] {
	keys := r.orderedKeys()
	out := make([]Node[T], len(keys))
	for i, k := range keys {
		out[i] = r.nodes[k]
	}
	return out
}

// IDAtIndex returns the id at position i of the visible sequence.
func (r *Rga[T]) IDAtIndex(i int) (NodeID, bool) {
	keys := r.visibleKeys()
	if i < 0 || i >= len(keys) {
		return NodeID{}, false
	}
	return r.nodes[keys[i]].ID, true
}

// PredecessorForIndex returns the visible node id at position i-1, or ok
// equal to false when i is 0 — meaning "after the virtual root". It is
// used to resolve an index-based insertion into an afterId: inserting at
// the end of a sequence of length n is expressed as index n, which this
// resolves to the current last element.
func (r *Rga[T]) PredecessorForIndex(i int) (NodeID, bool) {
	if i <= 0 {
		return NodeID{}, false
	}
	keys := r.visibleKeys()
	idx := i - 1
	if idx >= len(keys) {
		idx = len(keys) - 1
	}
	if idx < 0 {
		return NodeID{}, false
	}
	return r.nodes[keys[idx]].ID, true
}
