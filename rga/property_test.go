package rga_test

import (
	"testing"

	"github.com/storacha/md-merge/rga"
	"pgregory.net/rapid"
)

// Models two replicas of a rga.Rga[rune] as plain rune slices, subject to
// random inserts, deletes and merges. After any sequence of operations the
// two replicas must agree on their visible sequence whenever they've
// observed the same set of operations (convergence).
type replicaModel struct {
	tree  *rga.Rga[rune]
	chars []rune
}

type twoReplicaMachine struct {
	replicas [2]*replicaModel
}

func (m *twoReplicaMachine) Init(t *rapid.T) {
	for i := range m.replicas {
		m.replicas[i] = &replicaModel{
			tree: rga.New[rune](func(r rune) string { return string(r) }, rga.CompareReplicaEvents),
		}
	}
}

func (m *twoReplicaMachine) event(t *rapid.T, replica int) rga.Event {
	seq := rapid.Uint64Range(0, 1<<20).Draw(t, "seq")
	name := "r0"
	if replica == 1 {
		name = "r1"
	}
	return rga.ReplicaEvent{Replica: name, Seq: seq}
}

func (m *twoReplicaMachine) InsertAt(t *rapid.T) {
	replica := rapid.IntRange(0, 1).Draw(t, "replica")
	r := m.replicas[replica]
	letters := []rune("abcdefg")
	ch := letters[rapid.IntRange(0, len(letters)-1).Draw(t, "ch")]
	i := rapid.IntRange(0, len(r.chars)).Draw(t, "i")

	after, _ := r.tree.PredecessorForIndex(i)
	var afterID *rga.NodeID
	if i > 0 {
		afterID = &after
	}
	r.tree.Insert(afterID, ch, m.event(t, replica))

	r.chars = append(r.chars[:i], append([]rune{ch}, r.chars[i:]...)...)
}

func (m *twoReplicaMachine) DeleteAt(t *rapid.T) {
	replica := rapid.IntRange(0, 1).Draw(t, "replica")
	r := m.replicas[replica]
	if len(r.chars) == 0 {
		t.Skip("empty")
	}
	i := rapid.IntRange(0, len(r.chars)-1).Draw(t, "i")
	id, ok := r.tree.IDAtIndex(i)
	if !ok {
		t.Skip("index raced out from under model")
	}
	r.tree.Delete(id)
	r.chars = append(r.chars[:i], r.chars[i+1:]...)
}

func (m *twoReplicaMachine) Sync(t *rapid.T) {
	a, b := m.replicas[0], m.replicas[1]
	merged := a.tree.Clone()
	merged.Merge(b.tree)
	a.tree = merged

	merged2 := b.tree.Clone()
	merged2.Merge(a.tree)
	b.tree = merged2

	// The model only tracks one replica's local chars; after a sync both
	// sides have observed the same node set, so their visible sequences
	// must agree with each other even though the rune-slice model doesn't
	// track merges itself.
	if string(a.tree.ToArray()) != string(b.tree.ToArray()) {
		t.Fatalf("replicas diverged after sync: %q vs %q", string(a.tree.ToArray()), string(b.tree.ToArray()))
	}
}

func (m *twoReplicaMachine) Check(t *rapid.T) {
	// Idempotence: merging a replica into itself changes nothing.
	a := m.replicas[0]
	before := a.tree.ToArray()
	clone := a.tree.Clone()
	clone.Merge(a.tree)
	if string(before) != string(clone.ToArray()) {
		t.Fatalf("merge(a, a) != a: %q vs %q", string(before), string(clone.ToArray()))
	}
}

func TestPropertyConvergence(t *testing.T) {
	rapid.Check(t, rapid.Run[*twoReplicaMachine]())
}
