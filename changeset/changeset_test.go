package changeset_test

import (
	"testing"

	"github.com/storacha/md-merge/changeset"
	"github.com/storacha/md-merge/doctree"
	"github.com/storacha/md-merge/rga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(replica string, seq uint64) rga.Event {
	return rga.ReplicaEvent{Replica: replica, Seq: seq}
}

// S4 (nested addition preserves ids): build from "# H\n\nP1.\n" with r1;
// apply "# H\n\nP1.\n\nP2.\n" with r2. Heading and P1 retain their ids; P2
// is freshly minted under r2.
func TestComputeAndApplyInsertParagraph(t *testing.T) {
	tree, err := doctree.FromMarkdown("# H\n\nP1.\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)

	headingID, _ := tree.Children.IDAtIndex(0)
	paragraphID, _ := tree.Children.IDAtIndex(1)

	cs, err := changeset.ComputeChangeSet(tree, "# H\n\nP1.\n\nP2.\n", ev("r2", 1))
	require.NoError(t, err)
	require.NotEmpty(t, cs.Changes)

	updated := changeset.ApplyChangeSet(tree, cs, rga.CompareReplicaEvents)
	assert.Equal(t, "# H\n\nP1.\n\nP2.\n", doctree.ToMarkdown(updated))

	gotHeadingID, _ := updated.Children.IDAtIndex(0)
	gotParagraphID, _ := updated.Children.IDAtIndex(1)
	assert.Equal(t, headingID, gotHeadingID)
	assert.Equal(t, paragraphID, gotParagraphID)
	assert.Equal(t, 3, updated.Children.Len())
	p2ID, ok := updated.Children.IDAtIndex(2)
	require.True(t, ok)
	assert.Equal(t, ev("r2", 1), p2ID.Event)

	// The original tree must be untouched (apply clones the spine).
	assert.Equal(t, 2, tree.Children.Len())
}

// S5 (modify round-trip): "# H\n\nOld.\n" -> "# H\n\nNew.\n"; the heading's
// id is unchanged; projecting back to markdown equals the new input.
func TestComputeAndApplyModifyParagraph(t *testing.T) {
	tree, err := doctree.FromMarkdown("# H\n\nOld.\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)
	headingID, _ := tree.Children.IDAtIndex(0)

	cs, err := changeset.ComputeChangeSet(tree, "# H\n\nNew.\n", ev("r2", 1))
	require.NoError(t, err)

	updated := changeset.ApplyChangeSet(tree, cs, rga.CompareReplicaEvents)
	assert.Equal(t, "# H\n\nNew.\n", doctree.ToMarkdown(updated))

	gotHeadingID, _ := updated.Children.IDAtIndex(0)
	assert.Equal(t, headingID, gotHeadingID)
}

// Invariant 6 (ID preservation under unchanged content): resolving a
// changeset against the tree's own unchanged projection must be a no-op on
// every node's id.
func TestIDPreservationUnderUnchangedContent(t *testing.T) {
	tree, err := doctree.FromMarkdown("# H\n\n- i1\n- i2\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)

	before := doctree.ToMarkdown(tree)
	cs, err := changeset.ComputeChangeSet(tree, before, ev("r2", 1))
	require.NoError(t, err)
	assert.Empty(t, cs.Changes, "diffing a tree against its own unchanged projection should emit no changes")

	updated := changeset.ApplyChangeSet(tree, cs, rga.CompareReplicaEvents)
	assert.Equal(t, before, doctree.ToMarkdown(updated))

	oldIDs := allIDs(tree.Children)
	newIDs := allIDs(updated.Children)
	assert.Equal(t, oldIDs, newIDs)
}

func TestComputeAndApplyDeleteListItem(t *testing.T) {
	tree, err := doctree.FromMarkdown("- i1\n- i2\n- i3\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)

	cs, err := changeset.ComputeChangeSet(tree, "- i1\n- i3\n", ev("r2", 1))
	require.NoError(t, err)

	updated := changeset.ApplyChangeSet(tree, cs, rga.CompareReplicaEvents)
	assert.Equal(t, "- i1\n- i3\n", doctree.ToMarkdown(updated))
}

func allIDs(r *rga.Rga[doctree.RgaTreeNode]) []rga.NodeID {
	var out []rga.NodeID
	for _, n := range r.ToAllNodes() {
		out = append(out, n.ID)
		if !n.Value.IsLeaf() {
			out = append(out, allIDs(n.Value.Children)...)
		}
	}
	return out
}
