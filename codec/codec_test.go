package codec_test

import (
	"testing"

	"github.com/storacha/md-merge/changeset"
	"github.com/storacha/md-merge/codec"
	"github.com/storacha/md-merge/doctree"
	"github.com/storacha/md-merge/rga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(replica string, seq uint64) rga.Event {
	return rga.ReplicaEvent{Replica: replica, Seq: seq}
}

func TestTreeRoundTrip(t *testing.T) {
	tree, err := doctree.FromMarkdown("# H\n\n- i1\n- i2\n\n[go](https://go.dev)\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)

	data, err := codec.EncodeTree(tree)
	require.NoError(t, err)

	decoded, err := codec.DecodeTree(data, codec.ParseReplicaEvent, rga.CompareReplicaEvents)
	require.NoError(t, err)

	assert.Equal(t, doctree.ToMarkdown(tree), doctree.ToMarkdown(decoded))

	wantID, _ := tree.Children.IDAtIndex(0)
	gotID, _ := decoded.Children.IDAtIndex(0)
	assert.Equal(t, wantID, gotID)
}

func TestTreeRoundTripPreservesTombstones(t *testing.T) {
	tree, err := doctree.FromMarkdown("- i1\n- i2\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)
	list := tree.Children.ToArray()[0]
	id, _ := list.Children.IDAtIndex(0)
	list.Children.Delete(id)

	data, err := codec.EncodeTree(tree)
	require.NoError(t, err)
	decoded, err := codec.DecodeTree(data, codec.ParseReplicaEvent, rga.CompareReplicaEvents)
	require.NoError(t, err)

	decodedList := decoded.Children.ToArray()[0]
	assert.Equal(t, 1, decodedList.Children.Len())
	assert.Equal(t, 2, len(decodedList.Children.ToAllNodes()))
}

func TestChangeSetRoundTrip(t *testing.T) {
	tree, err := doctree.FromMarkdown("# H\n\nP1.\n", ev("r1", 1), rga.CompareReplicaEvents)
	require.NoError(t, err)

	cs, err := changeset.ComputeChangeSet(tree, "# H\n\nP1.\n\nP2.\n", ev("r2", 1))
	require.NoError(t, err)
	require.NotEmpty(t, cs.Changes)

	data, err := codec.EncodeChangeSet(cs)
	require.NoError(t, err)

	decoded, err := codec.DecodeChangeSet(data, codec.ParseReplicaEvent)
	require.NoError(t, err)
	require.Equal(t, len(cs.Changes), len(decoded.Changes))

	applied := changeset.ApplyChangeSet(tree, decoded, rga.CompareReplicaEvents)
	assert.Equal(t, "# H\n\nP1.\n\nP2.\n", doctree.ToMarkdown(applied))
}
