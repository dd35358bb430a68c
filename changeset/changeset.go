/*
Package changeset implements both halves of synchronizing an RGA-tree with
a freshly edited document: diffing an existing RGA-tree against a freshly
parsed AST into an ID-addressed Changeset, and applying such a Changeset
back against an RGA-tree.

Diffing happens in two passes. First, an internal, purely index-based diff
(see diff.go) walks both ASTs using an LCS over node fingerprints, in the
style of a classic rune-level edit-distance table generalized to AST
nodes. Second, every index-based change is resolved against the *existing*
RGA-tree into NodeId coordinates, so the emitted Changeset survives
concurrent edits that may have shifted index positions since it was
computed.
*/
package changeset

import (
	"github.com/storacha/md-merge/doctree"
	"github.com/storacha/md-merge/mdast"
	"github.com/storacha/md-merge/rga"
)

// ChangeType names the three operations a changeset can carry.
type ChangeType string

const (
	Insert ChangeType = "insert"
	Delete ChangeType = "delete"
	Modify ChangeType = "modify"
)

// Change is one ID-addressed operation. ParentPath locates the RGA the
// change applies within, by walking NodeIds
// rather than indices, so it survives concurrent structural edits.
type Change struct {
	Type       ChangeType
	ParentPath []rga.NodeID
	TargetID   *rga.NodeID
	AfterID    *rga.NodeID
	Nodes      []*mdast.Node
	Before     []*mdast.Node
}

// ChangeSet is an ordered list of Changes plus the event attributed to all
// of them.
type ChangeSet struct {
	Event   rga.Event
	Changes []Change
}

// ComputeChangeSet diffs tree's current projection against newMd and
// resolves the result into an ID-addressed ChangeSet.
func ComputeChangeSet(tree doctree.RgaTreeNode, newMd string, event rga.Event) (ChangeSet, error) {
	newRoot, err := mdast.Parse(newMd)
	if err != nil {
		return ChangeSet{}, err
	}
	oldRoot := doctree.ToAst(tree)

	var raw []indexChange
	diffLevel(oldRoot.Children, newRoot.Children, nil, &raw)

	return ChangeSet{Event: event, Changes: resolveChanges(tree, raw)}, nil
}

// resolveChanges resolves every index-based change against tree, dropping
// any whose path no longer leads anywhere.
func resolveChanges(tree doctree.RgaTreeNode, changes []indexChange) []Change {
	var out []Change
	for _, ic := range changes {
		if change, ok := resolveOne(tree, ic); ok {
			out = append(out, change)
		}
	}
	return out
}

func resolveOne(tree doctree.RgaTreeNode, ic indexChange) (Change, bool) {
	current := tree
	var parentPath []rga.NodeID
	for _, idx := range ic.Path[:len(ic.Path)-1] {
		if current.IsLeaf() {
			return Change{}, false
		}
		id, ok := current.Children.IDAtIndex(idx)
		if !ok {
			return Change{}, false
		}
		node, ok := current.Children.Get(id)
		if !ok {
			return Change{}, false
		}
		parentPath = append(parentPath, id)
		current = node.Value
	}
	if current.IsLeaf() {
		return Change{}, false
	}

	pk := ic.Path[len(ic.Path)-1]
	change := Change{Type: ic.Type, ParentPath: parentPath, Nodes: ic.Nodes, Before: ic.Before}
	switch ic.Type {
	case Delete:
		id, ok := current.Children.IDAtIndex(pk)
		if !ok {
			return Change{}, false
		}
		change.TargetID = &id
	case Insert:
		if after, ok := current.Children.PredecessorForIndex(pk); ok {
			change.AfterID = &after
		}
	case Modify:
		id, ok := current.Children.IDAtIndex(pk)
		if !ok {
			return Change{}, false
		}
		change.TargetID = &id
		if after, ok := current.Children.PredecessorForIndex(pk); ok {
			change.AfterID = &after
		}
	}
	return change, true
}

// ApplyChangeSet deep-clones tree's spine and applies every change of cs
// against the clone, by walking ParentPath as NodeIds rather than indices.
// A change whose path cannot be resolved against the current tree is
// silently dropped: the node it targeted has been concurrently removed,
// and the deletion already won.
func ApplyChangeSet(tree doctree.RgaTreeNode, cs ChangeSet, cmp rga.Comparator) doctree.RgaTreeNode {
	result := doctree.Clone(tree)
	for _, change := range cs.Changes {
		applyOne(result, change, cs.Event, cmp)
	}
	return result
}

func applyOne(root doctree.RgaTreeNode, change Change, event rga.Event, cmp rga.Comparator) {
	current := root
	for _, id := range change.ParentPath {
		if current.IsLeaf() {
			return
		}
		node, ok := current.Children.Get(id)
		if !ok || node.Value.IsLeaf() {
			return
		}
		current = node.Value
	}
	if current.IsLeaf() {
		return
	}

	switch change.Type {
	case Delete:
		if change.TargetID != nil {
			current.Children.Delete(*change.TargetID)
		}
	case Insert:
		insertNodes(current, change.AfterID, change.Nodes, event, cmp)
	case Modify:
		if change.TargetID == nil {
			return
		}
		current.Children.Delete(*change.TargetID)
		insertNodes(current, change.AfterID, change.Nodes, event, cmp)
	}
}

// insertNodes converts each AST node to a fresh RGA-tree node and inserts
// it, chaining each subsequent insert off the previous one's new id so
// multi-node inserts preserve their order.
func insertNodes(parent doctree.RgaTreeNode, after *rga.NodeID, nodes []*mdast.Node, event rga.Event, cmp rga.Comparator) {
	for _, astNode := range nodes {
		treeNode := doctree.ToRgaTree(astNode, event, cmp)
		id := parent.Children.Insert(after, treeNode, event)
		after = &id
	}
}
