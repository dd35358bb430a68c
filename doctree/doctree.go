/*
Package doctree builds an RGA-tree over a Markdown AST (package mdast), in
which every ordered child collection has been replaced, recursively, by an
rga.Rga instance. The resulting tree is the unit two replicas actually
converge on — it is what gets mutated by package changeset, merged
directly by MergeTrees, and round-tripped to bytes by package codec.

A causal tree conventionally ties a single RGA to one flat sequence; here
the same RGA type nests inside itself, once per ordered-children
collection in the document, generalizing "parent owns an RGA, RGA owns its
nodes" to a tree of RGAs instead of one.
*/
package doctree

import (
	"github.com/storacha/md-merge/mdast"
	"github.com/storacha/md-merge/rga"
)

// RgaTreeNode is either a Leaf (Children nil, content carried verbatim in
// Leaf) or a Parent (Children non-nil, an Rga over further RgaTreeNodes).
// The root of a document is always a Parent with Type "root".
type RgaTreeNode struct {
	Type       string
	Attributes map[string]any
	Children   *rga.Rga[RgaTreeNode]
	Leaf       *mdast.Node
}

// IsLeaf reports whether n has no ordered child collection.
func (n RgaTreeNode) IsLeaf() bool { return n.Children == nil }

// Fingerprint is the RGA-tree fingerprint function: for a leaf, the
// external AST fingerprint (stringified Markdown); for a
// parent, a canonical serialization of its type and attributes only,
// deliberately excluding Children so that two parents with the same shape
// but different content fingerprint identically. Package changeset
// fingerprints AST nodes the same way when diffing; it never influences
// traversal order.
func Fingerprint(n RgaTreeNode) string {
	if n.IsLeaf() {
		return mdast.Fingerprint(n.Leaf)
	}
	return mdast.CanonicalAttributes(n.Type, n.Attributes)
}

// ToRgaTree walks astNode depth-first and builds the corresponding
// RgaTreeNode, substituting every ordered children list with a fresh Rga
// built via rga.FromArray under the given event and comparator.
func ToRgaTree(astNode *mdast.Node, event rga.Event, cmp rga.Comparator) RgaTreeNode {
	if astNode.IsLeaf() {
		return RgaTreeNode{Type: astNode.Type, Leaf: astNode}
	}
	children := make([]RgaTreeNode, len(astNode.Children))
	for i, c := range astNode.Children {
		children[i] = ToRgaTree(c, event, cmp)
	}
	return RgaTreeNode{
		Type:       astNode.Type,
		Attributes: astNode.Attributes,
		Children:   rga.FromArray(children, event, Fingerprint, cmp),
	}
}

// ToAst is the inverse projection: each parent's visible children sequence
// is mapped back to AST nodes, recursively. Tombstoned nodes vanish here,
// never in the Rga itself.
func ToAst(node RgaTreeNode) *mdast.Node {
	if node.IsLeaf() {
		return node.Leaf
	}
	visible := node.Children.ToArray()
	children := make([]*mdast.Node, len(visible))
	for i, c := range visible {
		children[i] = ToAst(c)
	}
	return &mdast.Node{Type: node.Type, Attributes: node.Attributes, Children: children}
}

// FromMarkdown parses md and builds an RGA-tree over it, bootstrapped under
// a single event.
func FromMarkdown(md string, event rga.Event, cmp rga.Comparator) (RgaTreeNode, error) {
	root, err := mdast.Parse(md)
	if err != nil {
		return RgaTreeNode{}, err
	}
	return ToRgaTree(root, event, cmp), nil
}

// ToMarkdown projects tree back to an AST and stringifies it.
func ToMarkdown(tree RgaTreeNode) string {
	return mdast.Stringify(ToAst(tree))
}

// Clone deep-clones tree: every Rga along the spine is copied, recursively,
// so that mutating the clone can never reach the original. Leaf AST nodes
// are shared immutably, since they are never mutated in place.
func Clone(node RgaTreeNode) RgaTreeNode {
	if node.IsLeaf() {
		return node
	}
	all := node.Children.ToAllNodes()
	cloned := make([]rga.Node[RgaTreeNode], len(all))
	for i, n := range all {
		cloned[i] = rga.Node[RgaTreeNode]{
			ID:         n.ID,
			Value:      Clone(n.Value),
			AfterID:    n.AfterID,
			Tombstoned: n.Tombstoned,
		}
	}
	return RgaTreeNode{
		Type:       node.Type,
		Attributes: node.Attributes,
		Children:   rga.FromNodes(cloned, node.Children.Fingerprint(), node.Children.Comparator()),
	}
}

// MergeTrees merges b into a, recursively: parents present in both sides
// merge their Children Rgas (union of nodes, OR of tombstones, recursing
// into nodes present on both sides); nodes present on only one side carry
// their entire subtree in unchanged. a and b must share the same root
// shape (both are Parents of the same Type); the result reuses a's Type
// and Attributes.
func MergeTrees(a, b RgaTreeNode) RgaTreeNode {
	if a.IsLeaf() || b.IsLeaf() {
		return a
	}
	bAll := b.Children.ToAllNodes()
	bByID := make(map[rga.NodeID]rga.Node[RgaTreeNode], len(bAll))
	for _, n := range bAll {
		bByID[n.ID] = n
	}

	aAll := a.Children.ToAllNodes()
	seen := make(map[rga.NodeID]bool, len(aAll))
	merged := make([]rga.Node[RgaTreeNode], 0, len(aAll)+len(bAll))
	for _, an := range aAll {
		seen[an.ID] = true
		value := an.Value
		tombstoned := an.Tombstoned
		if bn, ok := bByID[an.ID]; ok {
			if !value.IsLeaf() && !bn.Value.IsLeaf() {
				value = MergeTrees(value, bn.Value)
			}
			if bn.Tombstoned {
				tombstoned = true
			}
		}
		merged = append(merged, rga.Node[RgaTreeNode]{
			ID:         an.ID,
			Value:      value,
			AfterID:    an.AfterID,
			Tombstoned: tombstoned,
		})
	}
	for _, bn := range bAll {
		if !seen[bn.ID] {
			merged = append(merged, bn)
		}
	}

	return RgaTreeNode{
		Type:       a.Type,
		Attributes: a.Attributes,
		Children:   rga.FromNodes(merged, a.Children.Fingerprint(), a.Children.Comparator()),
	}
}

// Fork produces an independent RgaTree seeded from tree's current visible
// state, under a fresh event — the supplemented "spin up a new collaborator
// session without replaying the whole op log" operation mirroring the
// teacher's CausalTree.Fork. Every node in the result is freshly minted;
// none of the original node identities survive, which is the point: a
// fork is a brand new participant, not a resumed replica.
func Fork(tree RgaTreeNode, event rga.Event) RgaTreeNode {
	cmp := tree.Children.Comparator()
	return ToRgaTree(ToAst(tree), event, cmp)
}
