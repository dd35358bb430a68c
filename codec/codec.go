/*
Package codec implements a canonical, CBOR-friendly serialization shape:
flat node lists for every Rga (traversal order is reconstructed on decode,
never stored), and NodeIds reduced to their (uuid, event-string) pair. It
stands in for a full DAG-CBOR/IPLD block store without pulling one in —
see DESIGN.md for why plain CBOR, via github.com/fxamacker/cbor/v2, was
judged sufficient.

Every decode function takes a parseEvent callback, since the event type
is caller-defined and opaque to this module.
*/
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/storacha/md-merge/changeset"
	"github.com/storacha/md-merge/doctree"
	"github.com/storacha/md-merge/mdast"
	"github.com/storacha/md-merge/rga"
)

// ParseReplicaEvent parses the "<replica>#<seq>" form produced by
// rga.ReplicaEvent.String back into a ReplicaEvent. It is the parseEvent
// callback every decode function in this package expects, when the caller
// is using rga.ReplicaEvent as their Event implementation.
func ParseReplicaEvent(s string) (rga.Event, error) {
	replica, seqStr, ok := strings.Cut(s, "#")
	if !ok {
		return nil, fmt.Errorf("codec: malformed replica event %q", s)
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("codec: malformed replica event %q: %w", s, err)
	}
	return rga.ReplicaEvent{Replica: replica, Seq: seq}, nil
}

// +-------------+
// | Wire shapes |
// +-------------+

type wireNodeID struct {
	UUID  string `cbor:"uuid"`
	Event string `cbor:"event"`
}

type wireAstNode struct {
	Type       string         `cbor:"type,omitempty"`
	Attributes map[string]any `cbor:"attributes,omitempty"`
	Children   []wireAstNode  `cbor:"children,omitempty"`
	Raw        string         `cbor:"raw,omitempty"`
}

// wireTreeNode is either a parent (Type/Attributes/Children set, Leaf nil)
// or a leaf (Leaf set, everything else omitted), expressed as one struct
// with mutually exclusive omitempty fields rather than a tagged sum type,
// since CBOR has no native union.
type wireTreeNode struct {
	Type       string         `cbor:"type,omitempty"`
	Attributes map[string]any `cbor:"attributes,omitempty"`
	Children   *wireRga       `cbor:"children,omitempty"`
	Leaf       *wireAstNode   `cbor:"leaf,omitempty"`
}

type wireRgaNode struct {
	ID        wireNodeID   `cbor:"id"`
	Value     wireTreeNode `cbor:"value"`
	AfterID   *wireNodeID  `cbor:"afterId,omitempty"`
	Tombstone bool         `cbor:"tombstone,omitempty"`
}

// wireRga is the on-the-wire form of an Rga<V>: a flat node list.
type wireRga struct {
	Nodes []wireRgaNode `cbor:"nodes"`
}

// +------------------+
// | Tree en/decoding |
// +------------------+

// EncodeTree serializes tree to CBOR bytes.
func EncodeTree(tree doctree.RgaTreeNode) ([]byte, error) {
	return cbor.Marshal(toWireTreeNode(tree))
}

// DecodeTree deserializes CBOR bytes produced by EncodeTree back into an
// RgaTreeNode.
func DecodeTree(data []byte, parseEvent func(string) (rga.Event, error), cmp rga.Comparator) (doctree.RgaTreeNode, error) {
	var w wireTreeNode
	if err := cbor.Unmarshal(data, &w); err != nil {
		return doctree.RgaTreeNode{}, fmt.Errorf("codec: decode tree: %w", err)
	}
	return fromWireTreeNode(w, parseEvent, cmp)
}

func toWireTreeNode(node doctree.RgaTreeNode) wireTreeNode {
	if node.IsLeaf() {
		return wireTreeNode{Leaf: toWireAstNode(node.Leaf)}
	}
	return wireTreeNode{
		Type:       node.Type,
		Attributes: node.Attributes,
		Children:   toWireRga(node.Children),
	}
}

func fromWireTreeNode(w wireTreeNode, parseEvent func(string) (rga.Event, error), cmp rga.Comparator) (doctree.RgaTreeNode, error) {
	if w.Leaf != nil {
		leaf := fromWireAstNode(w.Leaf)
		return doctree.RgaTreeNode{Type: leaf.Type, Leaf: leaf}, nil
	}
	children, err := fromWireRga(w.Children, parseEvent, cmp)
	if err != nil {
		return doctree.RgaTreeNode{}, err
	}
	return doctree.RgaTreeNode{Type: w.Type, Attributes: normalizeAttributes(w.Attributes), Children: children}, nil
}

// normalizeAttributes undoes cbor's decode-into-interface{} behavior, which
// turns every CBOR integer into an int64 or uint64 rather than the plain
// int every attribute in package mdast (heading "depth", list "start") was
// encoded from. Without this, the round-tripped value fails mdast's `.(int)`
// assertions and silently falls back to its zero value.
func normalizeAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch n := v.(type) {
		case uint64:
			out[k] = int(n)
		case int64:
			out[k] = int(n)
		default:
			out[k] = v
		}
	}
	return out
}

func toWireRga(r *rga.Rga[doctree.RgaTreeNode]) *wireRga {
	all := r.ToAllNodes()
	nodes := make([]wireRgaNode, len(all))
	for i, n := range all {
		nodes[i] = wireRgaNode{
			ID:        toWireNodeID(n.ID),
			Value:     toWireTreeNode(n.Value),
			AfterID:   toWireNodeIDPtr(n.AfterID),
			Tombstone: n.Tombstoned,
		}
	}
	return &wireRga{Nodes: nodes}
}

func fromWireRga(w *wireRga, parseEvent func(string) (rga.Event, error), cmp rga.Comparator) (*rga.Rga[doctree.RgaTreeNode], error) {
	if w == nil {
		return rga.New[doctree.RgaTreeNode](doctree.Fingerprint, cmp), nil
	}
	nodes := make([]rga.Node[doctree.RgaTreeNode], len(w.Nodes))
	for i, wn := range w.Nodes {
		id, err := fromWireNodeID(wn.ID, parseEvent)
		if err != nil {
			return nil, err
		}
		value, err := fromWireTreeNode(wn.Value, parseEvent, cmp)
		if err != nil {
			return nil, err
		}
		after, err := fromWireNodeIDPtr(wn.AfterID, parseEvent)
		if err != nil {
			return nil, err
		}
		nodes[i] = rga.Node[doctree.RgaTreeNode]{ID: id, Value: value, AfterID: after, Tombstoned: wn.Tombstone}
	}
	return rga.FromNodes(nodes, doctree.Fingerprint, cmp), nil
}

func toWireNodeID(id rga.NodeID) wireNodeID {
	return wireNodeID{UUID: id.UUID.String(), Event: id.Event.String()}
}

func toWireNodeIDPtr(id *rga.NodeID) *wireNodeID {
	if id == nil {
		return nil
	}
	w := toWireNodeID(*id)
	return &w
}

func fromWireNodeID(w wireNodeID, parseEvent func(string) (rga.Event, error)) (rga.NodeID, error) {
	u, err := uuid.Parse(w.UUID)
	if err != nil {
		return rga.NodeID{}, fmt.Errorf("codec: malformed node uuid %q: %w", w.UUID, err)
	}
	event, err := parseEvent(w.Event)
	if err != nil {
		return rga.NodeID{}, fmt.Errorf("codec: malformed node event %q: %w", w.Event, err)
	}
	return rga.NodeID{UUID: u, Event: event}, nil
}

func fromWireNodeIDPtr(w *wireNodeID, parseEvent func(string) (rga.Event, error)) (*rga.NodeID, error) {
	if w == nil {
		return nil, nil
	}
	id, err := fromWireNodeID(*w, parseEvent)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func toWireAstNode(n *mdast.Node) *wireAstNode {
	if n == nil {
		return nil
	}
	var children []wireAstNode
	if len(n.Children) > 0 {
		children = make([]wireAstNode, len(n.Children))
		for i, c := range n.Children {
			children[i] = *toWireAstNode(c)
		}
	}
	return &wireAstNode{Type: n.Type, Attributes: n.Attributes, Children: children, Raw: n.Raw}
}

func fromWireAstNode(w *wireAstNode) *mdast.Node {
	if w == nil {
		return nil
	}
	var children []*mdast.Node
	if len(w.Children) > 0 {
		children = make([]*mdast.Node, len(w.Children))
		for i := range w.Children {
			children[i] = fromWireAstNode(&w.Children[i])
		}
	}
	return &mdast.Node{Type: w.Type, Attributes: normalizeAttributes(w.Attributes), Children: children, Raw: w.Raw}
}

func toWireAstNodes(nodes []*mdast.Node) []wireAstNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]wireAstNode, len(nodes))
	for i, n := range nodes {
		out[i] = *toWireAstNode(n)
	}
	return out
}

func fromWireAstNodes(nodes []wireAstNode) []*mdast.Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*mdast.Node, len(nodes))
	for i := range nodes {
		out[i] = fromWireAstNode(&nodes[i])
	}
	return out
}

// +-----------------------+
// | Changeset en/decoding |
// +-----------------------+

type wireChange struct {
	Type       string        `cbor:"type"`
	ParentPath []wireNodeID  `cbor:"parentPath,omitempty"`
	TargetID   *wireNodeID   `cbor:"targetId,omitempty"`
	AfterID    *wireNodeID   `cbor:"afterId,omitempty"`
	Nodes      []wireAstNode `cbor:"nodes,omitempty"`
	Before     []wireAstNode `cbor:"before,omitempty"`
}

type wireChangeSet struct {
	Event   string       `cbor:"event"`
	Changes []wireChange `cbor:"changes"`
}

// EncodeChangeSet serializes cs to CBOR bytes.
func EncodeChangeSet(cs changeset.ChangeSet) ([]byte, error) {
	w := wireChangeSet{Event: cs.Event.String()}
	for _, c := range cs.Changes {
		w.Changes = append(w.Changes, wireChange{
			Type:       string(c.Type),
			ParentPath: toWireNodeIDs(c.ParentPath),
			TargetID:   toWireNodeIDPtr(c.TargetID),
			AfterID:    toWireNodeIDPtr(c.AfterID),
			Nodes:      toWireAstNodes(c.Nodes),
			Before:     toWireAstNodes(c.Before),
		})
	}
	return cbor.Marshal(w)
}

// DecodeChangeSet deserializes CBOR bytes produced by EncodeChangeSet.
func DecodeChangeSet(data []byte, parseEvent func(string) (rga.Event, error)) (changeset.ChangeSet, error) {
	var w wireChangeSet
	if err := cbor.Unmarshal(data, &w); err != nil {
		return changeset.ChangeSet{}, fmt.Errorf("codec: decode changeset: %w", err)
	}
	event, err := parseEvent(w.Event)
	if err != nil {
		return changeset.ChangeSet{}, fmt.Errorf("codec: malformed changeset event %q: %w", w.Event, err)
	}
	cs := changeset.ChangeSet{Event: event}
	for _, wc := range w.Changes {
		parentPath, err := fromWireNodeIDs(wc.ParentPath, parseEvent)
		if err != nil {
			return changeset.ChangeSet{}, err
		}
		targetID, err := fromWireNodeIDPtr(wc.TargetID, parseEvent)
		if err != nil {
			return changeset.ChangeSet{}, err
		}
		afterID, err := fromWireNodeIDPtr(wc.AfterID, parseEvent)
		if err != nil {
			return changeset.ChangeSet{}, err
		}
		cs.Changes = append(cs.Changes, changeset.Change{
			Type:       changeset.ChangeType(wc.Type),
			ParentPath: parentPath,
			TargetID:   targetID,
			AfterID:    afterID,
			Nodes:      fromWireAstNodes(wc.Nodes),
			Before:     fromWireAstNodes(wc.Before),
		})
	}
	return cs, nil
}

func toWireNodeIDs(ids []rga.NodeID) []wireNodeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]wireNodeID, len(ids))
	for i, id := range ids {
		out[i] = toWireNodeID(id)
	}
	return out
}

func fromWireNodeIDs(ids []wireNodeID, parseEvent func(string) (rga.Event, error)) ([]rga.NodeID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]rga.NodeID, len(ids))
	for i, w := range ids {
		id, err := fromWireNodeID(w, parseEvent)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
