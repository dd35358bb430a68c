package changeset

import "github.com/storacha/md-merge/mdast"

// indexChange is the internal, index-addressed form of a change, produced
// by diffLevel before any NodeId resolution happens. Path is a sequence of
// indices from the old AST root: every element but the last names a child
// to descend through; the last names the position of the change itself
// within the RGA reached by that descent.
type indexChange struct {
	Type   ChangeType
	Path   []int
	Nodes  []*mdast.Node
	Before []*mdast.Node
}

type matchPair struct {
	oldIdx, newIdx int
}

// diffLevel recursively diffs one pair of ordered child collections (old
// vs new), appending every emitted indexChange to out. It is the structural
// core of the changeset resolver: a classic rune-level edit-distance table,
// generalized from characters to AST node fingerprints and from a flat
// edit script to a path-addressed, recursive one.
func diffLevel(oldNodes, newNodes []*mdast.Node, path []int, out *[]indexChange) {
	oldFps := fingerprintAll(oldNodes)
	newFps := fingerprintAll(newNodes)
	matches := lcsMatches(oldFps, newFps)

	oPrev, nPrev := 0, 0
	for _, m := range matches {
		diffGap(oldNodes, newNodes, oPrev, m.oldIdx, nPrev, m.newIdx, path, out)

		// A match means the two nodes fingerprint equal; for leaves that is
		// full content equality (nothing left to do), but a parent's
		// fingerprint deliberately excludes its children (doctree.Fingerprint),
		// so matched parents must still be diffed one level deeper.
		old := oldNodes[m.oldIdx]
		if !old.IsLeaf() {
			diffLevel(old.Children, newNodes[m.newIdx].Children, appendPath(path, m.oldIdx), out)
		}
		oPrev, nPrev = m.oldIdx+1, m.newIdx+1
	}
	diffGap(oldNodes, newNodes, oPrev, len(oldNodes), nPrev, len(newNodes), path, out)
}

// diffGap processes the unmatched region old[oldStart:oldEnd] vs
// new[newStart:newEnd] left to right. Same-typed nodes at the same cursor
// position are paired: recursed into if both have children, emitted as a
// single modify otherwise. A type mismatch cannot be paired; this
// implementation resolves that by deleting the old leftover and retrying —
// a delete-biased policy; see DESIGN.md for the alternatives considered.
// Once the old side of the gap is exhausted, every remaining new node is
// emitted as one trailing insert.
func diffGap(oldNodes, newNodes []*mdast.Node, oldStart, oldEnd, newStart, newEnd int, path []int, out *[]indexChange) {
	o, n := oldStart, newStart
	for o < oldEnd && n < newEnd {
		if oldNodes[o].Type == newNodes[n].Type {
			childPath := appendPath(path, o)
			if !oldNodes[o].IsLeaf() && !newNodes[n].IsLeaf() {
				diffLevel(oldNodes[o].Children, newNodes[n].Children, childPath, out)
			} else {
				*out = append(*out, indexChange{
					Type:   Modify,
					Path:   childPath,
					Nodes:  []*mdast.Node{newNodes[n]},
					Before: []*mdast.Node{oldNodes[o]},
				})
			}
			o++
			n++
			continue
		}
		*out = append(*out, indexChange{
			Type:   Delete,
			Path:   appendPath(path, o),
			Before: []*mdast.Node{oldNodes[o]},
		})
		o++
	}
	for ; o < oldEnd; o++ {
		*out = append(*out, indexChange{
			Type:   Delete,
			Path:   appendPath(path, o),
			Before: []*mdast.Node{oldNodes[o]},
		})
	}
	if n < newEnd {
		*out = append(*out, indexChange{
			Type:  Insert,
			Path:  appendPath(path, oldEnd),
			Nodes: append([]*mdast.Node{}, newNodes[n:newEnd]...),
		})
	}
}

// lcsMatches computes a longest common subsequence between a and b by
// fingerprint equality and returns the matched index pairs in increasing
// order of both indices. Ties in the backtrack favor advancing the old
// index first.
func lcsMatches(a, b []string) []matchPair {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				dp[i][j] = dp[i+1][j+1] + 1
			case dp[i+1][j] >= dp[i][j+1]:
				dp[i][j] = dp[i+1][j]
			default:
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var matches []matchPair
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			matches = append(matches, matchPair{oldIdx: i, newIdx: j})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return matches
}

// fingerprintAll fingerprints each node the way doctree.Fingerprint
// fingerprints its RGA-tree counterpart: a leaf by its rendered Markdown, a
// parent by its type and attributes only.
func fingerprintAll(nodes []*mdast.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		if n.IsLeaf() {
			out[i] = mdast.Fingerprint(n)
		} else {
			out[i] = mdast.CanonicalAttributes(n.Type, n.Attributes)
		}
	}
	return out
}

func appendPath(path []int, idx int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = idx
	return out
}
