// Command mdrga-demo bootstraps a Markdown document on one replica, applies
// a sequence of edits from two simulated replicas independently, merges
// their trees back together, and prints the converged Markdown.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/storacha/md-merge/doctree"
	"github.com/storacha/md-merge/rga"
)

var seedFlag = flag.String("seed", "# Shopping list\n\n- Eggs\n- Milk\n", "markdown to bootstrap the document with")

func main() {
	flag.Parse()

	base, err := doctree.FromMarkdown(*seedFlag, rga.ReplicaEvent{Replica: "bootstrap", Seq: 1}, rga.CompareReplicaEvents)
	if err != nil {
		log.Fatalf("parsing seed markdown: %v", err)
	}
	log.Printf("bootstrapped:\n%s", doctree.ToMarkdown(base))

	alice := doctree.Clone(base)
	bob := doctree.Clone(base)

	appendListItem(&alice, "Bread", rga.ReplicaEvent{Replica: "alice", Seq: 2})
	log.Printf("alice, independently:\n%s", doctree.ToMarkdown(alice))

	appendListItem(&bob, "Butter", rga.ReplicaEvent{Replica: "bob", Seq: 2})
	log.Printf("bob, independently:\n%s", doctree.ToMarkdown(bob))

	merged := doctree.MergeTrees(alice, bob)
	fmt.Printf("merged:\n%s", doctree.ToMarkdown(merged))
}

// appendListItem appends a new "- text" item to the first list found at the
// document's top level, using the RGA-tree primitives directly — the same
// primitives package changeset drives from a parsed diff.
func appendListItem(tree *doctree.RgaTreeNode, text string, event rga.Event) {
	for _, child := range tree.Children.ToArray() {
		if child.Type != "list" {
			continue
		}
		lastID, ok := child.Children.IDAtIndex(child.Children.Len() - 1)
		var after *rga.NodeID
		if ok {
			after = &lastID
		}
		item, err := doctree.FromMarkdown(text+"\n", event, rga.CompareReplicaEvents)
		if err != nil {
			log.Fatalf("parsing item markdown: %v", err)
		}
		paragraph := item.Children.ToArray()[0]
		listItem := doctree.RgaTreeNode{
			Type:     "listItem",
			Children: rga.FromArray([]doctree.RgaTreeNode{paragraph}, event, doctree.Fingerprint, rga.CompareReplicaEvents),
		}
		child.Children.Insert(after, listItem, event)
		return
	}
}
