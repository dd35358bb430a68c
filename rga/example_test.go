package rga_test

import (
	"fmt"

	"github.com/storacha/md-merge/rga"
)

// Showcasing the main operations: build a sequence on one replica, clone
// it to simulate a second, diverge both, and merge them back together.
func Example() {
	fp := func(s string) string { return s }
	r1 := rga.ReplicaEvent{Replica: "r1", Seq: 1}
	r2 := rga.ReplicaEvent{Replica: "r2", Seq: 1}

	left := rga.FromArray([]string{"crdt", "is", "nice"}, r1, fp, rga.CompareReplicaEvents)
	right := left.Clone()

	niceID, _ := left.IDAtIndex(2)
	left.Delete(niceID)
	left.Insert(&niceID, "cool", rga.ReplicaEvent{Replica: "r1", Seq: 2})

	isID, _ := right.IDAtIndex(1)
	right.Insert(&isID, "really", rga.ReplicaEvent{Replica: "r2", Seq: 2})

	fmt.Println("left:", left.ToArray())
	fmt.Println("right:", right.ToArray())
	left.Merge(right)
	fmt.Println("merged:", left.ToArray())
	// Output:
	// left: [crdt is cool]
	// right: [crdt is really nice]
	// merged: [crdt is really cool]
}
