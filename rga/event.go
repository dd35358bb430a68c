package rga

import "fmt"

// ReplicaEvent is a ready-to-use Event implementation: a replica name paired
// with a per-replica logical counter, in the spirit of a classic
// site+timestamp identifier. It is not required by the CRDT — any type
// implementing Event works — but most callers want something like it.
type ReplicaEvent struct {
	Replica string
	Seq     uint64
}

// String renders the event as "<replica>#<seq>", which also doubles as its
// wire representation (see codec.ParseReplicaEvent).
func (e ReplicaEvent) String() string {
	return fmt.Sprintf("%s#%d", e.Replica, e.Seq)
}

// CompareReplicaEvents orders ReplicaEvents most-recent-sequence-first, then
// by replica name. "Most recent first" is deliberate, not arbitrary: when
// two nodes share a predecessor — one freshly inserted, one already part of
// the tree — the newer one must sort closer to that predecessor, or
// inserting "after X" would never actually land next to X once X already
// has a successor. Ties (two inserts from different replicas at the same
// logical step) fall back to replica name, ascending.
//
// A caller is free to supply any other total order for their own Event
// type; the CRDT treats Event as opaque and trusts whatever Comparator it
// is given — event precedence is a caller policy, not a CRDT property.
// This ordering is merely the one every test and the demo in this repo
// uses.
func CompareReplicaEvents(a, b Event) int {
	ea, eb := a.(ReplicaEvent), b.(ReplicaEvent)
	if ea.Seq != eb.Seq {
		if ea.Seq > eb.Seq {
			return -1
		}
		return 1
	}
	if ea.Replica != eb.Replica {
		if ea.Replica < eb.Replica {
			return -1
		}
		return 1
	}
	return 0
}
