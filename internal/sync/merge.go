// Package sync keeps the local store consistent with the remote
// multi-tenant store across disconnection and concurrent edits.
package sync

import "github.com/yhsiang/shopledger/internal/models"

// Decision is the outcome of a merge comparison.
type Decision string

const (
	DecisionKeepLocal   Decision = "keep_local"
	DecisionApplyRemote Decision = "apply_remote"
)

// Merge resolves a (local, remote) record pair using last-write-wins
// on the updatedAt timestamps. The policy is per-record: a winning
// remote record replaces the entire local record.
//
// A nil local means the record is new here, so remote wins. Ties keep
// the existing local copy to avoid needless rewrites. Records without
// a resolvable timestamp compare as the zero time and always lose.
func Merge(local, remote models.Record) Decision {
	if local == nil {
		return DecisionApplyRemote
	}
	if remote.UpdatedAt().After(local.UpdatedAt()) {
		return DecisionApplyRemote
	}
	return DecisionKeepLocal
}
