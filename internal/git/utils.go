package git

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// branchReference turns a user supplied --branch value into a reference.
// Full references are kept; short names are read as branches.
func branchReference(branch string) plumbing.ReferenceName {
	ref := plumbing.ReferenceName(branch)
	switch {
	case ref.IsBranch(), ref.IsTag(), ref.IsRemote(), ref.IsNote():
		return ref
	default:
		return plumbing.NewBranchReferenceName(branch)
	}
}
