package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrBranchMismatch indicates a document referenced outside the caller's branch.
	ErrBranchMismatch = errors.New("document belongs to another branch")
	// ErrActorRequired indicates a request without a resolved actor.
	ErrActorRequired = errors.New("actor identity required")
)
