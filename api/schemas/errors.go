package schemas

import "fmt"

// -- Pipeline Error Taxonomy --
// Every step failure surfaces as one of these typed errors so batch callers
// can inspect partial progress with errors.As instead of string matching.

// InputError marks a request rejected before any network call was made.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// VerificationError marks an OAuth verification that failed: transport error,
// non-success status, or an id that could not be extracted.
type VerificationError struct {
	Platform Platform
	Detail   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s verification failed: %s", e.Platform, e.Detail)
}

// PinError marks a label-pinning call that failed or returned no URI.
type PinError struct {
	Label string
	Err   error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("failed to pin label '%s': %v", e.Label, e.Err)
}

func (e *PinError) Unwrap() error { return e.Err }

// NodeCreationError marks an atom creation whose submission threw or whose
// confirmation reported failure. Created reflects the atoms that landed in
// this invocation before the failure.
type NodeCreationError struct {
	Atom    string // which atom: "wallet", "predicate", "subject"
	TxHash  string // empty if the submission itself failed
	Created CreatedFlags
	Err     error
}

func (e *NodeCreationError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s atom creation failed (tx %s): %v", e.Atom, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s atom creation failed: %v", e.Atom, e.Err)
}

func (e *NodeCreationError) Unwrap() error { return e.Err }

// EdgeCreationError marks a triple creation whose submission threw or whose
// confirmation reported failure.
type EdgeCreationError struct {
	TxHash  string
	Created CreatedFlags
	Err     error
}

func (e *EdgeCreationError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("triple creation failed (tx %s): %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("triple creation failed: %v", e.Err)
}

func (e *EdgeCreationError) Unwrap() error { return e.Err }

// AlreadyLinkedError signals that the claim triple already exists on the
// ledger. The pipeline reports it with Success and AlreadyLinked both set, so
// callers can tell the success-equivalent outcome apart by type.
type AlreadyLinkedError struct {
	TripleID string
}

func (e *AlreadyLinkedError) Error() string {
	return fmt.Sprintf("claim triple %s already exists", e.TripleID)
}
