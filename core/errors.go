package core

import "fmt"

// RevertKind enumerates the deterministic, observable revert reasons a
// transaction can produce (spec §4.3 / §7). A revert consumes the sender's
// nonce but otherwise leaves state untouched.
type RevertKind string

const (
	RevertInvalidNonce                  RevertKind = "InvalidNonce"
	RevertInsufficientBalance           RevertKind = "InsufficientBalance"
	RevertInsufficientStake             RevertKind = "InsufficientStake"
	RevertInsufficientNodeDetails       RevertKind = "InsufficientNodeDetails"
	RevertNodeDoesNotExist              RevertKind = "NodeDoesNotExist"
	RevertTokensLocked                  RevertKind = "TokensLocked"
	RevertLockedTokensUnstakeForbidden  RevertKind = "LockedTokensUnstakeForbidden"
	RevertAlreadySubmittedMeasurements  RevertKind = "AlreadySubmittedMeasurements"
	RevertOnlyGovernance                RevertKind = "OnlyGovernance"
	RevertCantSendToYourself            RevertKind = "CantSendToYourself"
	RevertEpochHasNotStarted            RevertKind = "EpochHasNotStarted"
	RevertEpochAlreadyStarted           RevertKind = "EpochAlreadyStarted"
)

// ExecutionError wraps a RevertKind with a human-readable detail string. It
// is the value carried by a Revert receipt; it is never panicked or
// returned as a Go `error` from the executor's top-level Execute method,
// since a revert is an expected, fully-specified outcome, not a fault.
type ExecutionError struct {
	Kind   RevertKind
	Detail string
}

func (e *ExecutionError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func revert(kind RevertKind, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// fatalf wraps an unexpected, non-deterministic failure (state-store commit
// failure, genesis decode failure, ...) the way pkg/utils.Wrap does
// elsewhere in the ambient stack. Fatal errors abort the node; there is no
// partial-state recovery path.
func fatalf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
