package auctionpay

import (
	"errors"
	"fmt"
)

// FlowError is a structured failure surfaced to the orchestrator's caller.
// It carries which step failed and enough context (token, amounts, indexes)
// to decide whether retrying the whole flow is safe. No error kind is
// recovered silently inside the core.
type FlowError struct {
	Code    string                 `json:"code"`
	Action  Action                 `json:"action,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *FlowError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s: %s", e.Action, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes, one per failure kind.
const (
	// ErrCodePriceUnavailable: a feed read failed or returned zero, or the
	// paying token resolves to no supported feed. Fatal, never retried; a
	// zero or defaulted price would silently mis-price fees.
	ErrCodePriceUnavailable = "price_unavailable"
	// ErrCodeEstimationFailed: gas simulation reverted, usually an unmet
	// on-chain precondition such as insufficient balance.
	ErrCodeEstimationFailed = "estimation_failed"
	// ErrCodeSponsorshipRejected: the fee sponsor declined the
	// authorization; the chain collaborator's revert reason is carried
	// verbatim.
	ErrCodeSponsorshipRejected = "sponsorship_rejected"
	// ErrCodeBatchPartialFailure: one or more transactions in a submitted
	// batch failed. Earlier elements may have been mined; nothing is
	// rolled back and the residual state (e.g. a dangling approval) is
	// surfaced to the caller.
	ErrCodeBatchPartialFailure = "batch_partial_failure"
	// ErrCodeArtifactUnresolved: storage polling exhausted its retry
	// budget. The uploaded content is not deleted.
	ErrCodeArtifactUnresolved = "artifact_unresolved"
)

// NewFlowError creates a structured flow error.
func NewFlowError(code string, message string, details map[string]interface{}) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WithAction tags the error with the caller-facing operation it failed in.
func (e *FlowError) WithAction(action Action) *FlowError {
	e.Action = action
	return e
}

// IsCode reports whether err is a FlowError with the given code.
func IsCode(err error, code string) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
