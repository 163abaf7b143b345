// Package handshake submits a one-time passcode to the remote verifier and maps its
// answer onto a fixed set of terminal outcomes.
package handshake

import "context"

// Status is the closed set of answers of the remote verifier.
type Status string

const (
	StatusVerified               Status = "verified"
	StatusVerifiedNoPendingEdits Status = "verified_and_no_pending_edits"
	StatusInvalid                Status = "invalid"
	StatusLocked                 Status = "locked"
	StatusExpired                Status = "expired"
	StatusOTPAlreadyUsed         Status = "otp_already_used"
)

// Known reports whether s belongs to the verifier contract.
func (s Status) Known() bool {
	switch s {
	case StatusVerified, StatusVerifiedNoPendingEdits, StatusInvalid,
		StatusLocked, StatusExpired, StatusOTPAlreadyUsed:
		return true
	}
	return false
}

// Verifier confirms an OTP for an entity. The verifier is a black box: lock
// counters and expiry windows live on its side.
type Verifier interface {
	ConfirmOTP(ctx context.Context, entityID, otp string) (Status, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, entityID, otp string) (Status, error)

func (f VerifierFunc) ConfirmOTP(ctx context.Context, entityID, otp string) (Status, error) {
	return f(ctx, entityID, otp)
}

// Reason classifies a terminal outcome.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonEditsApplied
	ReasonAddressVerified
	ReasonInvalid
	ReasonLocked
	ReasonExpired
	ReasonAlreadyUsed
	ReasonFailure
)

var messages = map[Reason]string{
	ReasonEditsApplied:    "Verified. Your pending edits have been applied.",
	ReasonAddressVerified: "Verified. Your address is now verified; there were no pending edits to apply.",
	ReasonInvalid:         "That code is not valid. Check it and try again.",
	ReasonLocked:          "Too many wrong attempts. This code is locked; request a new one.",
	ReasonExpired:         "This code has expired. Request a new one.",
	ReasonAlreadyUsed:     "This code was already used. Request a new one to submit further edits.",
	ReasonFailure:         "Verification failed. Please try again later.",
}

// Message returns the user-facing text of r.
func (r Reason) Message() string {
	return messages[r]
}

// Outcome is a terminal handshake result.
type Outcome struct {
	Success bool
	Reason  Reason
	Status  Status
	Message string
	// Err holds the transport error, if any.
	Err error
}

// Resolve maps a verifier answer to its outcome. Transport errors and statuses
// outside the contract are generic failures.
func Resolve(status Status, err error) Outcome {
	if err != nil {
		return outcome(false, ReasonFailure, status, err)
	}
	switch status {
	case StatusVerified:
		return outcome(true, ReasonEditsApplied, status, nil)
	case StatusVerifiedNoPendingEdits:
		return outcome(true, ReasonAddressVerified, status, nil)
	case StatusInvalid:
		return outcome(false, ReasonInvalid, status, nil)
	case StatusLocked:
		return outcome(false, ReasonLocked, status, nil)
	case StatusExpired:
		return outcome(false, ReasonExpired, status, nil)
	case StatusOTPAlreadyUsed:
		return outcome(false, ReasonAlreadyUsed, status, nil)
	}
	return outcome(false, ReasonFailure, status, nil)
}

func outcome(ok bool, r Reason, s Status, err error) Outcome {
	return Outcome{Success: ok, Reason: r, Status: s, Message: r.Message(), Err: err}
}
