package handshake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidOTP = errors.New("handshake: otp must be a non-empty string of digits")
	ErrNoEntity   = errors.New("handshake: entity id is unknown")
	ErrInFlight   = errors.New("handshake: a verification is already in flight")
	ErrDisposed   = errors.New("handshake: disposed")
)

// State of a handshake.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateTerminal:
		return "terminal"
	}
	return "unknown"
}

// Option configures a Handshake.
type Option func(h *Handshake)

// WithOnSuccess registers fn to run once per successful verification, after the
// handshake has reached its terminal state.
func WithOnSuccess(fn func(ctx context.Context, entityID string)) Option {
	return func(h *Handshake) {
		h.onSuccess = fn
	}
}

// Handshake runs at most one verifier call at a time for a single entity.
type Handshake struct {
	entityID  string
	verifier  Verifier
	log       logrus.FieldLogger
	onSuccess func(ctx context.Context, entityID string)

	mu       sync.Mutex
	state    State
	outcome  Outcome
	cancel   context.CancelFunc
	disposed bool
}

// New creates an idle handshake for entityID.
func New(entityID string, verifier Verifier, logger logrus.FieldLogger, opts ...Option) *Handshake {
	h := &Handshake{
		entityID: entityID,
		verifier: verifier,
		log: logger.WithFields(logrus.Fields{
			"component": "handshake",
			"entity_id": entityID,
		}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Outcome returns the last terminal outcome. ok is false before the first one.
func (h *Handshake) Outcome() (Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome, h.state == StateTerminal
}

// Submit sends otp to the verifier and blocks until it answers. Invalid input leaves
// the handshake in its current state. A Submit while another is checking is rejected
// with ErrInFlight. No retry is attempted; a terminal handshake accepts a new Submit.
func (h *Handshake) Submit(ctx context.Context, otp string) (Outcome, error) {
	otp = strings.TrimSpace(otp)

	h.mu.Lock()
	switch {
	case h.disposed:
		h.mu.Unlock()
		return Outcome{}, ErrDisposed
	case h.state == StateChecking:
		h.mu.Unlock()
		return Outcome{}, ErrInFlight
	case h.entityID == "":
		h.mu.Unlock()
		return Outcome{}, ErrNoEntity
	case !validOTP(otp):
		h.mu.Unlock()
		return Outcome{}, ErrInvalidOTP
	}
	callCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.state = StateChecking
	h.mu.Unlock()

	h.log.Info("Submitting OTP to verifier")
	status, err := h.verifier.ConfirmOTP(callCtx, h.entityID, otp)
	cancel()
	out := Resolve(status, err)

	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		h.log.WithField("status", status).Debug("Discarding verifier answer after dispose")
		return Outcome{}, ErrDisposed
	}
	h.state = StateTerminal
	h.outcome = out
	h.cancel = nil
	h.mu.Unlock()

	log := h.log.WithFields(logrus.Fields{
		"status":  status,
		"success": out.Success,
	})
	if err != nil {
		log.WithError(err).Warn("Verifier call failed")
	} else if !status.Known() {
		log.Warn("Verifier returned an unknown status")
	} else {
		log.Info("Verification finished")
	}

	if out.Success && h.onSuccess != nil {
		h.onSuccess(ctx, h.entityID)
	}
	return out, nil
}

// Dispose abandons the handshake. An in-flight call is cancelled and its answer
// ignored.
func (h *Handshake) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.disposed = true
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func validOTP(otp string) bool {
	if otp == "" {
		return false
	}
	for i := 0; i < len(otp); i++ {
		if otp[i] < '0' || otp[i] > '9' {
			return false
		}
	}
	return true
}
