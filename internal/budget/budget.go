// Package budget computes how much free text still fits the memo transport once it
// is base64url encoded.
package budget

import (
	"errors"
	"fmt"
)

// MaxMemoBytes is the memo ceiling after base64url expansion.
const MaxMemoBytes = 512

// ErrOverBudget is wrapped by every OverflowError.
var ErrOverBudget = errors.New("budget: memo byte budget exceeded")

// OverflowError reports how many encoded bytes exceed the ceiling.
type OverflowError struct {
	Over int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("budget: %d bytes over the %d byte memo limit", e.Over, MaxMemoBytes)
}

func (e *OverflowError) Unwrap() error {
	return ErrOverBudget
}

// Encoded returns the base64url size of text's UTF-8 bytes, ceil(raw/3)*4.
func Encoded(text string) int {
	raw := len(text)
	return (raw + 2) / 3 * 4
}

// Remaining returns MaxMemoBytes minus the encoded size. Negative means overflow.
func Remaining(text string) int {
	return MaxMemoBytes - Encoded(text)
}

// Check returns an *OverflowError when text does not fit.
func Check(text string) error {
	if r := Remaining(text); r < 0 {
		return &OverflowError{Over: -r}
	}
	return nil
}
