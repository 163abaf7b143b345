// Package fielddiff collects changed and deleted free-text fields of a profile draft.
package fielddiff

import (
	"errors"

	"profiledir/internal/domain"
)

// ErrAddressImmutable is returned when an unverified address is edited. Such an
// address can only be fixed by registering a new profile.
var ErrAddressImmutable = errors.New("fielddiff: address is not verified and cannot be changed")

// Values holds free-text field values keyed by field.
type Values map[domain.Field]string

// FromProfile extracts the editable values of p.
func FromProfile(p domain.Profile) Values {
	v := make(Values, len(domain.Fields))
	for _, f := range domain.Fields {
		v[f] = p.Value(f)
	}
	return v
}

// Change is one entry of the changed-field map.
type Change struct {
	Field domain.Field
	Value string
}

// Result is the outcome of Collect.
type Result struct {
	// Changes is ordered by domain.Fields, which is also the memo order.
	Changes []Change
	Deleted []domain.Field
}

// Empty reports whether the result carries nothing to submit.
func (r Result) Empty() bool {
	return len(r.Changes) == 0 && len(r.Deleted) == 0
}

// Value returns the changed value of f.
func (r Result) Value(f domain.Field) (string, bool) {
	for _, c := range r.Changes {
		if c.Field == f {
			return c.Value, true
		}
	}
	return "", false
}

// Collect compares draft against original. A field is changed when it is not flagged
// deleted, its draft value is non-empty and differs from the original. A field is
// deleted when flagged and it has a deletion code. Address changes and deletions are
// dropped unless addressVerified.
func Collect(original, draft Values, deleted map[domain.Field]bool, addressVerified bool) Result {
	var res Result
	for _, f := range domain.Fields {
		if f == domain.FieldAddress && !addressVerified {
			continue
		}
		if deleted[f] {
			if f.Deletable() {
				res.Deleted = append(res.Deleted, f)
			}
			continue
		}
		v := draft[f]
		if v != "" && v != original[f] {
			res.Changes = append(res.Changes, Change{Field: f, Value: v})
		}
	}
	return res
}

// ValidateAddressEdit rejects any address edit on a profile whose address is not
// verified.
func ValidateAddressEdit(addressVerified bool) error {
	if !addressVerified {
		return ErrAddressImmutable
	}
	return nil
}
