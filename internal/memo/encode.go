// Package memo serializes a pending edit into the compact text carried by a payment
// memo, and parses it back.
//
// Grammar:
//
//	memo     := "{z:" id (",rid:" requestId)? (",a:" quoted)? ("," pair)* "}"
//	pair     := shortKey ":" ( quoted | arrayLit )
//	arrayLit := "[" (quoted ("," quoted)*)? "]"
//	quoted   := '"' rawText '"'
//
// Quoted text is not escaped, so values containing '"' are rejected.
package memo

import (
	"errors"
	"strings"

	"profiledir/internal/domain"
	"profiledir/internal/fielddiff"
	"profiledir/internal/linktoken"
)

var (
	ErrNoEntity     = errors.New("memo: entity id is required")
	ErrBadID        = errors.New("memo: id contains reserved characters")
	ErrQuoteInValue = errors.New("memo: value contains a double quote")
	ErrMalformed    = errors.New("memo: malformed memo")
)

// reserved cannot appear in unquoted ids.
const reserved = `{}[]:,"`

// Payload is everything a memo carries.
type Payload struct {
	EntityID  string
	RequestID string
	Changes   []fielddiff.Change
	Deleted   []domain.Field
	Links     []linktoken.Token
}

// Empty reports whether p carries no edit at all.
func (p Payload) Empty() bool {
	return p.RequestID == "" && len(p.Changes) == 0 && len(p.Deleted) == 0 && len(p.Links) == 0
}

// Encode renders p. The address change, when present, always follows rid; the other
// changes keep their order; links go under "l" and deletions under "d".
func Encode(p Payload) (string, error) {
	if p.EntityID == "" {
		return "", ErrNoEntity
	}
	if strings.ContainsAny(p.EntityID, reserved) || strings.ContainsAny(p.RequestID, reserved) {
		return "", ErrBadID
	}

	var b strings.Builder
	b.WriteString("{" + domain.KeyEntity + ":")
	b.WriteString(p.EntityID)

	if p.RequestID != "" {
		b.WriteString("," + domain.KeyRequest + ":")
		b.WriteString(p.RequestID)
	}

	for _, c := range p.Changes {
		if c.Field != domain.FieldAddress {
			continue
		}
		if err := writePair(&b, c.Field.Code(), c.Value); err != nil {
			return "", err
		}
		break
	}

	for _, c := range p.Changes {
		if c.Field == domain.FieldAddress {
			continue
		}
		if err := writePair(&b, c.Field.Code(), c.Value); err != nil {
			return "", err
		}
	}

	if len(p.Links) > 0 {
		if err := writeArray(&b, domain.KeyLinks, linktoken.Strings(p.Links)); err != nil {
			return "", err
		}
	}

	if len(p.Deleted) > 0 {
		codes := make([]string, len(p.Deleted))
		for i, f := range p.Deleted {
			codes[i] = f.Code()
		}
		if err := writeArray(&b, domain.KeyDeleted, codes); err != nil {
			return "", err
		}
	}

	b.WriteByte('}')
	return b.String(), nil
}

func writePair(b *strings.Builder, key, value string) error {
	b.WriteByte(',')
	b.WriteString(key)
	b.WriteByte(':')
	return writeQuoted(b, value)
}

func writeArray(b *strings.Builder, key string, values []string) error {
	b.WriteByte(',')
	b.WriteString(key)
	b.WriteString(":[")
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeQuoted(b, v); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

func writeQuoted(b *strings.Builder, v string) error {
	if strings.Contains(v, `"`) {
		return ErrQuoteInValue
	}
	b.WriteByte('"')
	b.WriteString(v)
	b.WriteByte('"')
	return nil
}
