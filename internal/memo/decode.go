package memo

import (
	"fmt"
	"strings"

	"profiledir/internal/domain"
	"profiledir/internal/fielddiff"
	"profiledir/internal/linktoken"
)

// Decode parses a memo produced by Encode.
func Decode(s string) (Payload, error) {
	var p Payload
	prefix := "{" + domain.KeyEntity + ":"
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, "}") || len(s) < len(prefix)+2 {
		return p, ErrMalformed
	}

	d := &decoder{s: s[len(prefix) : len(s)-1]}
	p.EntityID = d.bare()
	if p.EntityID == "" {
		return p, fmt.Errorf("%w: empty entity id", ErrMalformed)
	}

	for !d.done() {
		if err := d.expect(','); err != nil {
			return p, err
		}
		key := d.key()
		if err := d.expect(':'); err != nil {
			return p, err
		}

		switch key {
		case domain.KeyRequest:
			p.RequestID = d.bare()
		case domain.KeyLinks:
			vals, err := d.array()
			if err != nil {
				return p, err
			}
			p.Links = linktoken.FromStrings(vals)
		case domain.KeyDeleted:
			vals, err := d.array()
			if err != nil {
				return p, err
			}
			for _, v := range vals {
				f, ok := fieldByCode(v)
				if !ok || !f.Deletable() {
					return p, fmt.Errorf("%w: unknown deleted field %q", ErrMalformed, v)
				}
				p.Deleted = append(p.Deleted, f)
			}
		default:
			f, ok := fieldByCode(key)
			if !ok {
				return p, fmt.Errorf("%w: unknown key %q", ErrMalformed, key)
			}
			v, err := d.quoted()
			if err != nil {
				return p, err
			}
			p.Changes = append(p.Changes, fielddiff.Change{Field: f, Value: v})
		}
	}
	return p, nil
}

func fieldByCode(code string) (domain.Field, bool) {
	if len(code) != 1 {
		return 0, false
	}
	return domain.ParseField(code)
}

type decoder struct {
	s   string
	pos int
}

func (d *decoder) done() bool {
	return d.pos >= len(d.s)
}

func (d *decoder) expect(c byte) error {
	if d.done() || d.s[d.pos] != c {
		return fmt.Errorf("%w: expected %q at %d", ErrMalformed, c, d.pos)
	}
	d.pos++
	return nil
}

// bare reads an unquoted value up to the next comma.
func (d *decoder) bare() string {
	start := d.pos
	for !d.done() && d.s[d.pos] != ',' {
		d.pos++
	}
	return d.s[start:d.pos]
}

func (d *decoder) key() string {
	start := d.pos
	for !d.done() && d.s[d.pos] != ':' {
		d.pos++
	}
	return d.s[start:d.pos]
}

func (d *decoder) quoted() (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	end := strings.IndexByte(d.s[d.pos:], '"')
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string", ErrMalformed)
	}
	v := d.s[d.pos : d.pos+end]
	d.pos += end + 1
	return v, nil
}

func (d *decoder) array() ([]string, error) {
	if err := d.expect('['); err != nil {
		return nil, err
	}
	var out []string
	if !d.done() && d.s[d.pos] == ']' {
		d.pos++
		return out, nil
	}
	for {
		v, err := d.quoted()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if d.done() {
			return nil, fmt.Errorf("%w: unterminated array", ErrMalformed)
		}
		if d.s[d.pos] == ']' {
			d.pos++
			return out, nil
		}
		if err := d.expect(','); err != nil {
			return nil, err
		}
	}
}
