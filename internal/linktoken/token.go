// Package linktoken implements the compact token vocabulary that carries link-level
// intent inside a memo, and the algebra that derives it from an edit draft.
package linktoken

import (
	"strconv"
	"strings"
)

// Token is one atomic link-level intent:
//
//	+<url>       create a new, unverified link
//	+!<url>      create a new link and request its verification
//	+<id>:<url>  change the url of existing link id
//	-<id>        delete existing link id
//	!<id>        request verification for existing link id
type Token string

// Kind discriminates the token forms.
type Kind int

const (
	KindInvalid Kind = iota
	KindCreate
	KindCreateVerify
	KindEdit
	KindDelete
	KindVerify
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindCreateVerify:
		return "create_verify"
	case KindEdit:
		return "edit"
	case KindDelete:
		return "delete"
	case KindVerify:
		return "verify"
	}
	return "invalid"
}

// Parsed is the decoded form of a Token.
type Parsed struct {
	Kind Kind
	ID   int64
	URL  string
}

// Token renders p back into its wire form.
func (p Parsed) Token() Token {
	switch p.Kind {
	case KindCreate:
		return Create(p.URL)
	case KindCreateVerify:
		return CreateVerify(p.URL)
	case KindEdit:
		return Edit(p.ID, p.URL)
	case KindDelete:
		return Delete(p.ID)
	case KindVerify:
		return Verify(p.ID)
	}
	return ""
}

func Create(url string) Token       { return Token("+" + url) }
func CreateVerify(url string) Token { return Token("+!" + url) }
func Edit(id int64, url string) Token {
	return Token("+" + strconv.FormatInt(id, 10) + ":" + url)
}
func Delete(id int64) Token { return Token("-" + strconv.FormatInt(id, 10)) }
func Verify(id int64) Token { return Token("!" + strconv.FormatInt(id, 10)) }

// Parse decodes t. Malformed tokens return ok == false.
func Parse(t Token) (Parsed, bool) {
	s := string(t)
	if len(s) < 2 {
		return Parsed{}, false
	}
	rest := s[1:]
	switch s[0] {
	case '+':
		if strings.HasPrefix(rest, "!") {
			if len(rest) == 1 {
				return Parsed{}, false
			}
			return Parsed{Kind: KindCreateVerify, URL: rest[1:]}, true
		}
		if i := strings.IndexByte(rest, ':'); i > 0 {
			if id, ok := parseID(rest[:i]); ok {
				if i == len(rest)-1 {
					return Parsed{}, false
				}
				return Parsed{Kind: KindEdit, ID: id, URL: rest[i+1:]}, true
			}
		}
		return Parsed{Kind: KindCreate, URL: rest}, true
	case '-':
		if id, ok := parseID(rest); ok {
			return Parsed{Kind: KindDelete, ID: id}, true
		}
	case '!':
		if id, ok := parseID(rest); ok {
			return Parsed{Kind: KindVerify, ID: id}, true
		}
	}
	return Parsed{}, false
}

func parseID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Strings converts tokens to plain strings, for the memo encoder.
func Strings(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	return out
}

// FromStrings is the inverse of Strings.
func FromStrings(ss []string) []Token {
	out := make([]Token, len(ss))
	for i, s := range ss {
		out[i] = Token(s)
	}
	return out
}
