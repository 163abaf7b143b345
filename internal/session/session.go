// Package session holds the working state of one profile edit and turns it into a
// memo for a single outgoing payment.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"profiledir/internal/budget"
	"profiledir/internal/domain"
	"profiledir/internal/fielddiff"
	"profiledir/internal/linktoken"
	"profiledir/internal/memo"
)

var (
	ErrUnknownRow       = errors.New("session: unknown link row")
	ErrUnknownField     = errors.New("session: unknown field")
	ErrInvalidURL       = errors.New("session: invalid link url")
	ErrNotDeletable     = errors.New("session: field cannot be deleted")
	ErrVerifiedReadOnly = errors.New("session: verified links can only be deleted")
	ErrAlreadyVerified  = errors.New("session: link is already verified")
	ErrNotNew           = errors.New("session: url already belongs to the profile")
)

// Option configures a Session.
type Option func(s *Session)

// WithValidator replaces the default url validator.
func WithValidator(v linktoken.Validator) Option {
	return func(s *Session) {
		if v != nil {
			s.valid = v
		}
	}
}

// WithRequestID fixes the request id instead of generating one.
func WithRequestID(id string) Option {
	return func(s *Session) {
		s.requestID = id
	}
}

// WithRowKeys replaces the row key generator.
func WithRowKeys(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newKey = gen
		}
	}
}

// Session is the working state of one profile edit. Sessions never share state; each
// one owns its draft and token set.
type Session struct {
	mu sync.Mutex

	original  domain.Profile
	values    fielddiff.Values
	deleted   map[domain.Field]bool
	rows      []domain.DraftLinkRow
	tokens    []linktoken.Token
	requestID string

	valid  linktoken.Validator
	newKey func() string
}

// New snapshots p and seeds the draft from it.
func New(p domain.Profile, opts ...Option) *Session {
	s := &Session{
		original: p.Clone(),
		valid:    linktoken.ValidURL,
		newKey:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.requestID == "" {
		s.requestID = uuid.NewString()
	}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.values = fielddiff.FromProfile(s.original)
	s.deleted = make(map[domain.Field]bool)
	s.rows = make([]domain.DraftLinkRow, 0, len(s.original.Links))
	for _, l := range s.original.Links {
		id := l.ID
		s.rows = append(s.rows, domain.DraftLinkRow{RowKey: s.newKey(), ID: &id, URL: l.URL})
	}
	s.tokens = nil
}

// Reset discards every edit.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// ProfileID returns the id of the edited profile.
func (s *Session) ProfileID() string {
	return s.original.ID
}

// Original returns a copy of the snapshot taken when the session started.
func (s *Session) Original() domain.Profile {
	return s.original.Clone()
}

// SetField sets the draft value of f and clears its delete flag.
func (s *Session) SetField(f domain.Field, value string) error {
	if _, ok := domain.ParseField(f.Code()); !ok {
		return ErrUnknownField
	}
	if f == domain.FieldAddress {
		if err := fielddiff.ValidateAddressEdit(s.original.AddressVerified); err != nil {
			return err
		}
	}
	if strings.Contains(value, `"`) {
		return memo.ErrQuoteInValue
	}
	if f == domain.FieldBio {
		if err := budget.Check(value); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[f] = value
	delete(s.deleted, f)
	return nil
}

// ClearField flags f for deletion.
func (s *Session) ClearField(f domain.Field) error {
	if !f.Deletable() {
		return ErrNotDeletable
	}
	if f == domain.FieldAddress {
		if err := fielddiff.ValidateAddressEdit(s.original.AddressVerified); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[f] = true
	return nil
}

// RestoreField drops any edit of f.
func (s *Session) RestoreField(f domain.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[f] = s.original.Value(f)
	delete(s.deleted, f)
}

// AddLink appends a new row and returns its key. When verify is set the row is marked
// for verification, which requires a valid url not already on the profile. Without
// verify an invalid url is kept in the draft and reported with ErrInvalidURL.
func (s *Session) AddLink(url string, verify bool) (string, error) {
	url = strings.TrimSpace(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if verify {
		if !s.valid(url) {
			return "", ErrInvalidURL
		}
		if s.isOriginalURL(url) {
			return "", ErrNotNew
		}
	}

	key := s.newKey()
	s.rows = append(s.rows, domain.DraftLinkRow{RowKey: key, URL: url})
	if verify {
		s.tokens = append(s.tokens, linktoken.CreateVerify(url))
	}
	s.recompute()

	if url != "" && !s.valid(url) {
		return key, ErrInvalidURL
	}
	return key, nil
}

// UpdateLink replaces the url of a row. Invalid urls are kept and reported with
// ErrInvalidURL; the algebra treats them as blank.
func (s *Session) UpdateLink(rowKey, url string) error {
	url = strings.TrimSpace(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.rowIndex(rowKey)
	if i < 0 {
		return ErrUnknownRow
	}
	if orig, ok := s.anchored(s.rows[i]); ok && orig.IsVerified && url != "" && url != orig.URL {
		return ErrVerifiedReadOnly
	}

	s.rows[i].URL = url
	s.recompute()

	if url != "" && !s.valid(url) {
		return ErrInvalidURL
	}
	return nil
}

// RemoveLink drops a row. Removing a row of an existing link records its deletion.
func (s *Session) RemoveLink(rowKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.rowIndex(rowKey)
	if i < 0 {
		return ErrUnknownRow
	}
	r := s.rows[i]
	s.rows = append(s.rows[:i:i], s.rows[i+1:]...)

	if orig, ok := s.anchored(r); ok {
		s.tokens = append(s.tokens, linktoken.Delete(orig.ID))
	} else {
		// The verify mark leaves with its row.
		drop := linktoken.CreateVerify(strings.TrimSpace(r.URL))
		kept := s.tokens[:0:0]
		for _, t := range s.tokens {
			if t != drop {
				kept = append(kept, t)
			}
		}
		s.tokens = kept
	}
	s.recompute()
	return nil
}

// RequestVerification marks a row for verification.
func (s *Session) RequestVerification(rowKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.rowIndex(rowKey)
	if i < 0 {
		return ErrUnknownRow
	}
	r := s.rows[i]

	if orig, ok := s.anchored(r); ok {
		if orig.IsVerified {
			return ErrAlreadyVerified
		}
		s.tokens = append(s.tokens, linktoken.Verify(orig.ID))
		s.recompute()
		return nil
	}

	url := strings.TrimSpace(r.URL)
	if !s.valid(url) {
		return ErrInvalidURL
	}
	if s.isOriginalURL(url) {
		return ErrNotNew
	}
	s.tokens = append(s.tokens, linktoken.CreateVerify(url))
	s.recompute()
	return nil
}

// Rows returns a copy of the draft link rows.
func (s *Session) Rows() []domain.DraftLinkRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneRows(s.rows)
}

// Tokens returns the current link tokens.
func (s *Session) Tokens() []linktoken.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]linktoken.Token(nil), s.tokens...)
}

// Diff returns the changed and deleted fields.
func (s *Session) Diff() fielddiff.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diff()
}

func (s *Session) diff() fielddiff.Result {
	return fielddiff.Collect(fielddiff.FromProfile(s.original), s.values, s.deleted, s.original.AddressVerified)
}

// Payload assembles the memo payload. The request id is only attached when there is
// something to submit.
func (s *Session) Payload() memo.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.diff()
	p := memo.Payload{
		EntityID: s.original.ID,
		Changes:  d.Changes,
		Deleted:  d.Deleted,
		Links:    append([]linktoken.Token(nil), s.tokens...),
	}
	if !p.Empty() {
		p.RequestID = s.requestID
	}
	return p
}

// Dirty reports whether the draft differs from the snapshot.
func (s *Session) Dirty() bool {
	return !s.Payload().Empty()
}

// Memo encodes the payload and enforces the memo byte budget.
func (s *Session) Memo() (string, error) {
	m, err := memo.Encode(s.Payload())
	if err != nil {
		return "", err
	}
	if err := budget.Check(m); err != nil {
		return m, err
	}
	return m, nil
}

// Payment is the outgoing payment request of a session.
type Payment struct {
	Memo string
	URI  string
}

// Payment encodes the memo once and builds the payment request that carries it to
// address.
func (s *Session) Payment(scheme, address string, amount decimal.Decimal) (Payment, error) {
	m, err := s.Memo()
	if err != nil {
		return Payment{}, err
	}
	uri, err := memo.PaymentURI(scheme, address, amount, m)
	if err != nil {
		return Payment{}, err
	}
	return Payment{Memo: m, URI: uri}, nil
}

// BioRemaining returns the encoded bytes left for the draft bio.
func (s *Session) BioRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return budget.Remaining(s.values[domain.FieldBio])
}

func (s *Session) recompute() {
	s.tokens = linktoken.Compute(s.original.Links, s.rows, s.tokens, s.valid)
}

func (s *Session) rowIndex(key string) int {
	for i, r := range s.rows {
		if r.RowKey == key {
			return i
		}
	}
	return -1
}

func (s *Session) anchored(r domain.DraftLinkRow) (domain.Link, bool) {
	if r.IsNew() {
		return domain.Link{}, false
	}
	return s.original.LinkByID(*r.ID)
}

func (s *Session) isOriginalURL(url string) bool {
	for _, l := range s.original.Links {
		if l.URL == url {
			return true
		}
	}
	return false
}
