package session

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profiledir/internal/budget"
	"profiledir/internal/domain"
	"profiledir/internal/fielddiff"
	"profiledir/internal/linktoken"
	"profiledir/internal/memo"
)

func testProfile(addressVerified bool) domain.Profile {
	return domain.Profile{
		ID:              "42",
		Address:         "zs1old",
		Name:            "alice",
		Bio:             "hello",
		AddressVerified: addressVerified,
		Links: []domain.Link{
			{ID: 1, URL: "https://a.com"},
			{ID: 2, URL: "https://b.com", IsVerified: true},
			{ID: 5, URL: "https://e.com"},
		},
	}
}

func counterKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("row-%d", n)
	}
}

func newTestSession(t *testing.T, p domain.Profile) *Session {
	t.Helper()
	return New(p, WithRequestID("req-1"), WithRowKeys(counterKeys()))
}

// keyOf returns the row key of the draft row anchored to link id.
func keyOf(t *testing.T, s *Session, id int64) string {
	t.Helper()
	for _, r := range s.Rows() {
		if r.ID != nil && *r.ID == id {
			return r.RowKey
		}
	}
	t.Fatalf("no row for link %d", id)
	return ""
}

func TestNew_CleanSession(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	assert.False(t, s.Dirty())
	assert.Empty(t, s.Tokens())
	assert.Len(t, s.Rows(), 3)

	m, err := s.Memo()
	require.NoError(t, err)
	assert.Equal(t, "{z:42}", m, "A session without edits encodes the minimal form")
}

func TestSetField(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	require.NoError(t, s.SetField(domain.FieldName, "Alice"))
	assert.True(t, s.Dirty())

	m, err := s.Memo()
	require.NoError(t, err)
	assert.Equal(t, `{z:42,rid:req-1,n:"Alice"}`, m)

	require.NoError(t, s.SetField(domain.FieldName, "alice"))
	assert.False(t, s.Dirty(), "Setting a field back to its original value is not an edit")

	err = s.SetField(domain.FieldBio, `say "hi"`)
	assert.ErrorIs(t, err, memo.ErrQuoteInValue)
}

func TestSetField_AddressGate(t *testing.T) {
	unverified := newTestSession(t, testProfile(false))
	assert.ErrorIs(t, unverified.SetField(domain.FieldAddress, "zs1new"), fielddiff.ErrAddressImmutable)
	assert.ErrorIs(t, unverified.ClearField(domain.FieldAddress), fielddiff.ErrAddressImmutable)
	assert.False(t, unverified.Dirty())

	verified := newTestSession(t, testProfile(true))
	require.NoError(t, verified.SetField(domain.FieldAddress, "zs1new"))
	require.NoError(t, verified.SetField(domain.FieldName, "Alice"))

	m, err := verified.Memo()
	require.NoError(t, err)
	assert.Equal(t, `{z:42,rid:req-1,a:"zs1new",n:"Alice"}`, m)
}

func TestClearAndRestoreField(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	require.NoError(t, s.ClearField(domain.FieldBio))
	m, err := s.Memo()
	require.NoError(t, err)
	assert.Equal(t, `{z:42,rid:req-1,d:["b"]}`, m)

	assert.ErrorIs(t, s.ClearField(domain.FieldDisplayName), ErrNotDeletable)

	s.RestoreField(domain.FieldBio)
	assert.False(t, s.Dirty())

	require.NoError(t, s.ClearField(domain.FieldBio))
	require.NoError(t, s.SetField(domain.FieldBio, "new bio"))
	assert.Equal(t, fielddiff.Result{
		Changes: []fielddiff.Change{{Field: domain.FieldBio, Value: "new bio"}},
	}, s.Diff(), "Setting a field clears its delete flag")
}

func TestSetField_BioBudget(t *testing.T) {
	s := newTestSession(t, testProfile(false))
	assert.Equal(t, budget.MaxMemoBytes-8, s.BioRemaining())

	err := s.SetField(domain.FieldBio, strings.Repeat("x", 400))
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrOverBudget)

	var over *budget.OverflowError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 24, over.Over)

	assert.False(t, s.Dirty(), "A rejected bio must not reach the draft")
}

func TestMemo_OverBudget(t *testing.T) {
	s := newTestSession(t, testProfile(false))
	require.NoError(t, s.SetField(domain.FieldName, strings.Repeat("n", 400)))

	m, err := s.Memo()
	assert.ErrorIs(t, err, budget.ErrOverBudget)
	assert.NotEmpty(t, m)

	_, err = s.Payment("zcash", "zs1dir", decimal.Zero)
	assert.ErrorIs(t, err, budget.ErrOverBudget)
}

func TestLinks_AddAndUpdate(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	key, err := s.AddLink("https://new.com", false)
	require.NoError(t, err)
	assert.Equal(t, []linktoken.Token{"+https://new.com"}, s.Tokens())

	require.NoError(t, s.UpdateLink(key, "https://new2.com"))
	assert.Equal(t, []linktoken.Token{"+https://new2.com"}, s.Tokens())

	require.NoError(t, s.UpdateLink(keyOf(t, s, 1), "https://a.com/v2"))
	assert.Equal(t, []linktoken.Token{"+1:https://a.com/v2", "+https://new2.com"}, s.Tokens())

	require.NoError(t, s.UpdateLink(keyOf(t, s, 1), "https://a.com"))
	assert.Equal(t, []linktoken.Token{"+https://new2.com"}, s.Tokens())

	assert.ErrorIs(t, s.UpdateLink("missing", "https://x.com"), ErrUnknownRow)
}

func TestLinks_InvalidURL(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	key, err := s.AddLink("not a url", false)
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.NotEmpty(t, key, "The row stays in the draft")
	assert.Len(t, s.Rows(), 4)
	assert.Empty(t, s.Tokens())

	_, err = s.AddLink("not a url", true)
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = s.AddLink("https://a.com", true)
	assert.ErrorIs(t, err, ErrNotNew)

	assert.ErrorIs(t, s.UpdateLink(keyOf(t, s, 5), "nope"), ErrInvalidURL)
	assert.Equal(t, []linktoken.Token{"-5"}, s.Tokens(), "An invalid url requests deletion")
}

func TestLinks_VerifyMarkFollowsRow(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	key, err := s.AddLink("https://v.com", true)
	require.NoError(t, err)
	assert.Equal(t, []linktoken.Token{"+!https://v.com"}, s.Tokens())

	require.NoError(t, s.UpdateLink(key, "https://v2.com"))
	assert.Equal(t, []linktoken.Token{"+!https://v2.com"}, s.Tokens())

	require.NoError(t, s.RemoveLink(key))
	assert.Empty(t, s.Tokens(), "Removing a new row drops its verify mark")
}

func TestLinks_RequestVerification(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	assert.ErrorIs(t, s.RequestVerification(keyOf(t, s, 2)), ErrAlreadyVerified)

	require.NoError(t, s.RequestVerification(keyOf(t, s, 1)))
	assert.Equal(t, []linktoken.Token{"!1"}, s.Tokens())

	key, err := s.AddLink("https://n.com", false)
	require.NoError(t, err)
	require.NoError(t, s.RequestVerification(key))
	assert.ElementsMatch(t, []linktoken.Token{"!1", "+!https://n.com"}, s.Tokens())
	assert.NotContains(t, s.Tokens(), linktoken.Token("+https://n.com"))

	assert.ErrorIs(t, s.RequestVerification("missing"), ErrUnknownRow)
}

func TestLinks_VerifiedReadOnly(t *testing.T) {
	s := newTestSession(t, testProfile(false))
	key := keyOf(t, s, 2)

	assert.ErrorIs(t, s.UpdateLink(key, "https://hijack.com"), ErrVerifiedReadOnly)
	assert.Empty(t, s.Tokens())

	require.NoError(t, s.UpdateLink(key, ""))
	assert.Equal(t, []linktoken.Token{"-2"}, s.Tokens())
}

func TestLinks_RemoveSupersedesVerify(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	require.NoError(t, s.RequestVerification(keyOf(t, s, 5)))
	require.NoError(t, s.RemoveLink(keyOf(t, s, 5)))

	assert.Equal(t, []linktoken.Token{"-5"}, s.Tokens())
	assert.Len(t, s.Rows(), 2)
}

func TestMemo_Full(t *testing.T) {
	s := newTestSession(t, testProfile(true))

	require.NoError(t, s.SetField(domain.FieldAddress, "zs1new"))
	require.NoError(t, s.SetField(domain.FieldName, "Alice"))
	require.NoError(t, s.ClearField(domain.FieldBio))
	_, err := s.AddLink("https://new.com", false)
	require.NoError(t, err)
	require.NoError(t, s.RemoveLink(keyOf(t, s, 5)))

	m, err := s.Memo()
	require.NoError(t, err)
	assert.Equal(t, `{z:42,rid:req-1,a:"zs1new",n:"Alice",l:["+https://new.com","-5"],d:["b"]}`, m)

	decoded, err := memo.Decode(m)
	require.NoError(t, err)
	assert.Equal(t, s.Payload(), decoded)
}

func TestPayment(t *testing.T) {
	s := newTestSession(t, testProfile(false))

	pay, err := s.Payment("zcash", "zs1dir", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "{z:42}", pay.Memo)
	assert.Equal(t, "zcash:zs1dir?amount=0.5&memo=e3o6NDJ9", pay.URI)

	require.NoError(t, s.SetField(domain.FieldName, "Alice"))
	pay, err = s.Payment("zcash", "zs1dir", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, `{z:42,rid:req-1,n:"Alice"}`, pay.Memo)
	assert.Equal(t, "zcash:zs1dir?memo=e3o6NDIscmlkOnJlcS0xLG46IkFsaWNlIn0", pay.URI)

	_, err = s.Payment("zcash", "zs1dir", decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, memo.ErrNegativeAmount)
}

func TestReset(t *testing.T) {
	s := newTestSession(t, testProfile(false))
	require.NoError(t, s.SetField(domain.FieldName, "Alice"))
	_, err := s.AddLink("https://new.com", true)
	require.NoError(t, err)
	require.NoError(t, s.RemoveLink(keyOf(t, s, 1)))

	s.Reset()

	assert.False(t, s.Dirty())
	assert.Empty(t, s.Tokens())
	assert.Len(t, s.Rows(), 3)
}

func TestSessions_AreIndependent(t *testing.T) {
	p := testProfile(false)
	first := New(p)
	second := New(p)

	require.NoError(t, first.SetField(domain.FieldName, "Alice"))
	_, err := first.AddLink("https://new.com", false)
	require.NoError(t, err)

	assert.True(t, first.Dirty())
	assert.False(t, second.Dirty())
	assert.Empty(t, second.Tokens())

	p.Links[0].URL = "https://mutated.com"
	assert.Equal(t, "https://a.com", second.Original().Links[0].URL, "The snapshot is a deep copy")

	assert.NotEqual(t, first.Payload().RequestID, "")
	assert.Equal(t, "", second.Payload().RequestID, "A clean session carries no request id")
}
