package memo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profiledir/internal/domain"
	"profiledir/internal/fielddiff"
	"profiledir/internal/linktoken"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{
			name:    "minimal_form",
			payload: Payload{EntityID: "42"},
			want:    "{z:42}",
		},
		{
			name:    "request_id_only",
			payload: Payload{EntityID: "42", RequestID: "r-1"},
			want:    "{z:42,rid:r-1}",
		},
		{
			name: "address_follows_request_id",
			payload: Payload{
				EntityID:  "42",
				RequestID: "r-1",
				Changes: []fielddiff.Change{
					{Field: domain.FieldName, Value: "alice"},
					{Field: domain.FieldAddress, Value: "zs1new"},
					{Field: domain.FieldBio, Value: "hi there"},
				},
			},
			want: `{z:42,rid:r-1,a:"zs1new",n:"alice",b:"hi there"}`,
		},
		{
			name: "links_and_deletions",
			payload: Payload{
				EntityID: "7",
				Changes:  []fielddiff.Change{{Field: domain.FieldImage, Value: "https://i.example.com/p.png"}},
				Deleted:  []domain.Field{domain.FieldAddress, domain.FieldBio},
				Links:    []linktoken.Token{"+https://x.com", "-3", "+4:https://y.com", "!5", "+!https://z.com"},
			},
			want: `{z:7,i:"https://i.example.com/p.png",l:["+https://x.com","-3","+4:https://y.com","!5","+!https://z.com"],d:["a","b"]}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Encode(test.payload)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)

			decoded, err := Decode(got)
			require.NoError(t, err)
			again, err := Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, got, again, "Decoded memo should encode to the same string")
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode(Payload{})
	assert.ErrorIs(t, err, ErrNoEntity)

	_, err = Encode(Payload{EntityID: "4,2"})
	assert.ErrorIs(t, err, ErrBadID)

	_, err = Encode(Payload{EntityID: "42", Changes: []fielddiff.Change{{Field: domain.FieldBio, Value: `say "hi"`}}})
	assert.ErrorIs(t, err, ErrQuoteInValue)

	_, err = Encode(Payload{EntityID: "42", Links: []linktoken.Token{`+https://x.com/"`}})
	assert.ErrorIs(t, err, ErrQuoteInValue)
}

func TestDecode(t *testing.T) {
	p, err := Decode(`{z:42,rid:abc,a:"zs1",n:"a, b: [c]",l:[],d:["i"]}`)
	require.NoError(t, err)
	assert.Equal(t, "42", p.EntityID)
	assert.Equal(t, "abc", p.RequestID)
	assert.Equal(t, []fielddiff.Change{
		{Field: domain.FieldAddress, Value: "zs1"},
		{Field: domain.FieldName, Value: "a, b: [c]"},
	}, p.Changes)
	assert.Empty(t, p.Links)
	assert.Equal(t, []domain.Field{domain.FieldImage}, p.Deleted)
}

func TestDecode_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"{z:}",
		"z:42",
		"{z:42",
		`{z:42,x:"1"}`,
		`{z:42,n:"open}`,
		`{z:42,n:bare}`,
		`{z:42,l:["+a.com"}`,
		`{z:42,d:["h"]}`,
		`{z:42,name:"x"}`,
	}
	for _, in := range inputs {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestPaymentURI(t *testing.T) {
	uri, err := PaymentURI("zcash", "zs1dir", decimal.RequireFromString("0.5"), "{z:42}")
	require.NoError(t, err)
	assert.Equal(t, "zcash:zs1dir?amount=0.5&memo=e3o6NDJ9", uri)

	uri, err = PaymentURI("zcash", "zs1dir", decimal.Zero, "{z:42}")
	require.NoError(t, err)
	assert.Equal(t, "zcash:zs1dir?memo=e3o6NDJ9", uri)

	uri, err = PaymentURI("zcash", "zs1dir", decimal.RequireFromString("1.25"), "")
	require.NoError(t, err)
	assert.Equal(t, "zcash:zs1dir?amount=1.25", uri)

	uri, err = PaymentURI("zcash", "zs1dir", decimal.Zero, "")
	require.NoError(t, err)
	assert.Equal(t, "zcash:zs1dir", uri)

	_, err = PaymentURI("zcash", "zs1dir", decimal.RequireFromString("-1"), "")
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestDecodeParam(t *testing.T) {
	m := `{z:42,rid:req-1,n:"Alice"}`
	assert.Equal(t, "e3o6NDIscmlkOnJlcS0xLG46IkFsaWNlIn0", EncodeParam(m))

	got, err := DecodeParam(EncodeParam(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)

	got, err = DecodeParam("e3o6NDJ9==")
	require.NoError(t, err)
	assert.Equal(t, "{z:42}", got)
}
