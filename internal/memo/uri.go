package memo

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("memo: payment amount is negative")

// EncodeParam base64url encodes m without padding, the form carried by the memo
// query parameter.
func EncodeParam(m string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(m))
}

// DecodeParam reverses EncodeParam. Padded input is accepted as well.
func DecodeParam(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PaymentURI builds scheme:<address>?amount=<decimal>&memo=<base64url(memo)>.
// A zero amount and an empty memo are omitted.
func PaymentURI(scheme, address string, amount decimal.Decimal, m string) (string, error) {
	if amount.IsNegative() {
		return "", ErrNegativeAmount
	}

	var params []string
	if !amount.IsZero() {
		params = append(params, "amount="+amount.String())
	}
	if m != "" {
		params = append(params, "memo="+EncodeParam(m))
	}

	uri := scheme + ":" + address
	if len(params) > 0 {
		uri += "?" + strings.Join(params, "&")
	}
	return uri, nil
}
