package application

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCanonical(t *testing.T) {
	params := map[string]string{
		"merchant_id":  "10000100",
		"amount":       "105.00",
		"item_name":    "Mug & Tee",
		"name_first":   " Ada ",
		"cancel_url":   "",
		"signature":    "ignored",
		"m_payment_id": "ord-1",
	}

	assert.Equal(t,
		"amount=105.00&item_name=Mug+%26+Tee&m_payment_id=ord-1&merchant_id=10000100&name_first=Ada",
		NewSigner("").Canonical(params))
	assert.Equal(t,
		"amount=105.00&item_name=Mug+%26+Tee&m_payment_id=ord-1&merchant_id=10000100&name_first=Ada&passphrase=jt7NOE43FZPn",
		NewSigner("jt7NOE43FZPn").Canonical(params))
}

func TestSignIsMD5OfCanonical(t *testing.T) {
	s := NewSigner("secret")
	params := map[string]string{"amount": "1.00", "m_payment_id": "x"}

	sum := md5.Sum([]byte("amount=1.00&m_payment_id=x&passphrase=secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), s.Sign(params))
}

func TestVerify(t *testing.T) {
	s := NewSigner("secret")
	fields := map[string]string{"m_payment_id": "ord-1", "payment_status": "COMPLETE", "amount_gross": "60.00"}
	fields["signature"] = s.Sign(fields)

	assert.True(t, s.Verify(fields))

	tampered := clone(fields)
	tampered["amount_gross"] = "0.01"
	assert.False(t, s.Verify(tampered))

	missing := clone(fields)
	delete(missing, "signature")
	assert.False(t, s.Verify(missing))

	assert.False(t, NewSigner("other").Verify(fields))
	assert.False(t, NewSigner("").Verify(fields))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewSigner(rapid.StringMatching(`[A-Za-z0-9 ]{0,12}`).Draw(t, "passphrase"))
		fields := rapid.MapOf(
			rapid.StringMatching(`[a-z_]{1,12}`),
			rapid.String(),
		).Draw(t, "fields")
		delete(fields, "signature")
		delete(fields, "passphrase")

		fields["signature"] = s.Sign(fields)
		if !s.Verify(fields) {
			t.Fatalf("signature did not verify for %v", fields)
		}
	})
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
