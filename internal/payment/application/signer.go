package application

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/dmehra2102/storefront-fulfillment/internal/payment/domain"
)

// Signer builds the one canonical string both directions sign: keys sorted,
// empty values and the signature itself skipped, values trimmed and
// query-escaped, pairs joined with '&', passphrase appended last when set.
type Signer struct {
	passphrase string
}

func NewSigner(passphrase string) Signer {
	return Signer{passphrase: passphrase}
}

// Encode renders params in canonical order without the passphrase. It is
// also the query string of the redirect URL.
func (s Signer) Encode(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == domain.FieldSignature || k == domain.FieldPassphrase || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(strings.TrimSpace(params[k])))
	}
	return b.String()
}

func (s Signer) Canonical(params map[string]string) string {
	c := s.Encode(params)
	if s.passphrase == "" {
		return c
	}
	p := domain.FieldPassphrase + "=" + url.QueryEscape(strings.TrimSpace(s.passphrase))
	if c == "" {
		return p
	}
	return c + "&" + p
}

func (s Signer) Sign(params map[string]string) string {
	sum := md5.Sum([]byte(s.Canonical(params)))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature over every field except the declared one
// and compares in constant time.
func (s Signer) Verify(fields map[string]string) bool {
	declared := strings.ToLower(strings.TrimSpace(fields[domain.FieldSignature]))
	if declared == "" {
		return false
	}
	expected := s.Sign(fields)
	return subtle.ConstantTimeCompare([]byte(declared), []byte(expected)) == 1
}
