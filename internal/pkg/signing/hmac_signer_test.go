package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedSigner(secret string, at time.Time) *HMACSigner {
	s := NewHMACSigner(secret)
	s.now = func() time.Time { return at }
	return s
}

func TestHMACSignerSign(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	body := []byte(`{"amount":"255000"}`)

	timestamp, signature := fixedSigner("secret", at).Sign(http.MethodPost, "/v1/payouts", body)
	require.Equal(t, "1700000000", timestamp)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("POST\n/v1/payouts\n1700000000\n" + string(body)))
	require.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), signature)
}

func TestHMACSignerCoversEveryInput(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	body := []byte(`{"amount":"255000"}`)
	_, base := fixedSigner("secret", at).Sign(http.MethodPost, "/v1/payouts", body)

	cases := map[string]func() string{
		"body": func() string {
			_, sig := fixedSigner("secret", at).Sign(http.MethodPost, "/v1/payouts", []byte(`{"amount":"999999"}`))
			return sig
		},
		"path": func() string {
			_, sig := fixedSigner("secret", at).Sign(http.MethodPost, "/v1/payouts/x", body)
			return sig
		},
		"method": func() string {
			_, sig := fixedSigner("secret", at).Sign(http.MethodPut, "/v1/payouts", body)
			return sig
		},
		"secret": func() string {
			_, sig := fixedSigner("other", at).Sign(http.MethodPost, "/v1/payouts", body)
			return sig
		},
		"timestamp": func() string {
			_, sig := fixedSigner("secret", at.Add(time.Second)).Sign(http.MethodPost, "/v1/payouts", body)
			return sig
		},
	}
	for name, sign := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, base, sign())
		})
	}
}

func TestHMACSignerSignRequest(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	signer := fixedSigner("secret", at)
	body := `{"reference":"ord-1"}`
	req := httptest.NewRequest(http.MethodPost, "http://partner.test/v1/payouts?dry=1", strings.NewReader(body))

	signer.SignRequest(req, []byte(body))

	timestamp, signature := signer.Sign(http.MethodPost, "/v1/payouts?dry=1", []byte(body))
	require.Equal(t, timestamp, req.Header.Get(TimestampHeader))
	require.Equal(t, signature, req.Header.Get(SignatureHeader))
}
