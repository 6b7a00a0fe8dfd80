// Package signing authenticates outbound partner requests.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

// Signature headers set by SignRequest.
const (
	TimestampHeader = "X-Signature-Timestamp"
	SignatureHeader = "X-Signature"
)

// HMACSigner signs method, request URI, unix timestamp and body with HMAC-SHA256.
type HMACSigner struct {
	secret []byte
	now    func() time.Time
}

// NewHMACSigner builds HMACSigner with provided secret.
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret), now: time.Now}
}

// Sign returns the timestamp used and the base64 signature.
func (s *HMACSigner) Sign(method, uri string, body []byte) (string, string) {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	return timestamp, s.sign(method, uri, timestamp, body)
}

// SignRequest sets signature headers on req. body must be the exact payload sent.
func (s *HMACSigner) SignRequest(req *http.Request, body []byte) {
	timestamp, signature := s.Sign(req.Method, req.URL.RequestURI(), body)
	req.Header.Set(TimestampHeader, timestamp)
	req.Header.Set(SignatureHeader, signature)
}

func (s *HMACSigner) sign(method, uri, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(method))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(uri))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'\n'})
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
