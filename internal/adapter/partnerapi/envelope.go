// Package partnerapi decodes the {success, data, error} envelope shared by the
// exchange and payout partner APIs into narrow, validated values.
package partnerapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
)

// ErrMalformed indicates a response that matches neither envelope variant.
var ErrMalformed = errors.New("malformed partner response")

// APIError is the error variant of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Decode unmarshals body and fills out from the success variant. The error
// variant is returned as *APIError; anything else wraps ErrMalformed.
func Decode(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Success == nil {
		return fmt.Errorf("%w: missing success flag", ErrMalformed)
	}
	if !*env.Success {
		if env.Error == nil {
			return &APIError{Message: "unspecified partner error"}
		}
		return env.Error
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ParseBaseURL validates an absolute partner base URL.
func ParseBaseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse partner url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("partner url must be absolute")
	}
	return parsed, nil
}

// Endpoint joins segments onto base without mutating it.
func Endpoint(base *url.URL, segments ...string) *url.URL {
	endpoint := *base
	endpoint.Path = path.Join(append([]string{endpoint.Path}, segments...)...)
	return &endpoint
}
