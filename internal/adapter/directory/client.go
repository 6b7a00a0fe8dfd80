// Package directory resolves payout target identifiers into the fiat
// destination details needed for quoting and payout.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/polkiloo/offramp/internal/adapter/partnerapi"
	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
)

// Resolver looks up payout targets.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*model.PayoutTarget, error)
}

// HTTPResolver implements Resolver via the directory HTTP API.
type HTTPResolver struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

type targetResponse struct {
	ID         string          `json:"id"`
	Currency   string          `json:"currency"`
	Country    string          `json:"country"`
	Descriptor json.RawMessage `json:"descriptor"`
}

// NewHTTPResolver creates directory client bounded by timeout.
func NewHTTPResolver(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPResolver, error) {
	parsed, err := partnerapi.ParseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("directory client: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPResolver{
		baseURL:    parsed,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Resolve fetches payout target by id. Unknown targets yield NotFoundError,
// any other failure wraps ErrTargetUnavailable.
func (r *HTTPResolver) Resolve(ctx context.Context, id string) (*model.PayoutTarget, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domainErrors.Invalid("payoutTargetId", "must not be empty")
	}

	endpoint := partnerapi.Endpoint(r.baseURL, "api", "payout-targets", url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, r.unavailable(id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &domainErrors.NotFoundError{Entity: "payout target", ID: id}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, r.unavailable(id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, r.unavailable(id, fmt.Errorf("directory error: %s", resp.Status))
	}

	var data targetResponse
	if err := partnerapi.Decode(body, &data); err != nil {
		var apiErr *partnerapi.APIError
		if errors.As(err, &apiErr) {
			return nil, &domainErrors.NotFoundError{Entity: "payout target", ID: id}
		}
		return nil, r.unavailable(id, err)
	}
	if data.Currency == "" {
		return nil, r.unavailable(id, fmt.Errorf("%w: missing currency", partnerapi.ErrMalformed))
	}
	if data.ID == "" {
		data.ID = id
	}

	return &model.PayoutTarget{
		ID:         data.ID,
		Currency:   strings.ToUpper(data.Currency),
		Country:    strings.ToUpper(data.Country),
		Descriptor: data.Descriptor,
	}, nil
}

func (r *HTTPResolver) unavailable(id string, err error) error {
	r.logger.Warn("payout target lookup failed", slog.String("target_id", id), slog.String("error", err.Error()))
	return fmt.Errorf("%w: %v", domainErrors.ErrTargetUnavailable, err)
}
