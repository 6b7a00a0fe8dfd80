package payout

import (
	"bytes"
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
	"github.com/polkiloo/offramp/internal/pkg/signing"
)

// Client exposes payout submission and status polling.
//
// Client does not deduplicate: two Submit calls may create two partner-side
// payouts. Callers own the at-most-once guarantee.
type Client interface {
	Submit(ctx context.Context, req model.PayoutRequest) (string, error)
	Status(ctx context.Context, partnerOrderID string) (*model.PayoutStatus, error)
}

// HTTPClient implements Client via the partner's HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	apiKey     string
	signer     *signing.HMACSigner
	httpClient *http.Client
	logger     *slog.Logger
}

type submitRequest struct {
	Reference     string          `json:"reference"`
	TargetID      string          `json:"targetId"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	SourceAddress string          `json:"sourceAddress"`
	Beneficiary   json.RawMessage `json:"beneficiary,omitempty"`
}

type payoutResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	FailureReason string `json:"failureReason"`
}

// NewHTTPClient creates payout client bounded by timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := partnerapi.ParseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("payout client: %w", err)
	}
	if apiKey == "" {
		return nil, &domainErrors.ConfigurationError{Key: "PAYOUT_API_KEY", Reason: "must be provided"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WithSigner makes the client sign every request with signer.
func (c *HTTPClient) WithSigner(signer *signing.HMACSigner) *HTTPClient {
	c.signer = signer
	return c
}

// Submit asks the partner to pay out req and returns the partner order id.
func (c *HTTPClient) Submit(ctx context.Context, req model.PayoutRequest) (string, error) {
	payload, err := json.Marshal(submitRequest{
		Reference:     req.OrderID,
		TargetID:      req.Target.ID,
		Amount:        req.FiatAmount.String(),
		Currency:      req.FiatCurrency,
		SourceAddress: req.SourceAddress,
		Beneficiary:   req.Target.Descriptor,
	})
	if err != nil {
		return "", err
	}

	endpoint := partnerapi.Endpoint(c.baseURL, "v1", "payouts")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	if req.IdempotencyHint != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyHint)
	}
	if c.signer != nil {
		c.signer.SignRequest(httpReq, payload)
	}

	data, err := c.do(httpReq, "submit")
	if err != nil {
		return "", err
	}
	if data.ID == "" {
		return "", &domainErrors.PartnerError{Kind: domainErrors.PartnerAmbiguous, Op: "submit", Err: fmt.Errorf("%w: missing payout id", partnerapi.ErrMalformed)}
	}
	return data.ID, nil
}

// Status queries the partner for the state of a submitted payout.
func (c *HTTPClient) Status(ctx context.Context, partnerOrderID string) (*model.PayoutStatus, error) {
	endpoint := partnerapi.Endpoint(c.baseURL, "v1", "payouts", partnerOrderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	if c.signer != nil {
		c.signer.SignRequest(httpReq, nil)
	}

	data, err := c.do(httpReq, "status")
	if err != nil {
		return nil, err
	}
	id := data.ID
	if id == "" {
		id = partnerOrderID
	}
	return &model.PayoutStatus{
		PartnerOrderID: id,
		State:          MapState(data.Status),
		Reference:      data.Reference,
		FailureReason:  data.FailureReason,
	}, nil
}

func (c *HTTPClient) do(req *http.Request, op string) (*payoutResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domainErrors.PartnerError{Kind: domainErrors.PartnerAmbiguous, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domainErrors.PartnerError{Kind: domainErrors.PartnerAmbiguous, Op: op, Status: resp.StatusCode, Err: err}
	}

	var data payoutResponse
	decodeErr := partnerapi.Decode(body, &data)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusConflict && decodeErr == nil:
		if decodeErr == nil {
			return &data, nil
		}
		var apiErr *partnerapi.APIError
		if errors.As(decodeErr, &apiErr) {
			return nil, &domainErrors.PartnerError{Kind: domainErrors.PartnerRejected, Op: op, Status: resp.StatusCode, Code: apiErr.Code, Err: apiErr}
		}
		return nil, &domainErrors.PartnerError{Kind: domainErrors.PartnerAmbiguous, Op: op, Status: resp.StatusCode, Err: decodeErr}
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusConflict, resp.StatusCode >= 500:
		c.logger.Warn("payout partner outcome unknown", slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, &domainErrors.PartnerError{Kind: domainErrors.PartnerAmbiguous, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("payout error: %s", resp.Status)}
	default:
		c.logger.Error("payout request rejected", slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		pe := &domainErrors.PartnerError{Kind: domainErrors.PartnerRejected, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("payout error: %s", resp.Status)}
		var apiErr *partnerapi.APIError
		if errors.As(decodeErr, &apiErr) {
			pe.Code = apiErr.Code
			pe.Err = apiErr
		}
		return nil, pe
	}
}

// MapState narrows the partner's status vocabulary. Unknown values are
// treated as still processing.
func MapState(status string) model.PayoutState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "complete", "success", "succeeded", "paid", "settled":
		return model.PayoutStateCompleted
	case "failed", "failure", "rejected", "cancelled", "canceled", "reversed", "expired", "refunded":
		return model.PayoutStateFailed
	default:
		return model.PayoutStateProcessing
	}
}
