package quote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/offramp/internal/adapter/partnerapi"
	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/pkg/amount"
)

// Client exposes exchange quoting.
type Client interface {
	Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error)
}

// HTTPClient implements Client via the partner's HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// response mirrors the data part of a quote envelope.
type response struct {
	TokenAmount *decimal.Decimal `json:"tokenAmount"`
	FiatAmount  *decimal.Decimal `json:"fiatAmount"`
	Rate        *decimal.Decimal `json:"rate"`
	Fee         *decimal.Decimal `json:"fee"`
}

// NewHTTPClient creates quote client bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := partnerapi.ParseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("quote client: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Quote asks the partner for the counter-amount of req. Every failure is
// reported as ErrQuoteUnavailable.
func (c *HTTPClient) Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error) {
	q, err := c.fetch(ctx, req)
	if err != nil {
		c.logger.Warn("quote unavailable",
			slog.String("side", string(req.Side)),
			slog.String("token", req.Token),
			slog.String("currency", req.Currency),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrQuoteUnavailable, err)
	}
	return q, nil
}

func (c *HTTPClient) fetch(ctx context.Context, req model.QuoteRequest) (*model.Quote, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}

	endpoint := partnerapi.Endpoint(c.baseURL, "v1", "quotes")
	query := endpoint.Query()
	query.Set("side", string(req.Side))
	query.Set("amount", req.Amount.String())
	query.Set("token", req.Token)
	query.Set("currency", req.Currency)
	if req.Country != "" {
		query.Set("country", req.Country)
	}
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("quote request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, fmt.Errorf("quote error: %s", resp.Status)
	}

	var data response
	if err := partnerapi.Decode(body, &data); err != nil {
		return nil, err
	}
	return data.toQuote(req)
}

func (r response) toQuote(req model.QuoteRequest) (*model.Quote, error) {
	if r.Rate == nil || !r.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: rate must be positive", partnerapi.ErrMalformed)
	}
	q := &model.Quote{Rate: *r.Rate, Fee: decimal.Zero}
	if r.Fee != nil {
		if r.Fee.IsNegative() {
			return nil, fmt.Errorf("%w: negative fee", partnerapi.ErrMalformed)
		}
		q.Fee = *r.Fee
	}

	switch {
	case r.TokenAmount != nil:
		q.TokenAmount = *r.TokenAmount
	case req.Side == model.AmountSideToken:
		q.TokenAmount = req.Amount
	default:
		q.TokenAmount, _ = req.Amount.QuoRem(q.Rate, amount.MaxDecimals)
	}

	switch {
	case r.FiatAmount != nil:
		q.FiatAmount = *r.FiatAmount
	case req.Side == model.AmountSideFiat:
		q.FiatAmount = req.Amount
	default:
		q.FiatAmount = req.Amount.Mul(q.Rate)
	}

	if !q.TokenAmount.IsPositive() || !q.FiatAmount.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive quote amounts", partnerapi.ErrMalformed)
	}
	return q, nil
}
