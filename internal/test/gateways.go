package test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/offramp/internal/domain/model"
)

// QuoterStub prices at a fixed rate unless QuoteFn is set.
type QuoterStub struct {
	Rate    decimal.Decimal
	Fee     decimal.Decimal
	Err     error
	QuoteFn func(context.Context, model.QuoteRequest) (*model.Quote, error)
	calls   atomic.Int32
}

// Quote counts the call and returns a quote at Rate.
func (s *QuoterStub) Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error) {
	s.calls.Add(1)
	if s.QuoteFn != nil {
		return s.QuoteFn(ctx, req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	q := &model.Quote{Rate: s.Rate, Fee: s.Fee}
	if req.Side == model.AmountSideFiat {
		q.FiatAmount = req.Amount
		q.TokenAmount = req.Amount.Div(s.Rate)
	} else {
		q.TokenAmount = req.Amount
		q.FiatAmount = req.Amount.Mul(s.Rate)
	}
	return q, nil
}

// Calls reports how many quotes were requested.
func (s *QuoterStub) Calls() int { return int(s.calls.Load()) }

// TargetResolverStub resolves every id to Target unless ResolveFn is set.
type TargetResolverStub struct {
	Target    model.PayoutTarget
	Err       error
	ResolveFn func(context.Context, string) (*model.PayoutTarget, error)
}

// Resolve returns configured target carrying the requested id.
func (s TargetResolverStub) Resolve(ctx context.Context, id string) (*model.PayoutTarget, error) {
	if s.ResolveFn != nil {
		return s.ResolveFn(ctx, id)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	t := s.Target
	t.ID = id
	return &t, nil
}

// VerifierStub returns configured receipt or error.
type VerifierStub struct {
	Receipt  *model.TransferReceipt
	Err      error
	VerifyFn func(ctx context.Context, reference, recipient, coinType, minimumRaw string) (*model.TransferReceipt, error)
	calls    atomic.Int32
}

// Verify counts the call and answers from configuration.
func (s *VerifierStub) Verify(ctx context.Context, reference, recipient, coinType, minimumRaw string) (*model.TransferReceipt, error) {
	s.calls.Add(1)
	if s.VerifyFn != nil {
		return s.VerifyFn(ctx, reference, recipient, coinType, minimumRaw)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Receipt != nil {
		return s.Receipt, nil
	}
	return &model.TransferReceipt{Reference: reference, Recipient: recipient, CoinType: coinType, Amount: minimumRaw}, nil
}

// Calls reports how many verifications ran.
func (s *VerifierStub) Calls() int { return int(s.calls.Load()) }

// PayoutGatewayStub records submissions and answers status queries.
type PayoutGatewayStub struct {
	PartnerID string
	SubmitErr error
	SubmitFn  func(context.Context, model.PayoutRequest) (string, error)
	Result    *model.PayoutStatus
	StatusErr error

	mu       sync.Mutex
	requests []model.PayoutRequest
}

// Submit records req and returns PartnerID.
func (s *PayoutGatewayStub) Submit(ctx context.Context, req model.PayoutRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.SubmitFn != nil {
		return s.SubmitFn(ctx, req)
	}
	if s.SubmitErr != nil {
		return "", s.SubmitErr
	}
	return s.PartnerID, nil
}

// Status returns configured Result for partnerOrderID.
func (s *PayoutGatewayStub) Status(ctx context.Context, partnerOrderID string) (*model.PayoutStatus, error) {
	if s.StatusErr != nil {
		return nil, s.StatusErr
	}
	if s.Result == nil {
		return &model.PayoutStatus{PartnerOrderID: partnerOrderID, State: model.PayoutStateProcessing}, nil
	}
	st := *s.Result
	st.PartnerOrderID = partnerOrderID
	return &st, nil
}

// Requests returns a copy of recorded submissions.
func (s *PayoutGatewayStub) Requests() []model.PayoutRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PayoutRequest(nil), s.requests...)
}

// RecorderStub counts metric events by name.
type RecorderStub struct {
	mu     sync.Mutex
	Counts map[string]int
}

func (r *RecorderStub) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Counts == nil {
		r.Counts = make(map[string]int)
	}
	r.Counts[key]++
}

// Count returns the number of events recorded under key.
func (r *RecorderStub) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[key]
}

func (r *RecorderStub) OrderTransition(status string)   { r.inc("transition:" + status) }
func (r *RecorderStub) Verification(result string)      { r.inc("verification:" + result) }
func (r *RecorderStub) PayoutSubmission(outcome string) { r.inc("payout:" + outcome) }
func (r *RecorderStub) ReconcileBatch(size int)         { r.inc("batch") }
