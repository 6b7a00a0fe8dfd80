package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/domain/repository"
	"github.com/polkiloo/offramp/internal/metrics"
	"github.com/polkiloo/offramp/internal/pkg/amount"
	"github.com/polkiloo/offramp/internal/pkg/clock"
	"github.com/polkiloo/offramp/internal/pkg/idempotency"
	"github.com/polkiloo/offramp/internal/pkg/suiaddr"
)

const (
	maxIdempotencyKeyLength = 128
	defaultPayoutPoll       = 200 * time.Millisecond
)

// Settings tunes settlement behaviour.
type Settings struct {
	CollectionAddress string
	Assets            []model.Asset
	// PayoutLease bounds how long a submission claim blocks other callers.
	PayoutLease time.Duration
	// PayoutWait bounds how long a losing caller waits for the winner.
	PayoutWait time.Duration
	PayoutPoll time.Duration
	RetryGrace time.Duration
}

// Dependencies groups the collaborators of SettlementUseCase.
type Dependencies struct {
	Orders   repository.OrderRepository
	Targets  TargetResolver
	Quotes   Quoter
	Verifier TransferVerifier
	Payouts  PayoutGateway
	Metrics  metrics.Recorder
	Clock    clock.Clock
	NewID    func() string
}

// SettlementUseCase drives orders from quote to fiat payout. All state changes
// go through conditional updates on the order repository.
type SettlementUseCase struct {
	orders   repository.OrderRepository
	targets  TargetResolver
	quotes   Quoter
	verifier TransferVerifier
	payouts  PayoutGateway
	metrics  metrics.Recorder
	clock    clock.Clock
	newID    func() string
	logger   *slog.Logger

	collection string
	assets     map[string]model.Asset
	lease      time.Duration
	wait       time.Duration
	poll       time.Duration
	grace      time.Duration
}

// NewSettlementUseCase constructs SettlementUseCase.
func NewSettlementUseCase(deps Dependencies, settings Settings, logger *slog.Logger) (*SettlementUseCase, error) {
	collection, err := suiaddr.Normalize(settings.CollectionAddress)
	if err != nil {
		return nil, &domainErrors.ConfigurationError{Key: "COLLECTION_ADDRESS", Reason: err.Error()}
	}
	if len(settings.Assets) == 0 {
		return nil, &domainErrors.ConfigurationError{Key: "ASSETS", Reason: "must list at least one asset"}
	}
	assets := make(map[string]model.Asset, len(settings.Assets))
	for _, a := range settings.Assets {
		assets[strings.ToUpper(a.Symbol)] = a
	}

	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if settings.PayoutPoll <= 0 {
		settings.PayoutPoll = defaultPayoutPoll
	}
	if settings.PayoutWait > 0 && settings.PayoutPoll > settings.PayoutWait {
		settings.PayoutPoll = settings.PayoutWait
	}

	return &SettlementUseCase{
		orders:     deps.Orders,
		targets:    deps.Targets,
		quotes:     deps.Quotes,
		verifier:   deps.Verifier,
		payouts:    deps.Payouts,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		newID:      deps.NewID,
		logger:     logger,
		collection: collection,
		assets:     assets,
		lease:      settings.PayoutLease,
		wait:       settings.PayoutWait,
		poll:       settings.PayoutPoll,
		grace:      settings.RetryGrace,
	}, nil
}

// Create quotes and stores a new order. A known idempotency key returns the
// stored order with created=false and no partner calls.
func (u *SettlementUseCase) Create(ctx context.Context, in model.CreateOrderInput) (*model.Order, bool, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return nil, false, domainErrors.Invalid("idempotencyKey", fmt.Sprintf("must not exceed %d characters", maxIdempotencyKeyLength))
	}
	if key != "" {
		existing, err := u.orders.GetByIdempotencyKey(ctx, key)
		switch {
		case err == nil:
			return existing, false, nil
		case !errors.Is(err, domainErrors.ErrNotFound):
			return nil, false, err
		}
	}

	req, asset, payer, err := u.validateCreate(in)
	if err != nil {
		return nil, false, err
	}

	target, err := u.targets.Resolve(ctx, in.PayoutTargetID)
	if err != nil {
		return nil, false, err
	}
	req.Currency = target.Currency
	req.Country = target.Country

	quote, err := u.quotes.Quote(ctx, req)
	if err != nil {
		return nil, false, err
	}

	expected, err := amount.DecimalToRaw(quote.TokenAmount, asset.Decimals)
	if err != nil {
		return nil, false, &domainErrors.ValidationError{Field: "amount", Reason: err.Error(), Err: domainErrors.ErrInvalidAmount}
	}
	if expected == "0" {
		return nil, false, &domainErrors.ValidationError{Field: "amount", Reason: "below the smallest token unit", Err: domainErrors.ErrInvalidAmount}
	}

	now := u.clock.Now()
	order := &model.Order{
		ID:                u.newID(),
		PayoutTarget:      *target,
		PayerAddress:      payer,
		CollectionAddress: u.collection,
		Asset:             asset,
		ExpectedAmount:    expected,
		FiatAmount:        quote.FiatAmount,
		FiatCurrency:      target.Currency,
		Quote:             *quote,
		Status:            model.OrderStatusAwaitingProof,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if key != "" {
		order.IdempotencyKey = &key
	}

	stored, created, err := u.orders.Create(ctx, order)
	if err != nil {
		return nil, false, err
	}
	if created {
		u.metrics.OrderTransition(string(model.OrderStatusAwaitingProof))
		u.logger.Info("order created",
			slog.String("order_id", stored.ID),
			slog.String("asset", asset.Symbol),
			slog.String("expected_amount", expected),
			slog.String("fiat_amount", stored.FiatAmount.String()),
			slog.String("fiat_currency", stored.FiatCurrency),
		)
	}
	return stored, created, nil
}

func (u *SettlementUseCase) validateCreate(in model.CreateOrderInput) (model.QuoteRequest, model.Asset, string, error) {
	var req model.QuoteRequest

	payer, err := suiaddr.Normalize(in.PayerAddress)
	if err != nil {
		return req, model.Asset{}, "", &domainErrors.ValidationError{Field: "payerAddress", Reason: "must be a 0x-prefixed hex address", Err: domainErrors.ErrInvalidAddress}
	}
	if strings.TrimSpace(in.PayoutTargetID) == "" {
		return req, model.Asset{}, "", domainErrors.Invalid("payoutTargetId", "must not be empty")
	}

	side := model.AmountSide(strings.ToLower(strings.TrimSpace(string(in.Side))))
	switch side {
	case "":
		side = model.AmountSideToken
	case model.AmountSideToken, model.AmountSideFiat:
	default:
		return req, model.Asset{}, "", domainErrors.Invalid("side", "must be token or fiat")
	}

	value, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil || !value.IsPositive() {
		return req, model.Asset{}, "", &domainErrors.ValidationError{Field: "amount", Reason: "must be a positive decimal", Err: domainErrors.ErrInvalidAmount}
	}

	asset, ok := u.assets[strings.ToUpper(strings.TrimSpace(in.Token))]
	if !ok {
		return req, model.Asset{}, "", domainErrors.Invalid("token", fmt.Sprintf("unsupported token %q", in.Token))
	}
	if side == model.AmountSideToken && value.Exponent() < -int32(asset.Decimals) {
		value = value.Truncate(int32(asset.Decimals))
		if !value.IsPositive() {
			return req, model.Asset{}, "", &domainErrors.ValidationError{Field: "amount", Reason: "below the smallest token unit", Err: domainErrors.ErrInvalidAmount}
		}
	}

	req = model.QuoteRequest{Side: side, Amount: value, Token: asset.Symbol}
	return req, asset, payer, nil
}

// ConfirmProof verifies reference on-chain and moves order to PROOF_VERIFIED.
// A failed verification leaves the order untouched.
func (u *SettlementUseCase) ConfirmProof(ctx context.Context, id, reference string) (*model.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domainErrors.Invalid("transactionDigest", "must not be empty")
	}

	order, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.TransactionRef != nil && *order.TransactionRef == reference {
		return order, nil
	}
	if order.Status != model.OrderStatusAwaitingProof {
		return nil, fmt.Errorf("%w: order %s is %s", domainErrors.ErrInvalidState, order.ID, order.Status)
	}

	receipt, err := u.verifier.Verify(ctx, reference, order.CollectionAddress, order.Asset.CoinType, order.ExpectedAmount)
	if err != nil {
		var ve *domainErrors.VerificationError
		if errors.As(err, &ve) {
			u.metrics.Verification(string(ve.Reason))
			u.logger.Info("proof rejected",
				slog.String("order_id", order.ID),
				slog.String("reference", reference),
				slog.String("reason", string(ve.Reason)),
			)
		} else {
			u.metrics.Verification("error")
		}
		return nil, err
	}
	u.metrics.Verification("success")

	applied, err := u.orders.MarkProofVerified(ctx, order.ID, reference, receipt.Amount, u.clock.Now())
	if err != nil {
		return nil, err
	}

	current, err := u.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		if current.TransactionRef != nil && *current.TransactionRef == reference {
			return current, nil
		}
		return nil, fmt.Errorf("%w: order %s is %s", domainErrors.ErrInvalidState, current.ID, current.Status)
	}

	u.metrics.OrderTransition(string(model.OrderStatusProofVerified))
	u.logger.Info("proof verified",
		slog.String("order_id", order.ID),
		slog.String("reference", reference),
		slog.String("received", receipt.Amount),
		slog.String("status", string(current.Status)),
	)
	return current, nil
}

// TriggerPayout submits the payout at most once per order. Repeated and
// concurrent calls return the current view; exactly one caller reaches the
// gateway while no partner reference exists.
func (u *SettlementUseCase) TriggerPayout(ctx context.Context, id string) (*model.Order, error) {
	order, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.HasPartnerReference() || order.Status.Terminal() {
		return order, nil
	}
	if order.Status == model.OrderStatusAwaitingProof {
		return nil, fmt.Errorf("%w: order %s has no verified proof", domainErrors.ErrInvalidState, order.ID)
	}

	claim := u.newID()
	now := u.clock.Now()
	won, err := u.orders.ClaimSubmission(ctx, order.ID, claim, now, now.Add(u.lease))
	if err != nil {
		return nil, err
	}
	if !won {
		return u.awaitSubmission(ctx, order.ID)
	}
	u.metrics.OrderTransition(string(model.OrderStatusSubmittingPayout))

	// The outcome must be persisted even if the caller goes away.
	return u.submit(context.WithoutCancel(ctx), order, claim)
}

func (u *SettlementUseCase) submit(ctx context.Context, order *model.Order, claim string) (*model.Order, error) {
	log := u.logger.With(slog.String("order_id", order.ID))

	partnerRef, err := u.payouts.Submit(ctx, model.PayoutRequest{
		OrderID:         order.ID,
		Target:          order.PayoutTarget,
		FiatAmount:      order.FiatAmount,
		FiatCurrency:    order.FiatCurrency,
		SourceAddress:   order.PayerAddress,
		IdempotencyHint: idempotency.Key("payout", order.ID),
	})

	switch {
	case err == nil:
		u.metrics.PayoutSubmission(metrics.OutcomeAccepted)
		applied, markErr := u.orders.MarkPayoutAccepted(ctx, order.ID, claim, partnerRef, string(model.PayoutStateProcessing))
		if markErr != nil {
			log.Error("payout accepted but not recorded", slog.String("partner_ref", partnerRef), slog.String("error", markErr.Error()))
			return nil, markErr
		}
		if !applied {
			log.Error("payout accepted after claim was lost", slog.String("partner_ref", partnerRef))
		} else {
			u.metrics.OrderTransition(string(model.OrderStatusPayoutAccepted))
			log.Info("payout accepted", slog.String("partner_ref", partnerRef))
		}
		return u.orders.GetByID(ctx, order.ID)

	case domainErrors.IsRejected(err):
		u.metrics.PayoutSubmission(metrics.OutcomeRejected)
		reason := rejectionReason(err)
		applied, markErr := u.orders.MarkSubmissionRejected(ctx, order.ID, claim, reason)
		if markErr != nil {
			return nil, markErr
		}
		if applied {
			u.metrics.OrderTransition(string(model.OrderStatusFailed))
		}
		log.Error("payout rejected", slog.String("reason", reason), slog.String("error", err.Error()))
		current, getErr := u.orders.GetByID(ctx, order.ID)
		if getErr != nil {
			return nil, getErr
		}
		return current, err

	default:
		u.metrics.PayoutSubmission(metrics.OutcomeAmbiguous)
		log.Warn("payout outcome ambiguous, parked for reconciliation", slog.String("error", err.Error()))
		if relErr := u.orders.ReleaseSubmission(ctx, order.ID, claim, "ambiguous: "+err.Error()); relErr != nil {
			log.Error("release submission claim failed", slog.String("error", relErr.Error()))
		}
		return u.orders.GetByID(ctx, order.ID)
	}
}

// awaitSubmission polls the order until the claim holder finishes or the wait
// bound elapses, then returns the latest view.
func (u *SettlementUseCase) awaitSubmission(ctx context.Context, id string) (*model.Order, error) {
	deadline := time.NewTimer(u.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(u.poll)
	defer ticker.Stop()

	for {
		order, err := u.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if order.HasPartnerReference() || order.Status != model.OrderStatusSubmittingPayout || order.SubmitClaim == nil {
			return order, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return order, nil
		case <-ticker.C:
		}
	}
}

// Reconcile asks the partner for the payout status of an accepted order and
// settles it when the partner reports a final state.
func (u *SettlementUseCase) Reconcile(ctx context.Context, id string) (*model.Order, error) {
	order, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPayoutAccepted || !order.HasPartnerReference() {
		return order, nil
	}

	status, err := u.payouts.Status(ctx, *order.PartnerReference)
	if err != nil {
		u.logger.Warn("payout status unavailable",
			slog.String("order_id", order.ID),
			slog.String("partner_ref", *order.PartnerReference),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	now := u.clock.Now()
	switch status.State {
	case model.PayoutStateCompleted:
		err = u.settle(ctx, order, model.OrderStatusCompleted, status, "", now)
	case model.PayoutStateFailed:
		reason := status.FailureReason
		if reason == "" {
			reason = "partner reported failure"
		}
		err = u.settle(ctx, order, model.OrderStatusFailed, status, reason, now)
	default:
		err = u.orders.TouchChecked(ctx, order.ID, string(status.State), now)
	}
	if err != nil {
		return nil, err
	}
	return u.orders.GetByID(ctx, order.ID)
}

func (u *SettlementUseCase) settle(ctx context.Context, order *model.Order, to model.OrderStatus, status *model.PayoutStatus, reason string, at time.Time) error {
	applied, err := u.orders.Settle(ctx, order.ID, to, string(status.State), reason, at)
	if err != nil || !applied {
		return err
	}
	u.metrics.OrderTransition(string(to))
	u.logger.Info("order settled",
		slog.String("order_id", order.ID),
		slog.String("status", string(to)),
		slog.String("partner_ref", status.PartnerOrderID),
		slog.String("partner_reference", status.Reference),
		slog.String("reason", reason),
	)
	return nil
}

// Get returns order by id.
func (u *SettlementUseCase) Get(ctx context.Context, id string) (*model.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domainErrors.Invalid("id", "must not be empty")
	}
	return u.orders.GetByID(ctx, id)
}

// History returns recorded transitions of an existing order.
func (u *SettlementUseCase) History(ctx context.Context, id string) ([]model.OrderEvent, error) {
	order, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.orders.History(ctx, order.ID)
}

// PendingWork lists orders the reconciliation poller should advance.
func (u *SettlementUseCase) PendingWork(ctx context.Context, limit int) ([]model.Order, error) {
	return u.orders.ListPending(ctx, limit, u.clock.Now().Add(-u.grace))
}

func rejectionReason(err error) string {
	var pe *domainErrors.PartnerError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return err.Error()
}
