// Package chain verifies that a Sui transaction credited the expected asset
// to the collection address.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/pkg/suiaddr"
)

const (
	methodGetTransactionBlock = "sui_getTransactionBlock"
	notFoundMessage           = "Could not find the referenced transaction"
	invalidParamsCode         = -32602
	statusSuccess             = "success"
)

// Caller is the subset of the JSON-RPC client used by the verifier.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Verifier checks on-chain proof of payment.
type Verifier interface {
	Verify(ctx context.Context, reference, recipient, coinType, minimumRaw string) (*model.TransferReceipt, error)
}

// SuiVerifier implements Verifier over Sui JSON-RPC.
type SuiVerifier struct {
	client   Caller
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

type transactionBlock struct {
	Digest         string          `json:"digest"`
	Effects        *effects        `json:"effects"`
	BalanceChanges []balanceChange `json:"balanceChanges"`
}

type effects struct {
	Status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"status"`
}

type balanceChange struct {
	Owner    owner  `json:"owner"`
	CoinType string `json:"coinType"`
	Amount   string `json:"amount"`
}

type owner struct {
	AddressOwner string `json:"AddressOwner"`
}

type responseOptions struct {
	ShowEffects        bool `json:"showEffects"`
	ShowBalanceChanges bool `json:"showBalanceChanges"`
}

var errPending = errors.New("transaction not indexed yet")

// NewSuiVerifier creates verifier retrying unindexed transactions attempts
// times with a fixed backoff.
func NewSuiVerifier(client Caller, attempts int, backoff time.Duration, logger *slog.Logger) *SuiVerifier {
	if attempts <= 0 {
		attempts = 1
	}
	if backoff < 0 {
		backoff = 0
	}
	return &SuiVerifier{client: client, attempts: attempts, backoff: backoff, logger: logger}
}

// Verify fetches reference and sums positive balance changes of coinType
// owned by recipient. The sum must reach minimumRaw; overpayment is accepted.
func (v *SuiVerifier) Verify(ctx context.Context, reference, recipient, coinType, minimumRaw string) (*model.TransferReceipt, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domainErrors.Invalid("transactionDigest", "must not be empty")
	}
	wantRecipient, err := suiaddr.Normalize(recipient)
	if err != nil {
		return nil, err
	}
	wantCoin, err := suiaddr.NormalizeCoinType(coinType)
	if err != nil {
		return nil, err
	}
	minimum, err := uint256.FromDecimal(minimumRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: minimum %q", domainErrors.ErrInvalidAmount, minimumRaw)
	}

	tx, err := v.fetch(ctx, reference)
	if err != nil {
		return nil, err
	}

	if tx.Effects == nil || tx.Effects.Status.Status != statusSuccess {
		detail := "missing effects"
		if tx.Effects != nil {
			detail = strings.TrimSpace(tx.Effects.Status.Status + " " + tx.Effects.Status.Error)
		}
		return nil, &domainErrors.VerificationError{Reason: domainErrors.ReasonTransactionFailed, Detail: detail}
	}

	sum, matched, err := sumCredits(tx.BalanceChanges, wantRecipient, wantCoin)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, &domainErrors.VerificationError{
			Reason: domainErrors.ReasonNoMatch,
			Detail: fmt.Sprintf("no credit of %s to %s", wantCoin, wantRecipient),
		}
	}
	if sum.Lt(minimum) {
		return nil, &domainErrors.VerificationError{
			Reason:   domainErrors.ReasonAmountTooLow,
			Required: minimum.Dec(),
			Actual:   sum.Dec(),
		}
	}

	return &model.TransferReceipt{
		Reference: reference,
		Recipient: wantRecipient,
		CoinType:  wantCoin,
		Amount:    sum.Dec(),
	}, nil
}

func (v *SuiVerifier) fetch(ctx context.Context, reference string) (*transactionBlock, error) {
	opts := responseOptions{ShowEffects: true, ShowBalanceChanges: true}
	for attempt := 1; ; attempt++ {
		var tx *transactionBlock
		err := v.client.CallContext(ctx, &tx, methodGetTransactionBlock, reference, opts)
		switch {
		case err == nil && tx != nil:
			return tx, nil
		case err == nil, isNotFound(err):
			err = errPending
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			v.logger.Warn("chain rpc failed", slog.String("reference", reference), slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrChainUnavailable, err)
		}

		if attempt >= v.attempts {
			return nil, &domainErrors.VerificationError{Reason: domainErrors.ReasonNotFound, Detail: reference}
		}
		v.logger.Debug("transaction not found, retrying",
			slog.String("reference", reference),
			slog.Int("attempt", attempt),
		)
		if err := sleep(ctx, v.backoff); err != nil {
			return nil, err
		}
	}
}

func sumCredits(changes []balanceChange, recipient, coinType string) (*uint256.Int, bool, error) {
	sum := new(uint256.Int)
	matched := false
	for _, change := range changes {
		if change.Owner.AddressOwner == "" {
			continue
		}
		gotCoin, err := suiaddr.NormalizeCoinType(change.CoinType)
		if err != nil || gotCoin != coinType {
			continue
		}
		if !suiaddr.Equal(change.Owner.AddressOwner, recipient) {
			continue
		}
		amount := strings.TrimSpace(change.Amount)
		if amount == "" || strings.HasPrefix(amount, "-") {
			continue
		}
		value, err := uint256.FromDecimal(strings.TrimPrefix(amount, "+"))
		if err != nil {
			return nil, false, fmt.Errorf("%w: balance change %q", domainErrors.ErrInvalidAmount, change.Amount)
		}
		if value.IsZero() {
			continue
		}
		var overflow bool
		sum, overflow = new(uint256.Int).AddOverflow(sum, value)
		if overflow {
			return nil, false, fmt.Errorf("%w: balance change sum overflows", domainErrors.ErrInvalidAmount)
		}
		matched = true
	}
	return sum, matched, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, rpc.ErrNoResult) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if strings.Contains(rpcErr.Error(), notFoundMessage) {
			return true
		}
		return rpcErr.ErrorCode() == invalidParamsCode
	}
	return strings.Contains(err.Error(), notFoundMessage)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
