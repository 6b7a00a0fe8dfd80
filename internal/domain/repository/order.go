package repository

import (
	"context"
	"time"

	"github.com/polkiloo/offramp/internal/domain/model"
)

// OrderRepository describes persistence operations with settlement orders.
//
// Every Mark*/Claim* method is a conditional update: it reports false when the
// precondition no longer holds, and the caller must re-read the order.
type OrderRepository interface {
	// Create inserts order unless its idempotency key is taken, in which case
	// the stored order is returned with created=false.
	Create(ctx context.Context, order *model.Order) (*model.Order, bool, error)
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)

	MarkProofVerified(ctx context.Context, id, txRef, verifiedAmount string, verifiedAt time.Time) (bool, error)

	// ClaimSubmission moves order into SUBMITTING_PAYOUT under claim when no
	// partner reference is set and no other claim holds a lease past now.
	ClaimSubmission(ctx context.Context, id, claim string, now, leaseUntil time.Time) (bool, error)
	ReleaseSubmission(ctx context.Context, id, claim, note string) error
	MarkPayoutAccepted(ctx context.Context, id, claim, partnerRef, partnerStatus string) (bool, error)
	MarkSubmissionRejected(ctx context.Context, id, claim, reason string) (bool, error)

	// Settle moves PAYOUT_ACCEPTED order into a terminal status.
	Settle(ctx context.Context, id string, status model.OrderStatus, partnerStatus, reason string, checkedAt time.Time) (bool, error)
	TouchChecked(ctx context.Context, id, partnerStatus string, checkedAt time.Time) error

	// ListPending returns orders awaiting partner progress: accepted payouts to
	// reconcile and unsubmitted ones idle since before staleBefore.
	ListPending(ctx context.Context, limit int, staleBefore time.Time) ([]model.Order, error)

	// History lists recorded transitions of order, oldest first.
	History(ctx context.Context, id string) ([]model.OrderEvent, error)
}
