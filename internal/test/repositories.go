package test

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
)

// OrderStore is an in-memory order repository with the same conditional
// update semantics as the PostgreSQL implementation. Safe for concurrent use.
type OrderStore struct {
	mu      sync.Mutex
	orders  map[string]*model.Order
	byKey   map[string]string
	byRef   map[string]string
	events  map[string][]model.OrderEvent
	Err     error
	CreateN int
}

// NewOrderStore constructs empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*model.Order),
		byKey:  make(map[string]string),
		byRef:  make(map[string]string),
		events: make(map[string][]model.OrderEvent),
	}
}

// Put stores order as is, bypassing transition rules.
func (s *OrderStore) Put(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := cloneOrder(&order)
	s.orders[o.ID] = o
	if o.IdempotencyKey != nil {
		s.byKey[*o.IdempotencyKey] = o.ID
	}
	if o.TransactionRef != nil {
		s.byRef[*o.TransactionRef] = o.ID
	}
}

// Snapshot returns a copy of stored order.
func (s *OrderStore) Snapshot(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return *cloneOrder(o), true
}

func (s *OrderStore) Create(ctx context.Context, order *model.Order) (*model.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, false, s.Err
	}
	if order.IdempotencyKey != nil {
		if id, ok := s.byKey[*order.IdempotencyKey]; ok {
			return cloneOrder(s.orders[id]), false, nil
		}
	}
	if _, ok := s.orders[order.ID]; ok {
		return nil, false, domainErrors.ErrAlreadyExists
	}
	o := cloneOrder(order)
	s.orders[o.ID] = o
	if o.IdempotencyKey != nil {
		s.byKey[*o.IdempotencyKey] = o.ID
	}
	s.CreateN++
	s.record(o, "created")
	return cloneOrder(o), true, nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, &domainErrors.NotFoundError{Entity: "order", ID: id}
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) GetByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	id, ok := s.byKey[key]
	if !ok {
		return nil, &domainErrors.NotFoundError{Entity: "order", ID: key}
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *OrderStore) MarkProofVerified(ctx context.Context, id, txRef, verifiedAmount string, verifiedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != model.OrderStatusAwaitingProof {
		return false, nil
	}
	if other, taken := s.byRef[txRef]; taken && other != id {
		return false, &domainErrors.ValidationError{Field: "transactionDigest", Reason: "already proves another order", Err: domainErrors.ErrAlreadyExists}
	}
	o.Status = model.OrderStatusProofVerified
	o.TransactionRef = ptr(txRef)
	o.VerifiedAmount = ptr(verifiedAmount)
	o.VerifiedAt = &verifiedAt
	o.UpdatedAt = time.Now().UTC()
	s.byRef[txRef] = id
	s.record(o, "proof "+txRef)
	return true, nil
}

func (s *OrderStore) ClaimSubmission(ctx context.Context, id, claim string, now, leaseUntil time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.HasPartnerReference() {
		return false, nil
	}
	claimable := o.Status == model.OrderStatusProofVerified ||
		(o.Status == model.OrderStatusSubmittingPayout && (o.SubmitClaim == nil || (o.SubmitLeaseUntil != nil && o.SubmitLeaseUntil.Before(now))))
	if !claimable {
		return false, nil
	}
	o.Status = model.OrderStatusSubmittingPayout
	o.SubmitClaim = ptr(claim)
	o.SubmitLeaseUntil = &leaseUntil
	o.SubmitAttempts++
	o.UpdatedAt = time.Now().UTC()
	s.record(o, "claimed")
	return true, nil
}

func (s *OrderStore) ReleaseSubmission(ctx context.Context, id, claim, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !holds(o, claim) {
		return nil
	}
	o.SubmitClaim = nil
	o.SubmitLeaseUntil = nil
	o.PartnerStatus = ptr(note)
	o.UpdatedAt = time.Now().UTC()
	s.record(o, note)
	return nil
}

func (s *OrderStore) MarkPayoutAccepted(ctx context.Context, id, claim, partnerRef, partnerStatus string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !holds(o, claim) || o.HasPartnerReference() {
		return false, nil
	}
	o.Status = model.OrderStatusPayoutAccepted
	o.PartnerReference = ptr(partnerRef)
	o.PartnerStatus = ptr(partnerStatus)
	o.SubmitClaim = nil
	o.SubmitLeaseUntil = nil
	o.UpdatedAt = time.Now().UTC()
	s.record(o, "partner "+partnerRef)
	return true, nil
}

func (s *OrderStore) MarkSubmissionRejected(ctx context.Context, id, claim, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !holds(o, claim) || o.HasPartnerReference() {
		return false, nil
	}
	o.Status = model.OrderStatusFailed
	o.FailureReason = ptr(reason)
	o.SubmitClaim = nil
	o.SubmitLeaseUntil = nil
	o.UpdatedAt = time.Now().UTC()
	s.record(o, reason)
	return true, nil
}

func (s *OrderStore) Settle(ctx context.Context, id string, status model.OrderStatus, partnerStatus, reason string, checkedAt time.Time) (bool, error) {
	if !status.Terminal() {
		return false, domainErrors.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != model.OrderStatusPayoutAccepted {
		return false, nil
	}
	o.Status = status
	o.PartnerStatus = ptr(partnerStatus)
	if reason != "" {
		o.FailureReason = ptr(reason)
	}
	o.LastCheckedAt = &checkedAt
	o.UpdatedAt = time.Now().UTC()
	s.record(o, partnerStatus)
	return true, nil
}

func (s *OrderStore) TouchChecked(ctx context.Context, id, partnerStatus string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != model.OrderStatusPayoutAccepted {
		return nil
	}
	o.PartnerStatus = ptr(partnerStatus)
	o.LastCheckedAt = &checkedAt
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *OrderStore) ListPending(ctx context.Context, limit int, staleBefore time.Time) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var result []model.Order
	for _, o := range s.orders {
		switch {
		case o.Status == model.OrderStatusPayoutAccepted:
		case (o.Status == model.OrderStatusProofVerified || o.Status == model.OrderStatusSubmittingPayout) &&
			!o.HasPartnerReference() && o.UpdatedAt.Before(staleBefore):
		default:
			continue
		}
		result = append(result, *cloneOrder(o))
	}
	sort.Slice(result, func(i, j int) bool { return checkedAt(&result[i]).Before(checkedAt(&result[j])) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *OrderStore) History(ctx context.Context, id string) ([]model.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderEvent(nil), s.events[id]...), nil
}

func (s *OrderStore) record(o *model.Order, note string) {
	s.events[o.ID] = append(s.events[o.ID], model.OrderEvent{OrderID: o.ID, Status: o.Status, Note: note, CreatedAt: time.Now().UTC()})
}

func holds(o *model.Order, claim string) bool {
	return o.SubmitClaim != nil && *o.SubmitClaim == claim
}

func checkedAt(o *model.Order) time.Time {
	if o.LastCheckedAt != nil {
		return *o.LastCheckedAt
	}
	return o.UpdatedAt
}

func ptr[T any](v T) *T { return &v }

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.IdempotencyKey = clonePtr(o.IdempotencyKey)
	c.TransactionRef = clonePtr(o.TransactionRef)
	c.VerifiedAmount = clonePtr(o.VerifiedAmount)
	c.VerifiedAt = clonePtr(o.VerifiedAt)
	c.PartnerReference = clonePtr(o.PartnerReference)
	c.PartnerStatus = clonePtr(o.PartnerStatus)
	c.FailureReason = clonePtr(o.FailureReason)
	c.SubmitClaim = clonePtr(o.SubmitClaim)
	c.SubmitLeaseUntil = clonePtr(o.SubmitLeaseUntil)
	c.LastCheckedAt = clonePtr(o.LastCheckedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
