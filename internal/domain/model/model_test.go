package model

import "testing"

func TestOrderStatusValues(t *testing.T) {
	cases := []struct {
		name     string
		got      OrderStatus
		value    string
		terminal bool
	}{
		{"awaiting proof", OrderStatusAwaitingProof, "AWAITING_PROOF", false},
		{"proof verified", OrderStatusProofVerified, "PROOF_VERIFIED", false},
		{"submitting", OrderStatusSubmittingPayout, "SUBMITTING_PAYOUT", false},
		{"accepted", OrderStatusPayoutAccepted, "PAYOUT_ACCEPTED", false},
		{"completed", OrderStatusCompleted, "COMPLETED", true},
		{"failed", OrderStatusFailed, "FAILED", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if string(tc.got) != tc.value {
				t.Fatalf("expected %s, got %s", tc.value, tc.got)
			}
			if tc.got.Terminal() != tc.terminal {
				t.Fatalf("expected terminal=%v for %s", tc.terminal, tc.got)
			}
		})
	}
}

func TestOrderHasPartnerReference(t *testing.T) {
	var o Order
	if o.HasPartnerReference() {
		t.Fatal("expected no partner reference")
	}
	empty := ""
	o.PartnerReference = &empty
	if o.HasPartnerReference() {
		t.Fatal("empty reference must not count")
	}
	ref := "P1"
	o.PartnerReference = &ref
	if !o.HasPartnerReference() {
		t.Fatal("expected partner reference")
	}
}

func TestPayoutStateValues(t *testing.T) {
	cases := []struct {
		state PayoutState
		value string
	}{
		{PayoutStateProcessing, "processing"},
		{PayoutStateCompleted, "completed"},
		{PayoutStateFailed, "failed"},
	}

	for _, tc := range cases {
		if string(tc.state) != tc.value {
			t.Fatalf("expected %s, got %s", tc.value, tc.state)
		}
	}
}
