package payments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEqualShare(t *testing.T) {
	tests := []struct {
		total        string
		participants int
		want         string
	}{
		{"30", 2, "10"},
		{"100", 3, "25"},
		{"10", 2, "3.33333333"},
		{"0.00000003", 2, "0.00000001"},
		// Shares truncate rather than round half-up: 0.000000025 stays at
		// 0.00000002 so two of them cannot outgrow the total.
		{"0.00000005", 1, "0.00000002"},
		// Dust below one unit at 8 places rounds to zero and the creator
		// absorbs the whole amount.
		{"0.00000002", 2, "0"},
	}
	for _, tc := range tests {
		got := EqualShare(decimal.RequireFromString(tc.total), tc.participants)
		if got.String() != tc.want {
			t.Errorf("EqualShare(%s, %d) = %s, want %s", tc.total, tc.participants, got, tc.want)
		}
	}
}

// Participant shares plus the creator's implicit remainder always recover the
// total, for any participant count.
func TestEqualShare_SumNeverExceedsTotal(t *testing.T) {
	for _, total := range []string{"10", "99.99", "0.00000001", "0.00000002", "0.00000007", "123456.789"} {
		for n := 1; n <= 9; n++ {
			tot := decimal.RequireFromString(total)
			share := EqualShare(tot, n)
			collected := share.Mul(decimal.NewFromInt(int64(n)))
			creator := tot.Sub(collected)
			if creator.IsNegative() {
				t.Errorf("total %s, %d participants: collected %s exceeds total", total, n, collected)
			}
			if collected.Add(creator).Cmp(tot) != 0 {
				t.Errorf("total %s, %d participants: shares do not recover total", total, n)
			}
		}
	}
}

func TestAllAccepted(t *testing.T) {
	split := &SplitPayment{Participants: []*SplitParticipant{
		{Status: ParticipantStatusAccepted},
		{Status: ParticipantStatusPending},
	}}
	if split.AllAccepted() {
		t.Error("AllAccepted with a pending participant")
	}

	split.Participants[1].Status = ParticipantStatusAccepted
	if !split.AllAccepted() {
		t.Error("AllAccepted false with all accepted")
	}

	// Paid counts as accepted on re-check after partial settlement.
	split.Participants[0].Status = ParticipantStatusPaid
	if !split.AllAccepted() {
		t.Error("AllAccepted false with paid participant")
	}

	split.Participants[1].Status = ParticipantStatusDeclined
	if split.AllAccepted() {
		t.Error("AllAccepted with a declined participant")
	}

	empty := &SplitPayment{}
	if empty.AllAccepted() {
		t.Error("AllAccepted for a split with no participants")
	}
}

func TestPaymentRequest_Expired(t *testing.T) {
	now := time.Now()
	req := &PaymentRequest{Status: RequestStatusPending, ExpiresAt: now.Add(time.Hour)}

	if req.Expired(now) {
		t.Error("request expired before its deadline")
	}
	if !req.Expired(now.Add(2 * time.Hour)) {
		t.Error("request not expired after its deadline")
	}

	// Terminal states never report expired.
	req.Status = RequestStatusPaid
	if req.Expired(now.Add(2 * time.Hour)) {
		t.Error("paid request reported expired")
	}
}
