// Package payments defines the domain types shared across the payment engine.
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// NativeToken is the chain's native token symbol.
const NativeToken = "PC"

// TxStatus represents the current state of an on-chain transaction record
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// TxType classifies how a transaction record was produced
type TxType string

const (
	TxTypeSend   TxType = "send"
	TxTypeFaucet TxType = "faucet"
	TxTypeSplit  TxType = "split_settlement"
)

// RequestStatus represents the state of a payment request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusPaid     RequestStatus = "paid"
	RequestStatusDeclined RequestStatus = "declined"
	RequestStatusExpired  RequestStatus = "expired"
)

// SplitStatus represents the state of a split payment
type SplitStatus string

const (
	SplitStatusActive    SplitStatus = "active"
	SplitStatusCompleted SplitStatus = "completed"
	SplitStatusCancelled SplitStatus = "cancelled"
)

// ParticipantStatus represents the state of one split participant
type ParticipantStatus string

const (
	ParticipantStatusPending  ParticipantStatus = "pending"
	ParticipantStatusAccepted ParticipantStatus = "accepted"
	ParticipantStatusDeclined ParticipantStatus = "declined"
	ParticipantStatusPaid     ParticipantStatus = "paid"
)

// User is a registered chat user with a custodial wallet.
// Wallet fields are immutable after creation; totals are mutated only
// by the ledger on confirmed transactions.
type User struct {
	ID            int64
	PlatformID    int64
	Handle        string
	Phone         string
	WalletAddress string
	EncryptedKey  string
	DailyLimit    decimal.Decimal
	TotalSent     decimal.Decimal
	TotalReceived decimal.Decimal
	CreatedAt     time.Time
}

// Transaction is a durable record of one value transfer.
// Status transitions pending -> confirmed|failed exactly once; rows are never deleted.
type Transaction struct {
	ID         int64
	Hash       string
	FromUserID *int64
	ToUserID   *int64
	ToAddress  string
	Amount     decimal.Decimal
	Token      string
	Status     TxStatus
	Type       TxType
	Message    string
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentRequest asks a payer to send the requester a fixed amount.
// Terminal states are final; expiry is enforced lazily on read.
type PaymentRequest struct {
	ID          int64
	RequesterID int64
	PayerID     int64
	Amount      decimal.Decimal
	Token       string
	Message     string
	Status      RequestStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether a pending request has passed its expiry.
func (r *PaymentRequest) Expired(now time.Time) bool {
	return r.Status == RequestStatusPending && now.After(r.ExpiresAt)
}

// SplitPayment divides a total equally among a creator and its participants.
type SplitPayment struct {
	ID          int64
	CreatorID   int64
	TotalAmount decimal.Decimal
	Token       string
	Description string
	Status      SplitStatus
	CreatedAt   time.Time
	CompletedAt *time.Time

	Participants []*SplitParticipant
}

// SplitParticipant is one participant's share of a split.
// AmountOwed is fixed at creation: total / (participant_count + 1).
type SplitParticipant struct {
	ID      int64
	SplitID int64
	UserID  int64
	// AmountOwed is this participant's equal share.
	AmountOwed decimal.Decimal
	Status     ParticipantStatus
	PaidAt     *time.Time
}

// EqualShare computes the per-participant share for a split of total among
// n participants plus the creator. Shares round down to 8 decimal places so
// they can never sum past total; the creator's implicit share absorbs the
// remainder.
func EqualShare(total decimal.Decimal, participants int) decimal.Decimal {
	share, _ := total.QuoRem(decimal.NewFromInt(int64(participants+1)), 8)
	return share
}

// AllAccepted reports whether every participant has accepted (or already paid).
func (s *SplitPayment) AllAccepted() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if p.Status != ParticipantStatusAccepted && p.Status != ParticipantStatusPaid {
			return false
		}
	}
	return true
}
