package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/promptcash/paybot/pkg/payments"
)

// UserDao maps directly to the 'users' table.
type UserDao struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            int64     `bun:"id,pk,autoincrement"`
	PlatformID    int64     `bun:"platform_id,unique,notnull"`
	Handle        *string   `bun:"handle,type:varchar(64)"`
	Phone         *string   `bun:"phone,type:varchar(32)"`
	WalletAddress string    `bun:"wallet_address,unique,notnull,type:varchar(42)"`
	EncryptedKey  string    `bun:"encrypted_key,notnull,type:text"`
	DailyLimit    string    `bun:"daily_limit,notnull,type:numeric(38,18)"`
	TotalSent     string    `bun:"total_sent,notnull,type:numeric(38,18)"`
	TotalReceived string    `bun:"total_received,notnull,type:numeric(38,18)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// TransactionDao maps directly to the 'transactions' table.
type TransactionDao struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`
	ID            int64             `bun:"id,pk,autoincrement"`
	Hash          string            `bun:"hash,unique,notnull,type:varchar(128)"`
	FromUserID    *int64            `bun:"from_user_id"`
	ToUserID      *int64            `bun:"to_user_id"`
	ToAddress     string            `bun:"to_address,notnull,type:varchar(42)"`
	Amount        string            `bun:"amount,notnull,type:numeric(38,18)"`
	Token         string            `bun:"token,notnull,type:varchar(16)"`
	Status        string            `bun:"status,notnull,type:varchar(16)"`
	Type          string            `bun:"type,notnull,type:varchar(32)"`
	Message       *string           `bun:"message,type:text"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt     time.Time         `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time         `bun:"updated_at,nullzero,default:current_timestamp"`
}

// PaymentRequestDao maps directly to the 'payment_requests' table.
type PaymentRequestDao struct {
	bun.BaseModel `bun:"table:payment_requests,alias:pr"`
	ID            int64     `bun:"id,pk,autoincrement"`
	RequesterID   int64     `bun:"requester_id,notnull"`
	PayerID       int64     `bun:"payer_id,notnull"`
	Amount        string    `bun:"amount,notnull,type:numeric(38,18)"`
	Token         string    `bun:"token,notnull,type:varchar(16)"`
	Message       *string   `bun:"message,type:text"`
	Status        string    `bun:"status,notnull,type:varchar(16)"`
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// SplitPaymentDao maps directly to the 'split_payments' table.
type SplitPaymentDao struct {
	bun.BaseModel `bun:"table:split_payments,alias:sp"`
	ID            int64      `bun:"id,pk,autoincrement"`
	CreatorID     int64      `bun:"creator_id,notnull"`
	TotalAmount   string     `bun:"total_amount,notnull,type:numeric(38,18)"`
	Token         string     `bun:"token,notnull,type:varchar(16)"`
	Description   *string    `bun:"description,type:text"`
	Status        string     `bun:"status,notnull,type:varchar(16)"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	CompletedAt   *time.Time `bun:"completed_at"`
}

// SplitParticipantDao maps directly to the 'split_participants' table.
type SplitParticipantDao struct {
	bun.BaseModel `bun:"table:split_participants,alias:spp"`
	ID            int64      `bun:"id,pk,autoincrement"`
	SplitID       int64      `bun:"split_id,notnull"`
	UserID        int64      `bun:"user_id,notnull"`
	AmountOwed    string     `bun:"amount_owed,notnull,type:numeric(38,18)"`
	Status        string     `bun:"status,notnull,type:varchar(16)"`
	PaidAt        *time.Time `bun:"paid_at"`
}

func toUserDao(usr *payments.User) *UserDao {
	dao := &UserDao{
		PlatformID:    usr.PlatformID,
		WalletAddress: usr.WalletAddress,
		EncryptedKey:  usr.EncryptedKey,
		DailyLimit:    usr.DailyLimit.String(),
		TotalSent:     usr.TotalSent.String(),
		TotalReceived: usr.TotalReceived.String(),
	}
	if usr.Handle != "" {
		h := usr.Handle
		dao.Handle = &h
	}
	if usr.Phone != "" {
		p := usr.Phone
		dao.Phone = &p
	}
	return dao
}

func toUser(dao *UserDao) *payments.User {
	usr := &payments.User{
		ID:            dao.ID,
		PlatformID:    dao.PlatformID,
		WalletAddress: dao.WalletAddress,
		EncryptedKey:  dao.EncryptedKey,
		DailyLimit:    mustDecimal(dao.DailyLimit),
		TotalSent:     mustDecimal(dao.TotalSent),
		TotalReceived: mustDecimal(dao.TotalReceived),
		CreatedAt:     dao.CreatedAt,
	}
	if dao.Handle != nil {
		usr.Handle = *dao.Handle
	}
	if dao.Phone != nil {
		usr.Phone = *dao.Phone
	}
	return usr
}

func toTransactionDao(tx *payments.Transaction) *TransactionDao {
	dao := &TransactionDao{
		ID:         tx.ID,
		Hash:       tx.Hash,
		FromUserID: tx.FromUserID,
		ToUserID:   tx.ToUserID,
		ToAddress:  tx.ToAddress,
		Amount:     tx.Amount.String(),
		Token:      tx.Token,
		Status:     string(tx.Status),
		Type:       string(tx.Type),
		Metadata:   tx.Metadata,
	}
	if tx.Message != "" {
		m := tx.Message
		dao.Message = &m
	}
	return dao
}

func toTransaction(dao *TransactionDao) *payments.Transaction {
	tx := &payments.Transaction{
		ID:         dao.ID,
		Hash:       dao.Hash,
		FromUserID: dao.FromUserID,
		ToUserID:   dao.ToUserID,
		ToAddress:  dao.ToAddress,
		Amount:     mustDecimal(dao.Amount),
		Token:      dao.Token,
		Status:     payments.TxStatus(dao.Status),
		Type:       payments.TxType(dao.Type),
		Metadata:   dao.Metadata,
		CreatedAt:  dao.CreatedAt,
		UpdatedAt:  dao.UpdatedAt,
	}
	if dao.Message != nil {
		tx.Message = *dao.Message
	}
	return tx
}

func toRequestDao(req *payments.PaymentRequest) *PaymentRequestDao {
	dao := &PaymentRequestDao{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		PayerID:     req.PayerID,
		Amount:      req.Amount.String(),
		Token:       req.Token,
		Status:      string(req.Status),
		ExpiresAt:   req.ExpiresAt,
	}
	if req.Message != "" {
		m := req.Message
		dao.Message = &m
	}
	return dao
}

func toRequest(dao *PaymentRequestDao) *payments.PaymentRequest {
	req := &payments.PaymentRequest{
		ID:          dao.ID,
		RequesterID: dao.RequesterID,
		PayerID:     dao.PayerID,
		Amount:      mustDecimal(dao.Amount),
		Token:       dao.Token,
		Status:      payments.RequestStatus(dao.Status),
		ExpiresAt:   dao.ExpiresAt,
		CreatedAt:   dao.CreatedAt,
	}
	if dao.Message != nil {
		req.Message = *dao.Message
	}
	return req
}

func toSplitDao(split *payments.SplitPayment) *SplitPaymentDao {
	dao := &SplitPaymentDao{
		ID:          split.ID,
		CreatorID:   split.CreatorID,
		TotalAmount: split.TotalAmount.String(),
		Token:       split.Token,
		Status:      string(split.Status),
		CompletedAt: split.CompletedAt,
	}
	if split.Description != "" {
		d := split.Description
		dao.Description = &d
	}
	return dao
}

func toSplit(dao *SplitPaymentDao, participants []*SplitParticipantDao) *payments.SplitPayment {
	split := &payments.SplitPayment{
		ID:          dao.ID,
		CreatorID:   dao.CreatorID,
		TotalAmount: mustDecimal(dao.TotalAmount),
		Token:       dao.Token,
		Status:      payments.SplitStatus(dao.Status),
		CreatedAt:   dao.CreatedAt,
		CompletedAt: dao.CompletedAt,
	}
	if dao.Description != nil {
		split.Description = *dao.Description
	}
	for _, p := range participants {
		split.Participants = append(split.Participants, toParticipant(p))
	}
	return split
}

func toParticipantDao(p *payments.SplitParticipant) *SplitParticipantDao {
	return &SplitParticipantDao{
		ID:         p.ID,
		SplitID:    p.SplitID,
		UserID:     p.UserID,
		AmountOwed: p.AmountOwed.String(),
		Status:     string(p.Status),
		PaidAt:     p.PaidAt,
	}
}

func toParticipant(dao *SplitParticipantDao) *payments.SplitParticipant {
	return &payments.SplitParticipant{
		ID:         dao.ID,
		SplitID:    dao.SplitID,
		UserID:     dao.UserID,
		AmountOwed: mustDecimal(dao.AmountOwed),
		Status:     payments.ParticipantStatus(dao.Status),
		PaidAt:     dao.PaidAt,
	}
}

// mustDecimal parses a numeric column value. Stored values always come from
// decimal.String, so a parse failure means column corruption; zero is the
// least harmful reading.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
