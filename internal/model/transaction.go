package model

import "time"

// Unit represents a sellable property resolved by its human-readable code
type Unit struct {
	ID        int64     `db:"id" json:"id"`
	UnitNo    string    `db:"unit_no" json:"unit_no"`
	Status    string    `db:"status" json:"status"`
	AreaM2    *float64  `db:"area_m2" json:"area_m2,omitempty"`
	BuyerName *string   `db:"buyer_name" json:"buyer_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction represents a recorded payment event against a unit.
// Rows are insert-only; nothing in the system mutates or deletes them.
type Transaction struct {
	ID         int64     `db:"id" json:"id"`
	UnitID     int64     `db:"unit_id" json:"unit_id"`
	TxnType    string    `db:"txn_type" json:"txn_type"`
	Amount     float64   `db:"amount" json:"amount"`
	Currency   string    `db:"currency" json:"currency"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	Memo       *string   `db:"memo" json:"memo,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RecordRequest is the confirm/record payload for a completed entity set
type RecordRequest struct {
	UnitNo     string  `json:"unit_no"`
	BuyerName  string  `json:"buyer_name"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	TxnType    string  `json:"txn_type"`
	OccurredAt string  `json:"occurred_at"`
	Memo       string  `json:"memo"`
}

// RecordResponse wraps a persisted transaction
type RecordResponse struct {
	Success bool         `json:"success"`
	Data    *Transaction `json:"data"`
}
