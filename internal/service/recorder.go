package service

import (
	"context"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/model"
)

// UnitStore is the unit-catalog surface the recorder consumes
type UnitStore interface {
	FindUnitByNo(ctx context.Context, unitNo string) (*model.Unit, error)
	ListUnits(ctx context.Context, limit int) ([]model.Unit, error)
}

// TransactionStore persists confirmed transactions
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
}

// Recorder validates a confirmed entity set against the unit catalog and
// persists a transaction. It never creates units.
type Recorder struct {
	units UnitStore
	txns  TransactionStore
}

// NewRecorder creates a transaction recorder
func NewRecorder(units UnitStore, txns TransactionStore) *Recorder {
	return &Recorder{units: units, txns: txns}
}

// Record persists one confirmed transaction. occurred_at defaults to the
// submission date, currency to CNY.
func (r *Recorder) Record(ctx context.Context, req model.RecordRequest) (*model.Transaction, error) {
	if req.UnitNo == "" || req.Amount == 0 || req.TxnType == "" {
		return nil, apperr.New(apperr.Validation, "unit_no, amount, and txn_type are required")
	}

	unit, err := r.units.FindUnitByNo(ctx, req.UnitNo)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, apperr.New(apperr.NotFound, "unit not found: %s", req.UnitNo)
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse("2006-01-02", req.OccurredAt)
		if err != nil {
			return nil, apperr.New(apperr.Validation, "invalid occurred_at: %s", req.OccurredAt)
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = "CNY"
	}

	txn := &model.Transaction{
		UnitID:     unit.ID,
		TxnType:    req.TxnType,
		Amount:     req.Amount,
		Currency:   currency,
		OccurredAt: occurredAt,
	}
	if req.Memo != "" {
		memo := req.Memo
		txn.Memo = &memo
	}

	return r.txns.CreateTransaction(ctx, txn)
}

// ListUnits exposes the unit catalog read surface
func (r *Recorder) ListUnits(ctx context.Context, limit int) ([]model.Unit, error) {
	return r.units.ListUnits(ctx, limit)
}
