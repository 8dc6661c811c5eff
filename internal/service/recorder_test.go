package service

import (
	"context"
	"testing"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/model"
)

func TestRecord_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  model.RecordRequest
	}{
		{
			name: "missing unit_no",
			req:  model.RecordRequest{Amount: 100, TxnType: "定金"},
		},
		{
			name: "missing amount",
			req:  model.RecordRequest{UnitNo: "A1-1002", TxnType: "定金"},
		},
		{
			name: "missing txn_type",
			req:  model.RecordRequest{UnitNo: "A1-1002", Amount: 100},
		},
		{
			name: "empty request",
			req:  model.RecordRequest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := NewRecorder(newMemStore(), newMemStore())
			_, err := recorder.Record(context.Background(), tt.req)
			if !apperr.Is(err, apperr.Validation) {
				t.Errorf("Expected Validation error, got %v", err)
			}
		})
	}
}

func TestRecord_UnknownUnit(t *testing.T) {
	store := newMemStore()
	recorder := NewRecorder(store, store)

	_, err := recorder.Record(context.Background(), model.RecordRequest{
		UnitNo: "Z9-9999", BuyerName: "张三", Amount: 100, TxnType: "定金",
	})
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Expected NotFound for unmatched unit, got %v", err)
	}
}

func TestRecord_Success(t *testing.T) {
	store := newMemStore()
	store.addUnit("A1-1002")
	recorder := NewRecorder(store, store)

	txn, err := recorder.Record(context.Background(), model.RecordRequest{
		UnitNo:    "A1-1002",
		BuyerName: "张三",
		Amount:    200000,
		TxnType:   "定金",
		Memo:      "通过AI助手录入",
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	if txn.ID == 0 {
		t.Error("Expected a persisted id")
	}
	if txn.UnitID != 1 {
		t.Errorf("Expected unit_id 1, got %d", txn.UnitID)
	}
	if txn.Amount != 200000 {
		t.Errorf("Expected amount 200000, got %v", txn.Amount)
	}
	if txn.TxnType != "定金" {
		t.Errorf("Expected txn_type 定金, got %q", txn.TxnType)
	}
	if txn.Currency != "CNY" {
		t.Errorf("Expected default currency CNY, got %q", txn.Currency)
	}
	if txn.Memo == nil || *txn.Memo != "通过AI助手录入" {
		t.Error("Expected memo to be stored")
	}
	// occurred_at defaults to the submission date
	if time.Since(txn.OccurredAt) > time.Minute {
		t.Errorf("Expected occurred_at near now, got %v", txn.OccurredAt)
	}
}

func TestRecord_ExplicitOccurredAt(t *testing.T) {
	store := newMemStore()
	store.addUnit("A1-1002")
	recorder := NewRecorder(store, store)

	txn, err := recorder.Record(context.Background(), model.RecordRequest{
		UnitNo: "A1-1002", Amount: 500, TxnType: "尾款", OccurredAt: "2026-08-01",
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if got := txn.OccurredAt.Format("2006-01-02"); got != "2026-08-01" {
		t.Errorf("Expected occurred_at 2026-08-01, got %s", got)
	}

	_, err = recorder.Record(context.Background(), model.RecordRequest{
		UnitNo: "A1-1002", Amount: 500, TxnType: "尾款", OccurredAt: "not-a-date",
	})
	if !apperr.Is(err, apperr.Validation) {
		t.Errorf("Expected Validation for bad date, got %v", err)
	}
}
