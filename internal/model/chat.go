package model

// Payment types form a closed enumeration; the extractor rejects anything else.
const (
	TxnTypeDeposit     = "定金"
	TxnTypeDownPayment = "首付"
	TxnTypeInstallment = "分期款"
	TxnTypeFinal       = "尾款"
)

// TxnTypes lists the valid payment types in canonical order
var TxnTypes = []string{TxnTypeDeposit, TxnTypeDownPayment, TxnTypeInstallment, TxnTypeFinal}

// ValidTxnType reports whether s is a member of the payment-type enum
func ValidTxnType(s string) bool {
	for _, t := range TxnTypes {
		if s == t {
			return true
		}
	}
	return false
}

// MissingFieldAPIKey marks an extraction that could not run for lack of a credential
const MissingFieldAPIKey = "ai_api_key"

// ExtractFields lists the field names the extractor may report as missing
var ExtractFields = []string{"unit_no", "buyer_name", "amount", "currency", "txn_type", MissingFieldAPIKey}

// RequiredFields are the fields a transaction draft needs before it can be confirmed
var RequiredFields = []string{"unit_no", "buyer_name", "amount", "txn_type"}

// ExtractResult is the schema-validated outcome of one extraction turn:
// a partial transaction draft plus the fields still missing and the
// assistant's natural-language reply.
type ExtractResult struct {
	Intent        string   `json:"intent,omitempty"`
	UnitNo        string   `json:"unit_no,omitempty"`
	BuyerName     string   `json:"buyer_name,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	TxnType       string   `json:"txn_type,omitempty"`
	MissingFields []string `json:"missing_fields"`
	Reply         string   `json:"reply,omitempty"`
}

// HasEntities reports whether the extraction carried any transaction field
func (r *ExtractResult) HasEntities() bool {
	return r.UnitNo != "" || r.BuyerName != "" || r.Amount != nil || r.Currency != "" || r.TxnType != ""
}

// Complete reports whether the draft is ready to confirm: every required
// field present and none of them listed as missing.
func (r *ExtractResult) Complete() bool {
	if r.UnitNo == "" || r.BuyerName == "" || r.Amount == nil || r.TxnType == "" {
		return false
	}
	for _, f := range r.MissingFields {
		for _, req := range RequiredFields {
			if f == req {
				return false
			}
		}
		if f == MissingFieldAPIKey {
			return false
		}
	}
	return true
}

// Entities is the transaction-field subset of an extraction, as rendered
// to the chat client.
type Entities struct {
	UnitNo    string   `json:"unit_no,omitempty"`
	BuyerName string   `json:"buyer_name,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	TxnType   string   `json:"txn_type,omitempty"`
}

// Entities extracts the renderable entity set from the result
func (r *ExtractResult) Entities() Entities {
	return Entities{
		UnitNo:    r.UnitNo,
		BuyerName: r.BuyerName,
		Amount:    r.Amount,
		Currency:  r.Currency,
		TxnType:   r.TxnType,
	}
}

// Message is one turn in a conversation session. Messages are append-only
// and held in memory for the lifetime of the session.
type Message struct {
	ID       string    `json:"id"`
	Role     string    `json:"role"` // "user" or "assistant"
	Text     string    `json:"text"`
	Entities *Entities `json:"entities,omitempty"`
}

// ChatRequest is the request body for one chat turn
type ChatRequest struct {
	Message    string `json:"message"`
	ProviderID *int64 `json:"provider_id"`
	ModelID    *int64 `json:"model_id"`
}

// ChatResponse is the rendered outcome of one chat turn
type ChatResponse struct {
	Reply         string   `json:"reply"`
	Entities      Entities `json:"entities"`
	MissingFields []string `json:"missing_fields"`
}
