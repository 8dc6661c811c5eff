package service

import (
	"context"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/model"
	"ledger/internal/utils"
)

// extractSystemPrompt fixes the extraction contract: required fields, the
// closed payment-type enumeration, the list-don't-guess rule, and strict
// JSON output.
const extractSystemPrompt = `你是房地产工抵台账助手。你的任务是从用户输入中提取结构化字段，并且只输出 JSON。

需要提取的字段：
- unit_no: 房号，例如 A1-1002
- buyer_name: 客户姓名
- amount: 金额（数字）
- txn_type: 款项类型，只能是 定金 / 首付 / 分期款 / 尾款

关键约束：
- 如果信息缺失，必须在 missing_fields 里列出缺失字段名，并在 reply 中追问。
- 不要猜测缺失字段。
- 输出必须是严格 JSON，禁止输出多余文本。

输出示例：
{
  "unit_no": "A1-1002",
  "buyer_name": "张三",
  "amount": 500000,
  "txn_type": null,
  "missing_fields": ["txn_type"],
  "reply": "请问这50万是定金、首付、分期款还是尾款？"
}`

// replyNotConfigured is the deterministic reply when no credential resolves
const replyNotConfigured = "AI 未配置：请先设置 API Key"

// Extractor turns one user utterance into a schema-validated partial
// transaction. It is stateless; each call is exactly one model round trip.
type Extractor struct {
	chat ChatClient
}

// NewExtractor creates an intent extractor over the given chat capability
func NewExtractor(chat ChatClient) *Extractor {
	return &Extractor{chat: chat}
}

// Extract parses free text into transaction fields using the resolved
// credential. Callers must reject blank text before calling.
//
// A missing API key is a first-class outcome, not an error. Model output
// that is not JSON degrades to a conversational reply; valid JSON of the
// wrong shape fails with a SchemaViolation.
func (e *Extractor) Extract(ctx context.Context, text string, creds Credentials) (*model.ExtractResult, error) {
	if creds.APIKey == "" {
		return &model.ExtractResult{
			MissingFields: []string{model.MissingFieldAPIKey},
			Reply:         replyNotConfigured,
		}, nil
	}

	modelName := creds.ModelName
	if modelName == "" {
		modelName = "gpt-4.1-mini"
	}
	callCreds := Credentials{APIKey: creds.APIKey, BaseURL: creds.BaseURL, ModelName: modelName}

	content, err := e.chat.Chat(ctx, callCreds, []ChatMessage{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: text},
	}, 0)
	if err != nil {
		return nil, err
	}

	var tree interface{}
	if err := utils.ParseAIJSON(content, &tree); err != nil {
		// Not JSON at all: degrade to treating the raw text as the reply
		reply := strings.TrimSpace(content)
		if reply == "" {
			reply = "AI 回复不是有效的 JSON"
		}
		return &model.ExtractResult{MissingFields: []string{}, Reply: reply}, nil
	}

	obj, ok := tree.(map[string]interface{})
	if !ok {
		return nil, apperr.New(apperr.SchemaViolation, "model output is valid JSON but not an object")
	}

	return validateExtraction(obj)
}

// validateExtraction enforces the extraction schema on an untyped tree
func validateExtraction(obj map[string]interface{}) (*model.ExtractResult, error) {
	result := &model.ExtractResult{MissingFields: []string{}}

	var err error
	if result.Intent, err = stringField(obj, "intent"); err != nil {
		return nil, err
	}
	if result.UnitNo, err = stringField(obj, "unit_no"); err != nil {
		return nil, err
	}
	if result.BuyerName, err = stringField(obj, "buyer_name"); err != nil {
		return nil, err
	}
	if result.Currency, err = stringField(obj, "currency"); err != nil {
		return nil, err
	}
	if result.Reply, err = stringField(obj, "reply"); err != nil {
		return nil, err
	}

	if raw, present := obj["amount"]; present && raw != nil {
		n, ok := raw.(float64)
		if !ok {
			return nil, apperr.New(apperr.SchemaViolation, "amount must be a number, got %T", raw)
		}
		result.Amount = &n
	}

	txnType, err := stringField(obj, "txn_type")
	if err != nil {
		return nil, err
	}
	if txnType != "" && !model.ValidTxnType(txnType) {
		return nil, apperr.New(apperr.SchemaViolation, "invalid txn_type: %s, must be one of: %s",
			txnType, strings.Join(model.TxnTypes, " / "))
	}
	result.TxnType = txnType

	if raw, present := obj["missing_fields"]; present && raw != nil {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, apperr.New(apperr.SchemaViolation, "missing_fields must be an array, got %T", raw)
		}
		for _, item := range items {
			name, ok := item.(string)
			if !ok {
				return nil, apperr.New(apperr.SchemaViolation, "missing_fields entries must be strings, got %T", item)
			}
			if !validMissingField(name) {
				return nil, apperr.New(apperr.SchemaViolation, "unknown missing field: %s", name)
			}
			result.MissingFields = append(result.MissingFields, name)
		}
	}

	// A field the model also lists as missing must not carry a value
	dropMissing(result)

	return result, nil
}

// stringField reads an optional string value; null counts as absent
func stringField(obj map[string]interface{}, key string) (string, error) {
	raw, present := obj[key]
	if !present || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", apperr.New(apperr.SchemaViolation, "%s must be a string, got %T", key, raw)
	}
	return s, nil
}

func validMissingField(name string) bool {
	for _, f := range model.ExtractFields {
		if name == f {
			return true
		}
	}
	return false
}

func dropMissing(result *model.ExtractResult) {
	for _, f := range result.MissingFields {
		switch f {
		case "unit_no":
			result.UnitNo = ""
		case "buyer_name":
			result.BuyerName = ""
		case "amount":
			result.Amount = nil
		case "currency":
			result.Currency = ""
		case "txn_type":
			result.TxnType = ""
		}
	}
}
