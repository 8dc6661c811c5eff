package service

import (
	"context"
	"testing"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/model"
)

func newConversation(chat ChatClient, store *memStore, fallback Credentials) *Conversation {
	extractor := NewExtractor(chat)
	catalog := NewCatalog(store)
	recorder := NewRecorder(store, store)
	return NewConversation(extractor, catalog, recorder, fallback)
}

func TestSubmit_BlankMessageRejected(t *testing.T) {
	chat := &fakeChat{reply: `{}`}
	conv := newConversation(chat, newMemStore(), Credentials{})

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := conv.Submit(context.Background(), "s1", text, SubmitOptions{})
		if !apperr.Is(err, apperr.Validation) {
			t.Errorf("Expected Validation for blank text %q, got %v", text, err)
		}
	}
	if got := len(conv.Messages("s1")); got != 0 {
		t.Errorf("Expected no messages after rejected submits, got %d", got)
	}
}

func TestSubmit_AppendsMessagesInOrder(t *testing.T) {
	chat := &fakeChat{reply: `{"unit_no":"A1-1002","buyer_name":"张三","amount":200000,"txn_type":"定金","missing_fields":[],"reply":"请确认录入。"}`}
	conv := newConversation(chat, newMemStore(), Credentials{APIKey: "sk-env"})

	result, err := conv.Submit(context.Background(), "s1", "张三买了A1-1002，先付20万定金", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Complete() {
		t.Error("Expected a ready-to-confirm result")
	}

	messages := conv.Messages("s1")
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("Expected user then assistant, got %s then %s", messages[0].Role, messages[1].Role)
	}
	if messages[0].ID == messages[1].ID || messages[0].ID == "" {
		t.Error("Expected distinct non-empty message ids")
	}
	if messages[1].Entities == nil || messages[1].Entities.UnitNo != "A1-1002" {
		t.Error("Expected extracted entities attached to the assistant message")
	}
}

func TestSubmit_SecondCallRejectedWhileInFlight(t *testing.T) {
	chat := &fakeChat{
		reply:   `{"missing_fields":[],"reply":"ok"}`,
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	started := chat.started
	conv := newConversation(chat, newMemStore(), Credentials{APIKey: "sk-env"})

	done := make(chan error, 1)
	go func() {
		_, err := conv.Submit(context.Background(), "s1", "第一条", SubmitOptions{})
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the chat call")
	}

	_, err := conv.Submit(context.Background(), "s1", "第二条", SubmitOptions{})
	if !apperr.Is(err, apperr.Conflict) {
		t.Errorf("Expected Conflict while a send is in flight, got %v", err)
	}

	close(chat.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}

	// Another session is unaffected by s1's busy flag
	chat.block = nil
	if _, err := conv.Submit(context.Background(), "s2", "另一会话", SubmitOptions{}); err != nil {
		t.Errorf("Expected other sessions to proceed, got %v", err)
	}
}

func TestSubmit_ExtractionFailureBecomesAssistantMessage(t *testing.T) {
	chat := &fakeChat{err: apperr.New(apperr.Upstream, "connection refused")}
	conv := newConversation(chat, newMemStore(), Credentials{APIKey: "sk-env"})

	result, err := conv.Submit(context.Background(), "s1", "张三买房", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit must not surface extraction errors, got %v", err)
	}
	if result.Reply == "" {
		t.Error("Expected a failure notice in the reply")
	}

	messages := conv.Messages("s1")
	if len(messages) != 2 {
		t.Fatalf("Expected the thread to stay intact with 2 messages, got %d", len(messages))
	}
	if messages[1].Role != "assistant" || messages[1].Text == "" {
		t.Error("Expected a best-effort assistant message")
	}
}

func TestSubmit_NoCredentialAnywhere(t *testing.T) {
	chat := &fakeChat{reply: `{}`}
	conv := newConversation(chat, newMemStore(), Credentials{})

	result, err := conv.Submit(context.Background(), "s1", "张三买房", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(result.MissingFields) != 1 || result.MissingFields[0] != model.MissingFieldAPIKey {
		t.Errorf("Expected the unconfigured outcome, got %v", result.MissingFields)
	}
	if chat.callCount() != 0 {
		t.Errorf("Expected no chat call without credentials, got %d", chat.callCount())
	}
}

func TestSubmit_CredentialResolutionOrder(t *testing.T) {
	store := newMemStore()
	key := "sk-catalog"
	provider, _ := store.CreateProvider(context.Background(), "foo", "Foo", "https://foo/v1", &key)
	m, _ := store.CreateModel(context.Background(), provider.ID, "Foo", "foo-1")
	if _, err := store.SaveSettings(context.Background(), &provider.ID, &m.ID); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	chat := &fakeChat{reply: `{"missing_fields":[],"reply":"ok"}`}
	conv := newConversation(chat, store, Credentials{APIKey: "sk-env"})

	// Catalog default resolves; the extractor must receive a credential,
	// so the unconfigured outcome never appears.
	result, err := conv.Submit(context.Background(), "s1", "hello", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(result.MissingFields) != 0 {
		t.Errorf("Expected configured extraction, got missing %v", result.MissingFields)
	}
	if chat.callCount() != 1 {
		t.Errorf("Expected one chat call, got %d", chat.callCount())
	}

	// Explicit per-call provider/model selection also resolves
	if _, err := conv.Submit(context.Background(), "s1", "again", SubmitOptions{ProviderID: &provider.ID, ModelID: &m.ID}); err != nil {
		t.Fatalf("Submit with explicit selection: %v", err)
	}
	if chat.callCount() != 2 {
		t.Errorf("Expected two chat calls, got %d", chat.callCount())
	}
}

func TestConfirm_RoundTrip(t *testing.T) {
	store := newMemStore()
	store.addUnit("A1-1002")
	chat := &fakeChat{reply: `{"unit_no":"A1-1002","buyer_name":"张三","amount":200000,"txn_type":"定金","missing_fields":[],"reply":"请确认"}`}
	conv := newConversation(chat, store, Credentials{APIKey: "sk-env"})

	result, err := conv.Submit(context.Background(), "s1", "张三买了A1-1002，先付20万定金", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Complete() {
		t.Fatal("Expected a complete entity set")
	}

	txn, err := conv.Confirm(context.Background(), model.RecordRequest{
		UnitNo:    result.UnitNo,
		BuyerName: result.BuyerName,
		Amount:    *result.Amount,
		TxnType:   result.TxnType,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if txn.UnitID != 1 || txn.Amount != 200000 || txn.TxnType != "定金" {
		t.Errorf("Persisted transaction does not match input: %+v", txn)
	}

	// Confirm failures surface directly, not as a new message
	before := len(conv.Messages("s1"))
	if _, err := conv.Confirm(context.Background(), model.RecordRequest{UnitNo: "NOPE", Amount: 1, TxnType: "定金"}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
	if len(conv.Messages("s1")) != before {
		t.Error("Confirm must not append messages")
	}
}
