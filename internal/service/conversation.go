package service

import (
	"context"
	"log"
	"strings"
	"sync"

	"ledger/internal/apperr"
	"ledger/internal/model"

	"github.com/google/uuid"
)

// replyTurnFailed is the best-effort assistant notice when extraction fails
const replyTurnFailed = "AI 解析失败，请稍后重试。"

// session holds one conversation's append-only message history. The busy
// flag allows at most one in-flight extraction per session.
type session struct {
	mu       sync.Mutex
	busy     bool
	messages []model.Message
}

func (s *session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *session) append(msg model.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

func (s *session) snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SubmitOptions carries the per-call credential override for one turn:
// either inline credentials or an explicit provider/model selection.
type SubmitOptions struct {
	Credentials Credentials
	ProviderID  *int64
	ModelID     *int64
}

// Conversation orchestrates chat turns: it owns per-session history,
// resolves credentials, calls the extractor, and hands confirmed entity
// sets to the recorder.
type Conversation struct {
	extractor *Extractor
	catalog   *Catalog
	recorder  *Recorder
	fallback  Credentials // environment-level credential, last in the chain

	mu       sync.Mutex
	sessions map[string]*session
}

// NewConversation creates the orchestrator
func NewConversation(extractor *Extractor, catalog *Catalog, recorder *Recorder, fallback Credentials) *Conversation {
	return &Conversation{
		extractor: extractor,
		catalog:   catalog,
		recorder:  recorder,
		fallback:  fallback,
		sessions:  make(map[string]*session),
	}
}

func (c *Conversation) session(id string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		s = &session{}
		c.sessions[id] = s
	}
	return s
}

// Messages returns a snapshot of one session's history in submission order
func (c *Conversation) Messages(sessionID string) []model.Message {
	return c.session(sessionID).snapshot()
}

// resolveCredentials tries each credential source in order; the first
// usable one wins. An empty result means the unconfigured extractor path.
func (c *Conversation) resolveCredentials(ctx context.Context, opts SubmitOptions) (Credentials, error) {
	sources := []func(context.Context) (Credentials, bool, error){
		func(context.Context) (Credentials, bool, error) {
			return opts.Credentials, opts.Credentials.APIKey != "", nil
		},
		func(ctx context.Context) (Credentials, bool, error) {
			if opts.ProviderID == nil || opts.ModelID == nil {
				return Credentials{}, false, nil
			}
			return c.catalog.ResolveCredentials(ctx, *opts.ProviderID, *opts.ModelID)
		},
		func(ctx context.Context) (Credentials, bool, error) {
			return c.catalog.ResolveDefaultCredentials(ctx)
		},
		func(context.Context) (Credentials, bool, error) {
			return c.fallback, c.fallback.APIKey != "", nil
		},
	}

	for _, src := range sources {
		creds, ok, err := src(ctx)
		if err != nil {
			return Credentials{}, err
		}
		if ok {
			return creds, nil
		}
	}
	return Credentials{}, nil
}

// Submit runs one chat turn. Blank text and concurrent submissions on the
// same session are rejected. Errors from the extraction path become a
// best-effort assistant message; the conversation thread never breaks.
func (c *Conversation) Submit(ctx context.Context, sessionID, text string, opts SubmitOptions) (*model.ExtractResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.Validation, "message is required")
	}

	s := c.session(sessionID)
	if !s.begin() {
		return nil, apperr.New(apperr.Conflict, "a message is already being processed")
	}
	defer s.end()

	s.append(model.Message{ID: uuid.NewString(), Role: "user", Text: text})

	result, err := c.runExtraction(ctx, text, opts)
	if err != nil {
		log.Printf("extraction failed for session %s: %v", sessionID, err)
		result = &model.ExtractResult{MissingFields: []string{}, Reply: replyTurnFailed}
	}

	assistant := model.Message{ID: uuid.NewString(), Role: "assistant", Text: result.Reply}
	if result.HasEntities() {
		entities := result.Entities()
		assistant.Entities = &entities
	}
	s.append(assistant)

	return result, nil
}

func (c *Conversation) runExtraction(ctx context.Context, text string, opts SubmitOptions) (*model.ExtractResult, error) {
	creds, err := c.resolveCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}
	return c.extractor.Extract(ctx, text, creds)
}

// Confirm forwards a reviewed entity set to the transaction recorder.
// Failures surface directly to the caller, not as a new message.
func (c *Conversation) Confirm(ctx context.Context, req model.RecordRequest) (*model.Transaction, error) {
	return c.recorder.Record(ctx, req)
}
