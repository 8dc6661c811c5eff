package service

import (
	"context"
	"sync"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/model"
)

// fakeChat is a call-counting chat double. It can return a canned reply,
// an error, or block until released to simulate an in-flight call.
type fakeChat struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	block   chan struct{} // when set, Chat waits here
	started chan struct{} // closed once Chat has been entered
}

func (f *fakeChat) Chat(ctx context.Context, creds Credentials, messages []ChatMessage, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls++
	started := f.started
	f.started = nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memStore is an in-memory implementation of the storage surfaces the
// services consume, mirroring the upsert semantics of the Postgres layer.
type memStore struct {
	mu         sync.Mutex
	providers  []*model.AiProvider
	models     []*model.AiModel
	settings   *model.AiSettings
	units      []model.Unit
	txns       []*model.Transaction
	nextProvID int64
	nextModID  int64
	nextTxnID  int64
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) addUnit(unitNo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append(s.units, model.Unit{ID: int64(len(s.units) + 1), UnitNo: unitNo, Status: "销售中"})
}

func (s *memStore) UpsertProviderBySlug(ctx context.Context, slug, name, baseURL string) (*model.AiProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.Slug == slug {
			p.Name = name
			p.BaseURL = baseURL
			p.IsBuiltin = true
			cp := *p
			return &cp, nil
		}
	}
	s.nextProvID++
	p := &model.AiProvider{ID: s.nextProvID, Slug: slug, Name: name, BaseURL: baseURL, IsBuiltin: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.providers = append(s.providers, p)
	cp := *p
	return &cp, nil
}

func (s *memStore) CreateProvider(ctx context.Context, slug, name, baseURL string, apiKey *string) (*model.AiProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.Slug == slug {
			return nil, apperr.New(apperr.Conflict, "provider slug already exists: %s", slug)
		}
	}
	s.nextProvID++
	p := &model.AiProvider{ID: s.nextProvID, Slug: slug, Name: name, BaseURL: baseURL, APIKey: apiKey, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.providers = append(s.providers, p)
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdateProvider(ctx context.Context, id int64, upd model.UpdateProviderRequest) (*model.AiProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.ID == id {
			if upd.Name != nil {
				p.Name = *upd.Name
			}
			if upd.BaseURL != nil {
				p.BaseURL = *upd.BaseURL
			}
			if upd.APIKey != nil {
				key := *upd.APIKey
				p.APIKey = &key
			}
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetProviderByID(ctx context.Context, id int64) (*model.AiProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetProviderBySlug(ctx context.Context, slug string) (*model.AiProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListProvidersWithModels(ctx context.Context) ([]model.AiProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AiProvider, 0, len(s.providers))
	for _, p := range s.providers {
		cp := *p
		cp.Models = []model.AiModel{}
		for _, m := range s.models {
			if m.ProviderID == p.ID {
				cp.Models = append(cp.Models, *m)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *memStore) UpsertModel(ctx context.Context, providerID int64, name, modelName string) (*model.AiModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.ProviderID == providerID && m.ModelName == modelName {
			m.Name = name
			m.IsBuiltin = true
			cp := *m
			return &cp, nil
		}
	}
	s.nextModID++
	m := &model.AiModel{ID: s.nextModID, ProviderID: providerID, Name: name, ModelName: modelName, IsBuiltin: true, CreatedAt: time.Now()}
	s.models = append(s.models, m)
	cp := *m
	return &cp, nil
}

func (s *memStore) CreateModel(ctx context.Context, providerID int64, name, modelName string) (*model.AiModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.ProviderID == providerID && m.ModelName == modelName {
			return nil, apperr.New(apperr.Conflict, "model already exists for provider: %s", modelName)
		}
	}
	s.nextModID++
	m := &model.AiModel{ID: s.nextModID, ProviderID: providerID, Name: name, ModelName: modelName, CreatedAt: time.Now()}
	s.models = append(s.models, m)
	cp := *m
	return &cp, nil
}

func (s *memStore) GetModelByID(ctx context.Context, id int64) (*model.AiModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetModelByName(ctx context.Context, providerID int64, modelName string) (*model.AiModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		if m.ProviderID == providerID && m.ModelName == modelName {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetSettings(ctx context.Context) (*model.AiSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

func (s *memStore) SaveSettings(ctx context.Context, defaultProviderID, defaultModelID *int64) (*model.AiSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &model.AiSettings{ID: 1, DefaultProviderID: defaultProviderID, DefaultModelID: defaultModelID, UpdatedAt: time.Now()}
	cp := *s.settings
	return &cp, nil
}

func (s *memStore) FindUnitByNo(ctx context.Context, unitNo string) (*model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.UnitNo == unitNo {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListUnits(ctx context.Context, limit int) ([]model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.units) {
		limit = len(s.units)
	}
	out := make([]model.Unit, limit)
	copy(out, s.units[:limit])
	return out, nil
}

func (s *memStore) CreateTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxnID++
	stored := *t
	stored.ID = s.nextTxnID
	stored.CreatedAt = time.Now()
	s.txns = append(s.txns, &stored)
	cp := stored
	return &cp, nil
}
