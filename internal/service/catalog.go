package service

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/model"
)

// CatalogStore is the narrow storage surface the catalog consumes
type CatalogStore interface {
	UpsertProviderBySlug(ctx context.Context, slug, name, baseURL string) (*model.AiProvider, error)
	CreateProvider(ctx context.Context, slug, name, baseURL string, apiKey *string) (*model.AiProvider, error)
	UpdateProvider(ctx context.Context, id int64, upd model.UpdateProviderRequest) (*model.AiProvider, error)
	GetProviderByID(ctx context.Context, id int64) (*model.AiProvider, error)
	GetProviderBySlug(ctx context.Context, slug string) (*model.AiProvider, error)
	ListProvidersWithModels(ctx context.Context) ([]model.AiProvider, error)
	UpsertModel(ctx context.Context, providerID int64, name, modelName string) (*model.AiModel, error)
	CreateModel(ctx context.Context, providerID int64, name, modelName string) (*model.AiModel, error)
	GetModelByID(ctx context.Context, id int64) (*model.AiModel, error)
	GetModelByName(ctx context.Context, providerID int64, modelName string) (*model.AiModel, error)
	GetSettings(ctx context.Context) (*model.AiSettings, error)
	SaveSettings(ctx context.Context, defaultProviderID, defaultModelID *int64) (*model.AiSettings, error)
}

type builtinModel struct {
	Name      string
	ModelName string
}

type builtinProvider struct {
	Slug    string
	Name    string
	BaseURL string
	Models  []builtinModel
}

// builtinProviders are re-asserted on every catalog read. Upserting by
// slug keeps user-stored api_keys while refreshing names and endpoints.
var builtinProviders = []builtinProvider{
	{
		Slug: "siliconflow", Name: "硅基流动", BaseURL: "https://api.siliconflow.cn/v1",
		Models: []builtinModel{
			{Name: "Qwen2.5 72B Instruct", ModelName: "Qwen/Qwen2.5-72B-Instruct"},
			{Name: "QwQ 32B", ModelName: "Qwen/QwQ-32B"},
		},
	},
	{
		Slug: "kimi", Name: "Kimi (Moonshot)", BaseURL: "https://api.moonshot.ai/v1",
		Models: []builtinModel{
			{Name: "Kimi K2 Preview", ModelName: "kimi-k2-0711-preview"},
			{Name: "Kimi K2.5", ModelName: "kimi-k2.5"},
		},
	},
	{
		Slug: "kimi-coding", Name: "Kimi Coding Plan", BaseURL: "https://api.kimi.com/coding/v1",
		Models: []builtinModel{
			{Name: "Kimi K2.5 (Coding)", ModelName: "kimi-k2.5"},
		},
	},
	{
		Slug: "minimax-cn", Name: "MiniMax 国内版", BaseURL: "https://api.minimaxi.com/v1",
		Models: []builtinModel{
			{Name: "MiniMax-M2.1", ModelName: "MiniMax-M2.1"},
			{Name: "MiniMax-M2", ModelName: "MiniMax-M2"},
		},
	},
	{
		Slug: "zhipu", Name: "智谱", BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Models: []builtinModel{
			{Name: "GLM-4.5", ModelName: "glm-4.5"},
			{Name: "GLM-4.5-Flash", ModelName: "glm-4.5-flash"},
		},
	},
	{
		Slug: "zai-coding", Name: "Z.AI Coding Plan", BaseURL: "https://api.z.ai/api/coding/paas/v4",
		Models: []builtinModel{
			{Name: "GLM-4.7", ModelName: "glm-4.7"},
			{Name: "GLM-4.6", ModelName: "glm-4.6"},
			{Name: "GLM-4.5", ModelName: "glm-4.5"},
			{Name: "GLM-4.5-Air", ModelName: "glm-4.5-air"},
		},
	},
	{
		Slug: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1",
		Models: []builtinModel{
			{Name: "GPT-4o mini", ModelName: "gpt-4o-mini"},
			{Name: "GPT-4o", ModelName: "gpt-4o"},
		},
	},
	{
		Slug: "google", Name: "Google Gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
		Models: []builtinModel{
			{Name: "Gemini 2.5 Flash", ModelName: "gemini-2.5-flash"},
			{Name: "Gemini 1.5 Pro", ModelName: "gemini-1.5-pro"},
		},
	},
	{
		Slug: "openrouter", Name: "OpenRouter", BaseURL: "https://openrouter.ai/api/v1",
		Models: []builtinModel{
			{Name: "Claude 3.7 Sonnet", ModelName: "anthropic/claude-3.7-sonnet"},
			{Name: "DeepSeek V3.1", ModelName: "deepseek/deepseek-chat-v3.1"},
		},
	},
}

// Catalog owns the set of AI providers/models and the default selection
type Catalog struct {
	store CatalogStore
}

// NewCatalog creates a provider catalog over the given store
func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{store: store}
}

// ensureSeed reconciles the built-in providers and models into storage.
// It is idempotent and runs at the start of every catalog read, so the
// catalog is self-healing without a separate bootstrap phase.
func (c *Catalog) ensureSeed(ctx context.Context) error {
	for _, p := range builtinProviders {
		provider, err := c.store.UpsertProviderBySlug(ctx, p.Slug, p.Name, p.BaseURL)
		if err != nil {
			return fmt.Errorf("seed provider %s: %w", p.Slug, err)
		}
		for _, m := range p.Models {
			if _, err := c.store.UpsertModel(ctx, provider.ID, m.Name, m.ModelName); err != nil {
				return fmt.Errorf("seed model %s/%s: %w", p.Slug, m.ModelName, err)
			}
		}
	}
	return nil
}

// ListProviders seeds built-ins then returns all providers with their
// models in id order.
func (c *Catalog) ListProviders(ctx context.Context) ([]model.AiProvider, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	return c.store.ListProvidersWithModels(ctx)
}

// deriveSlug builds a slug from a display name: lowercase, whitespace to hyphens
func deriveSlug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// CreateProvider registers a user-created provider
func (c *Catalog) CreateProvider(ctx context.Context, req model.CreateProviderRequest) (*model.AiProvider, error) {
	if req.Name == "" || req.BaseURL == "" {
		return nil, apperr.New(apperr.Validation, "name and base_url are required")
	}

	slug := req.Slug
	if slug == "" {
		slug = deriveSlug(req.Name)
	}

	existing, err := c.store.GetProviderBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.Conflict, "provider slug already exists: %s", slug)
	}

	var apiKey *string
	if req.APIKey != "" {
		apiKey = &req.APIKey
	}

	return c.store.CreateProvider(ctx, slug, req.Name, req.BaseURL, apiKey)
}

// UpdateProvider applies a partial update to a provider
func (c *Catalog) UpdateProvider(ctx context.Context, id int64, req model.UpdateProviderRequest) (*model.AiProvider, error) {
	provider, err := c.store.UpdateProvider(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, apperr.New(apperr.NotFound, "provider not found: %d", id)
	}
	return provider, nil
}

// CreateModel registers a user-created model under a provider
func (c *Catalog) CreateModel(ctx context.Context, req model.CreateModelRequest) (*model.AiModel, error) {
	if req.ProviderID == 0 || req.Name == "" || req.ModelName == "" {
		return nil, apperr.New(apperr.Validation, "provider_id, name, model_name required")
	}

	provider, err := c.store.GetProviderByID(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, apperr.New(apperr.NotFound, "provider not found: %d", req.ProviderID)
	}

	existing, err := c.store.GetModelByName(ctx, req.ProviderID, req.ModelName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.New(apperr.Conflict, "model already exists for provider: %s", req.ModelName)
	}

	return c.store.CreateModel(ctx, req.ProviderID, req.Name, req.ModelName)
}

// GetSettings returns the default selection, or nil when never saved
func (c *Catalog) GetSettings(ctx context.Context) (*model.AiSettings, error) {
	return c.store.GetSettings(ctx)
}

// SaveSettings upserts the default selection. The ids are not validated
// against existing rows; a dangling reference fails lazily at first use.
func (c *Catalog) SaveSettings(ctx context.Context, req model.SaveSettingsRequest) (*model.AiSettings, error) {
	return c.store.SaveSettings(ctx, req.DefaultProviderID, req.DefaultModelID)
}

// ResolveCredentials resolves a provider/model id pair to a concrete
// credential. Missing entities or a provider without a stored api_key
// report ok=false rather than an error.
func (c *Catalog) ResolveCredentials(ctx context.Context, providerID, modelID int64) (Credentials, bool, error) {
	provider, err := c.store.GetProviderByID(ctx, providerID)
	if err != nil {
		return Credentials{}, false, err
	}
	m, err := c.store.GetModelByID(ctx, modelID)
	if err != nil {
		return Credentials{}, false, err
	}
	if provider == nil || m == nil || !provider.HasAPIKey() {
		return Credentials{}, false, nil
	}
	return Credentials{
		APIKey:    *provider.APIKey,
		BaseURL:   provider.BaseURL,
		ModelName: m.ModelName,
	}, true, nil
}

// ResolveDefaultCredentials resolves the stored default provider/model
// selection, reporting ok=false when unset or unusable.
func (c *Catalog) ResolveDefaultCredentials(ctx context.Context) (Credentials, bool, error) {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return Credentials{}, false, err
	}
	if settings == nil || settings.DefaultProviderID == nil || settings.DefaultModelID == nil {
		return Credentials{}, false, nil
	}
	return c.ResolveCredentials(ctx, *settings.DefaultProviderID, *settings.DefaultModelID)
}
