package model

import "time"

// AiProvider is an AI vendor endpoint definition. Built-in providers are
// re-asserted on every catalog read and distinguished by IsBuiltin.
type AiProvider struct {
	ID        int64     `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	BaseURL   string    `db:"base_url" json:"base_url"`
	APIKey    *string   `db:"api_key" json:"api_key,omitempty"`
	IsBuiltin bool      `db:"is_builtin" json:"is_builtin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Models    []AiModel `db:"-" json:"models"`
}

// HasAPIKey reports whether a usable credential is stored on the provider
func (p *AiProvider) HasAPIKey() bool {
	return p.APIKey != nil && *p.APIKey != ""
}

// AiModel is a vendor-exposed model identifier under a provider.
// ModelName is unique per provider.
type AiModel struct {
	ID         int64     `db:"id" json:"id"`
	ProviderID int64     `db:"provider_id" json:"provider_id"`
	Name       string    `db:"name" json:"name"`
	ModelName  string    `db:"model_name" json:"model_name"`
	IsBuiltin  bool      `db:"is_builtin" json:"is_builtin"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AiSettings is the singleton default-selection row (fixed id 1)
type AiSettings struct {
	ID                int64     `db:"id" json:"id"`
	DefaultProviderID *int64    `db:"default_provider_id" json:"default_provider_id"`
	DefaultModelID    *int64    `db:"default_model_id" json:"default_model_id"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CreateProviderRequest is the payload for registering a custom provider
type CreateProviderRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Slug    string `json:"slug"`
}

// UpdateProviderRequest is a partial update; nil fields retain prior values
type UpdateProviderRequest struct {
	Name    *string `json:"name"`
	BaseURL *string `json:"base_url"`
	APIKey  *string `json:"api_key"`
}

// CreateModelRequest is the payload for registering a custom model
type CreateModelRequest struct {
	ProviderID int64  `json:"provider_id"`
	Name       string `json:"name"`
	ModelName  string `json:"model_name"`
}

// SaveSettingsRequest sets the deployment-wide default selection.
// Both ids may be null to mean "unset".
type SaveSettingsRequest struct {
	DefaultProviderID *int64 `json:"default_provider_id"`
	DefaultModelID    *int64 `json:"default_model_id"`
}

// ProbeResult reports one connectivity round trip against a provider/model
type ProbeResult struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Sample    string `json:"sample"`
}
