package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates the tables this service needs if they do not exist.
// Idempotent; safe to run on every start.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS units (
			id BIGSERIAL PRIMARY KEY,
			unit_no TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'available',
			area_m2 DOUBLE PRECISION,
			buyer_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			unit_id BIGINT NOT NULL REFERENCES units(id),
			txn_type TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			currency TEXT NOT NULL DEFAULT 'CNY',
			occurred_at TIMESTAMPTZ NOT NULL,
			memo TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ai_providers (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			base_url TEXT NOT NULL,
			api_key TEXT,
			is_builtin BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ai_models (
			id BIGSERIAL PRIMARY KEY,
			provider_id BIGINT NOT NULL REFERENCES ai_providers(id),
			name TEXT NOT NULL,
			model_name TEXT NOT NULL,
			is_builtin BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (provider_id, model_name)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_settings (
			id BIGINT PRIMARY KEY,
			default_provider_id BIGINT,
			default_model_id BIGINT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- Units ---

// FindUnitByNo resolves a unit by its natural key; returns nil when absent
func (r *PostgresRepository) FindUnitByNo(ctx context.Context, unitNo string) (*model.Unit, error) {
	var unit model.Unit
	query := `
		SELECT id, unit_no, status, area_m2, buyer_name, created_at, updated_at
		FROM units
		WHERE unit_no = $1
	`
	err := r.db.GetContext(ctx, &unit, query, unitNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find unit: %w", err)
	}
	return &unit, nil
}

// ListUnits returns the first units in id order
func (r *PostgresRepository) ListUnits(ctx context.Context, limit int) ([]model.Unit, error) {
	var units []model.Unit
	query := `
		SELECT id, unit_no, status, area_m2, buyer_name, created_at, updated_at
		FROM units
		ORDER BY id ASC
		LIMIT $1
	`
	err := r.db.SelectContext(ctx, &units, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return units, nil
}

// --- Transactions ---

// CreateTransaction persists a transaction and returns the stored row
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	var stored model.Transaction
	query := `
		INSERT INTO transactions (unit_id, txn_type, amount, currency, occurred_at, memo)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, unit_id, txn_type, amount, currency, occurred_at, memo, created_at
	`
	err := r.db.GetContext(ctx, &stored, query,
		t.UnitID, t.TxnType, t.Amount, t.Currency, t.OccurredAt, t.Memo)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &stored, nil
}

// --- AI providers ---

// UpsertProviderBySlug creates or refreshes a built-in provider.
// Name, base_url and is_builtin are overwritten; a stored api_key is kept.
func (r *PostgresRepository) UpsertProviderBySlug(ctx context.Context, slug, name, baseURL string) (*model.AiProvider, error) {
	var provider model.AiProvider
	query := `
		INSERT INTO ai_providers (slug, name, base_url, is_builtin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, base_url = EXCLUDED.base_url, is_builtin = TRUE, updated_at = NOW()
		RETURNING id, slug, name, base_url, api_key, is_builtin, created_at, updated_at
	`
	err := r.db.GetContext(ctx, &provider, query, slug, name, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert provider %s: %w", slug, err)
	}
	return &provider, nil
}

// CreateProvider inserts a user-created provider
func (r *PostgresRepository) CreateProvider(ctx context.Context, slug, name, baseURL string, apiKey *string) (*model.AiProvider, error) {
	var provider model.AiProvider
	query := `
		INSERT INTO ai_providers (slug, name, base_url, api_key, is_builtin)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id, slug, name, base_url, api_key, is_builtin, created_at, updated_at
	`
	err := r.db.GetContext(ctx, &provider, query, slug, name, baseURL, apiKey)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "provider slug already exists: %s", slug)
		}
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return &provider, nil
}

// UpdateProvider applies a partial update; returns nil when id is unknown
func (r *PostgresRepository) UpdateProvider(ctx context.Context, id int64, upd model.UpdateProviderRequest) (*model.AiProvider, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIndex := 1

	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, *upd.Name)
		argIndex++
	}
	if upd.BaseURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("base_url = $%d", argIndex))
		args = append(args, *upd.BaseURL)
		argIndex++
	}
	if upd.APIKey != nil {
		setClauses = append(setClauses, fmt.Sprintf("api_key = $%d", argIndex))
		args = append(args, *upd.APIKey)
		argIndex++
	}

	query := fmt.Sprintf(`
		UPDATE ai_providers SET %s
		WHERE id = $%d
		RETURNING id, slug, name, base_url, api_key, is_builtin, created_at, updated_at
	`, strings.Join(setClauses, ", "), argIndex)
	args = append(args, id)

	var provider model.AiProvider
	err := r.db.GetContext(ctx, &provider, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update provider: %w", err)
	}
	return &provider, nil
}

// GetProviderByID returns a provider or nil when absent
func (r *PostgresRepository) GetProviderByID(ctx context.Context, id int64) (*model.AiProvider, error) {
	var provider model.AiProvider
	query := `
		SELECT id, slug, name, base_url, api_key, is_builtin, created_at, updated_at
		FROM ai_providers
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &provider, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &provider, nil
}

// GetProviderBySlug returns a provider or nil when absent
func (r *PostgresRepository) GetProviderBySlug(ctx context.Context, slug string) (*model.AiProvider, error) {
	var provider model.AiProvider
	query := `
		SELECT id, slug, name, base_url, api_key, is_builtin, created_at, updated_at
		FROM ai_providers
		WHERE slug = $1
	`
	err := r.db.GetContext(ctx, &provider, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get provider by slug: %w", err)
	}
	return &provider, nil
}

// ListProvidersWithModels returns all providers in id order, each with
// its models in id order.
func (r *PostgresRepository) ListProvidersWithModels(ctx context.Context) ([]model.AiProvider, error) {
	var providers []model.AiProvider
	query := `
		SELECT id, slug, name, base_url, api_key, is_builtin, created_at, updated_at
		FROM ai_providers
		ORDER BY id ASC
	`
	if err := r.db.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	var models []model.AiModel
	modelQuery := `
		SELECT id, provider_id, name, model_name, is_builtin, created_at
		FROM ai_models
		ORDER BY id ASC
	`
	if err := r.db.SelectContext(ctx, &models, modelQuery); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	byProvider := make(map[int64][]model.AiModel, len(providers))
	for _, m := range models {
		byProvider[m.ProviderID] = append(byProvider[m.ProviderID], m)
	}
	for i := range providers {
		providers[i].Models = byProvider[providers[i].ID]
		if providers[i].Models == nil {
			providers[i].Models = []model.AiModel{}
		}
	}

	return providers, nil
}

// --- AI models ---

// UpsertModel creates or refreshes a built-in model under a provider
func (r *PostgresRepository) UpsertModel(ctx context.Context, providerID int64, name, modelName string) (*model.AiModel, error) {
	var m model.AiModel
	query := `
		INSERT INTO ai_models (provider_id, name, model_name, is_builtin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (provider_id, model_name) DO UPDATE
		SET name = EXCLUDED.name, is_builtin = TRUE
		RETURNING id, provider_id, name, model_name, is_builtin, created_at
	`
	err := r.db.GetContext(ctx, &m, query, providerID, name, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert model %s: %w", modelName, err)
	}
	return &m, nil
}

// CreateModel inserts a user-created model
func (r *PostgresRepository) CreateModel(ctx context.Context, providerID int64, name, modelName string) (*model.AiModel, error) {
	var m model.AiModel
	query := `
		INSERT INTO ai_models (provider_id, name, model_name, is_builtin)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, provider_id, name, model_name, is_builtin, created_at
	`
	err := r.db.GetContext(ctx, &m, query, providerID, name, modelName)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "model already exists for provider: %s", modelName)
		}
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return &m, nil
}

// GetModelByID returns a model or nil when absent
func (r *PostgresRepository) GetModelByID(ctx context.Context, id int64) (*model.AiModel, error) {
	var m model.AiModel
	query := `
		SELECT id, provider_id, name, model_name, is_builtin, created_at
		FROM ai_models
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &m, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return &m, nil
}

// GetModelByName returns the model with the given vendor identifier under
// a provider, or nil when absent.
func (r *PostgresRepository) GetModelByName(ctx context.Context, providerID int64, modelName string) (*model.AiModel, error) {
	var m model.AiModel
	query := `
		SELECT id, provider_id, name, model_name, is_builtin, created_at
		FROM ai_models
		WHERE provider_id = $1 AND model_name = $2
	`
	err := r.db.GetContext(ctx, &m, query, providerID, modelName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model by name: %w", err)
	}
	return &m, nil
}

// --- AI settings ---

// GetSettings returns the singleton settings row, or nil when never saved
func (r *PostgresRepository) GetSettings(ctx context.Context) (*model.AiSettings, error) {
	var settings model.AiSettings
	query := `
		SELECT id, default_provider_id, default_model_id, updated_at
		FROM ai_settings
		WHERE id = 1
	`
	err := r.db.GetContext(ctx, &settings, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts the singleton settings row (fixed id 1)
func (r *PostgresRepository) SaveSettings(ctx context.Context, defaultProviderID, defaultModelID *int64) (*model.AiSettings, error) {
	var settings model.AiSettings
	query := `
		INSERT INTO ai_settings (id, default_provider_id, default_model_id)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET default_provider_id = EXCLUDED.default_provider_id,
		    default_model_id = EXCLUDED.default_model_id,
		    updated_at = NOW()
		RETURNING id, default_provider_id, default_model_id, updated_at
	`
	err := r.db.GetContext(ctx, &settings, query, defaultProviderID, defaultModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return &settings, nil
}
