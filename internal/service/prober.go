package service

import (
	"context"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/model"
)

// probeMaxTokens bounds the probe completion so the round trip stays minimal
const probeMaxTokens = 5

// Prober issues a minimal round-trip call against a configured
// provider/model and reports latency or failure. No retries.
type Prober struct {
	store CatalogStore
	chat  ChatClient
}

// NewProber creates a connectivity prober
func NewProber(store CatalogStore, chat ChatClient) *Prober {
	return &Prober{store: store, chat: chat}
}

// Probe resolves the provider/model pair, validates the stored credential
// before any network call, then measures one bounded completion.
func (p *Prober) Probe(ctx context.Context, providerID, modelID int64) (*model.ProbeResult, error) {
	if providerID == 0 || modelID == 0 {
		return nil, apperr.New(apperr.Validation, "provider_id and model_id required")
	}

	provider, err := p.store.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	m, err := p.store.GetModelByID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if provider == nil || m == nil {
		return nil, apperr.New(apperr.NotFound, "provider or model not found")
	}
	if !provider.HasAPIKey() {
		return nil, apperr.New(apperr.Validation, "api_key not configured")
	}

	creds := Credentials{
		APIKey:    *provider.APIKey,
		BaseURL:   provider.BaseURL,
		ModelName: m.ModelName,
	}

	start := time.Now()
	sample, err := p.chat.Chat(ctx, creds, []ChatMessage{{Role: "user", Content: "ping"}}, probeMaxTokens)
	if err != nil {
		return nil, err
	}

	return &model.ProbeResult{
		OK:        true,
		LatencyMS: time.Since(start).Milliseconds(),
		Sample:    sample,
	}, nil
}
