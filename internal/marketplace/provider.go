package marketplace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

// Provider resolves an API client from the current settings record.
type Provider interface {
	Client(ctx context.Context) (API, error)
}

// SettingsProvider builds clients from stored settings and reuses one while the record is
// unchanged.
type SettingsProvider struct {
	settings repository.SettingsRepository
	timeout  time.Duration

	mu      sync.Mutex
	current string
	client  API
}

func NewSettingsProvider(settings repository.SettingsRepository, timeout time.Duration) *SettingsProvider {
	return &SettingsProvider{settings: settings, timeout: timeout}
}

// Client returns domain.ErrNotConfigured without touching the network when no api key is
// stored.
func (p *SettingsProvider) Client(ctx context.Context) (API, error) {
	s, err := p.settings.Current(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			return nil, domain.ErrNotConfigured
		}
		return nil, err
	}
	if s.APIKey == "" {
		return nil, domain.ErrNotConfigured
	}

	key := s.ID + "|" + s.APIKey + "|" + s.APIBaseURL
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil || p.current != key {
		p.client = New(s.APIBaseURL, s.APIKey, p.timeout)
		p.current = key
	}
	return p.client, nil
}

// Build returns an uncached client for explicit credentials, used to probe a connection
// before the credentials are saved.
func (p *SettingsProvider) Build(baseURL, apiKey string) API {
	return New(baseURL, apiKey, p.timeout)
}
