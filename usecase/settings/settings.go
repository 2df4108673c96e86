// Package settings manages the singleton marketplace credential record.
package settings

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/marketplace"
	"github.com/fastygo/sellerdesk/repository"
)

type Authorizer interface {
	Authorize(ctx context.Context, caller *domain.User, level domain.Level) error
}

// ClientBuilder creates a marketplace client for explicit credentials.
type ClientBuilder interface {
	Build(baseURL, apiKey string) marketplace.API
}

// Input is a settings save request. An empty APIBaseURL means the default url.
type Input struct {
	APIKey     string `json:"api_key"`
	APIBaseURL string `json:"api_base_url"`
}

type UseCase struct {
	repo       repository.SettingsRepository
	builder    ClientBuilder
	gate       Authorizer
	defaultURL string
	logger     *zap.Logger
}

// New builds the use case. defaultURL replaces an omitted base url; empty means
// domain.DefaultMarketplaceURL.
func New(repo repository.SettingsRepository, builder ClientBuilder, gate Authorizer, defaultURL string, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultURL = strings.TrimRight(strings.TrimSpace(defaultURL), "/")
	if defaultURL == "" {
		defaultURL = domain.DefaultMarketplaceURL
	}
	return &UseCase{repo: repo, builder: builder, gate: gate, defaultURL: defaultURL, logger: logger}
}

// Get returns the active record. The api key is masked unless caller is an admin; with
// nothing saved only the default base url is returned.
func (uc *UseCase) Get(ctx context.Context, caller *domain.User) (*domain.Settings, error) {
	if err := uc.gate.Authorize(ctx, caller, domain.LevelApproved); err != nil {
		return nil, err
	}
	current, err := uc.repo.Current(ctx)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return &domain.Settings{APIBaseURL: uc.defaultURL}, nil
	}
	if err != nil {
		return nil, err
	}
	if domain.Evaluate(caller, domain.LevelAdmin) != nil {
		masked := current.Masked()
		return &masked, nil
	}
	return current, nil
}

// Save supersedes the previous record entirely; fields are never merged across saves.
func (uc *UseCase) Save(ctx context.Context, caller *domain.User, in Input) (*domain.Settings, error) {
	if err := uc.gate.Authorize(ctx, caller, domain.LevelAdmin); err != nil {
		return nil, err
	}
	baseURL, err := uc.normalize(in)
	if err != nil {
		return nil, err
	}
	record := &domain.Settings{
		ID:         uuid.NewString(),
		APIKey:     strings.TrimSpace(in.APIKey),
		APIBaseURL: baseURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.Replace(ctx, record); err != nil {
		return nil, err
	}
	uc.logger.Info("marketplace settings saved", zap.String("actor_id", caller.ID), zap.String("api_base_url", baseURL))
	masked := record.Masked()
	return &masked, nil
}

// TestConnection probes the marketplace with the supplied credentials without saving them.
func (uc *UseCase) TestConnection(ctx context.Context, caller *domain.User, in Input) error {
	if err := uc.gate.Authorize(ctx, caller, domain.LevelAdmin); err != nil {
		return err
	}
	baseURL, err := uc.normalize(in)
	if err != nil {
		return err
	}
	if _, err := uc.builder.Build(baseURL, strings.TrimSpace(in.APIKey)).Services(ctx, "en"); err != nil {
		uc.logger.Warn("marketplace connection test failed", zap.String("api_base_url", baseURL), zap.Error(err))
		return err
	}
	return nil
}

func (uc *UseCase) normalize(in Input) (string, error) {
	if strings.TrimSpace(in.APIKey) == "" {
		return "", domain.NewError(domain.ErrCodeInvalid, "api_key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(in.APIBaseURL), "/")
	if baseURL == "" {
		return uc.defaultURL, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.NewError(domain.ErrCodeInvalid, "api_base_url must be an absolute http(s) url")
	}
	return baseURL, nil
}
