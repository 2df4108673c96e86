// Package oauth runs the Discord authorization-code flow with the handshake kept in Redis.
package oauth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/internal/config"
	"github.com/fastygo/sellerdesk/repository"
)

// Flow drives a goth provider without gothic, so no cookie store is needed: the marshalled
// provider session is parked under the random state value until the callback arrives.
type Flow struct {
	provider goth.Provider
	states   repository.OAuthStateRepository
}

// NewDiscord configures the identify+email scopes.
func NewDiscord(cfg config.DiscordConfig, states repository.OAuthStateRepository) *Flow {
	provider := discord.New(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL, discord.ScopeIdentify, discord.ScopeEmail)
	return NewFlow(provider, states)
}

func NewFlow(provider goth.Provider, states repository.OAuthStateRepository) *Flow {
	return &Flow{provider: provider, states: states}
}

// Begin returns the provider URL the browser should be redirected to.
func (f *Flow) Begin(ctx context.Context) (string, error) {
	state := uuid.NewString()
	sess, err := f.provider.BeginAuth(state)
	if err != nil {
		return "", fmt.Errorf("begin %s auth: %w", f.provider.Name(), err)
	}
	authURL, err := sess.GetAuthURL()
	if err != nil {
		return "", err
	}
	if err := f.states.Put(ctx, state, sess.Marshal()); err != nil {
		return "", err
	}
	return authURL, nil
}

// Complete exchanges the callback code and returns the external profile. The state is
// consumed even when the exchange fails.
func (f *Flow) Complete(ctx context.Context, params url.Values) (domain.ExternalProfile, error) {
	if reason := params.Get("error"); reason != "" {
		return domain.ExternalProfile{}, domain.NewError(domain.ErrCodeUnauthenticated, "authorization denied: "+reason)
	}
	state := params.Get("state")
	if state == "" {
		return domain.ExternalProfile{}, domain.ErrStateNotFound
	}
	blob, err := f.states.Take(ctx, state)
	if err != nil {
		return domain.ExternalProfile{}, err
	}

	sess, err := f.provider.UnmarshalSession(blob)
	if err != nil {
		return domain.ExternalProfile{}, fmt.Errorf("restore %s session: %w", f.provider.Name(), err)
	}
	if _, err := sess.Authorize(f.provider, params); err != nil {
		return domain.ExternalProfile{}, domain.WrapError(domain.ErrCodeUnauthenticated, "code exchange failed", err)
	}
	user, err := f.provider.FetchUser(sess)
	if err != nil {
		return domain.ExternalProfile{}, domain.WrapError(domain.ErrCodeUnauthenticated, "fetch profile failed", err)
	}
	return profileFrom(user), nil
}

// profileFrom prefers the raw Discord fields: goth folds the avatar hash into a CDN url and
// drops the discriminator.
func profileFrom(user goth.User) domain.ExternalProfile {
	profile := domain.ExternalProfile{
		ExternalID: user.UserID,
		Username:   user.Name,
		Avatar:     user.AvatarURL,
		Email:      user.Email,
	}
	if v, ok := user.RawData["username"].(string); ok && v != "" {
		profile.Username = v
	}
	if v, ok := user.RawData["discriminator"].(string); ok {
		profile.Discriminator = v
	}
	if v, ok := user.RawData["avatar"].(string); ok {
		profile.Avatar = v
	}
	if profile.Username == "" {
		profile.Username = user.NickName
	}
	return profile
}
