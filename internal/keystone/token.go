package keystone

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/charge/internal/logger"
	"github.com/MrSnakeDoc/charge/internal/metrics"
)

// TokenSafetyMargin is how long before expiry a cached token stops being reused.
const TokenSafetyMargin = 30 * time.Minute

// CacheStore persists the current token under a key. It needs no TTL support:
// staleness is computed from Token.ExpiresAt.
type CacheStore interface {
	Get(ctx context.Context, key string) (*Token, bool, error)
	Set(ctx context.Context, key string, token *Token) error
}

// TokenProviderOptions configures a TokenProvider.
type TokenProviderOptions struct {
	Credentials PasswordCredentials
	CacheKey    string
	Margin      time.Duration    // defaults to TokenSafetyMargin
	Now         func() time.Time // defaults to time.Now
}

// TokenProvider hands out a valid token and the normalized catalog, refreshing
// through the Authenticator when the cached one is missing or close to expiry.
type TokenProvider struct {
	auth   Authenticator
	cache  CacheStore
	logger logger.Logger

	creds  PasswordCredentials
	key    string
	margin time.Duration
	now    func() time.Time

	refresh singleflight.Group
}

// NewTokenProvider creates a token provider.
func NewTokenProvider(auth Authenticator, cache CacheStore, log logger.Logger, opts TokenProviderOptions) *TokenProvider {
	if opts.Margin <= 0 {
		opts.Margin = TokenSafetyMargin
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenProvider{
		auth:   auth,
		cache:  cache,
		logger: log,
		creds:  opts.Credentials,
		key:    opts.CacheKey,
		margin: opts.Margin,
		now:    opts.Now,
	}
}

// IsStale reports whether tok must not be reused at now.
// A token with exactly margin left is still valid; one without a parseable
// expiry is always stale.
func IsStale(tok *Token, now time.Time, margin time.Duration) bool {
	if tok == nil {
		return true
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, tok.ExpiresAt)
	if err != nil {
		return true
	}
	return expiresAt.Sub(now) < margin
}

// GetToken returns the cached token when it is still good, otherwise
// authenticates, rebuilds the catalog and overwrites the cache.
func (p *TokenProvider) GetToken(ctx context.Context) (*Access, error) {
	tok, found, err := p.cache.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}

	if found && !IsStale(tok, p.now(), p.margin) {
		p.logger.Debug("using cached keystone token",
			logger.String("key", p.key),
			logger.String("expires_at", tok.ExpiresAt))
		metrics.RecordTokenServed(metrics.SourceCache)
		return &Access{Token: tok.Value, Endpoint: tok.Catalog}, nil
	}

	if found {
		p.logger.Info("cached keystone token expires soon, refreshing",
			logger.String("expires_at", tok.ExpiresAt),
			logger.Duration("margin", p.margin))
	}

	// Concurrent callers in this process share one refresh. It runs detached
	// from the caller that started it; each caller only stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := p.refresh.DoChan(p.key, func() (interface{}, error) {
		return p.refreshToken(shared)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		fresh := res.Val.(*Token)
		metrics.RecordTokenServed(metrics.SourceKeystone)
		return &Access{Token: fresh.Value, Endpoint: fresh.Catalog}, nil
	}
}

// refreshToken re-reads the cache first: a refresh that finished while this
// caller was deciding to refresh has already stored a good token.
func (p *TokenProvider) refreshToken(ctx context.Context) (*Token, error) {
	tok, found, err := p.cache.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}
	if found && !IsStale(tok, p.now(), p.margin) {
		return tok, nil
	}
	return p.authenticate(ctx)
}

func (p *TokenProvider) authenticate(ctx context.Context) (tok *Token, err error) {
	defer func() {
		var expiresAt time.Time
		if tok != nil {
			expiresAt, _ = time.Parse(time.RFC3339Nano, tok.ExpiresAt)
		}
		metrics.RecordTokenRefresh(expiresAt, err)
	}()

	p.logger.Info("requesting keystone token",
		logger.String("user_id", p.creds.UserID),
		logger.String("project_id", p.creds.ProjectID))

	resp, err := p.auth.Authenticate(ctx, p.creds)
	if err != nil {
		return nil, err
	}

	tok, err = tokenFromResponse(resp)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, p.key, tok); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}

	p.logger.Info("keystone token refreshed",
		logger.String("expires_at", tok.ExpiresAt),
		logger.Int("services", len(tok.Catalog)))

	return tok, nil
}

// tokenFromResponse prefers the X-Subject-Token header over the body value.
func tokenFromResponse(resp *AuthResponse) (*Token, error) {
	if resp == nil || resp.Token == nil {
		return nil, fmt.Errorf("%w: no token in auth response", ErrCatalogMalformed)
	}
	raw := resp.Token

	value := raw.Value
	if resp.SubjectToken != "" {
		value = resp.SubjectToken
	}
	if value == "" {
		return nil, fmt.Errorf("%w: token value missing from header and body", ErrCatalogMalformed)
	}
	if raw.Catalog == nil {
		return nil, fmt.Errorf("%w: token has no catalog", ErrCatalogMalformed)
	}

	return &Token{
		Value:     value,
		ExpiresAt: raw.ExpiresAt,
		IssuedAt:  raw.IssuedAt,
		Catalog:   BuildCatalog(raw.Catalog),
	}, nil
}
