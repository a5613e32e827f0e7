package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domain "github.com/campus-hub/attendance-hub/internal/domain/roster"
	"github.com/campus-hub/attendance-hub/internal/domain/shared"
	"github.com/campus-hub/attendance-hub/pkg/circuitbreaker"
	"github.com/campus-hub/attendance-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the roster store client.
type ClientConfig struct {
	// BaseURL is the roster store base URL.
	BaseURL string

	// APIKey is the API key for authentication (if applicable).
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimiterConfig for request rate limiting.
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging.
	Logger *slog.Logger

	// Debug enables debug logging of every request.
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           10 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the roster store API client. It implements the domain roster
// Provider contract behind a rate limiter, a circuit breaker, and retries.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retrier        *retry.Retrier
	mapper         *Mapper
}

// NewClient creates a new roster store client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	logger := config.Logger
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: circuitbreaker.RosterAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		}),
		retrier: retry.RosterAPIRetrier(),
		mapper:  NewMapper(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Provider implementation
// ─────────────────────────────────────────────────────────────────────────────

// GetRoster returns the enrolled identities for a cohort.
func (c *Client) GetRoster(ctx context.Context, cohort shared.Cohort) ([]domain.Entry, error) {
	path := fmt.Sprintf("/api/v1/rosters/%d/%s", cohort.Year.Int(), url.PathEscape(string(cohort.Division)))

	var response APIResponse[RosterDTO]
	if err := c.doRequest(ctx, path, &response); err != nil {
		return nil, c.asDomainError("GetRoster", err)
	}
	if !response.Success {
		return nil, shared.NewDomainError("roster", "GetRoster", shared.ErrRosterUnavailable, response.Error)
	}

	return c.mapper.EntriesFromDTO(&response.Data), nil
}

// GetIdentityRecord returns the cohort and enrolled subjects for one identity.
func (c *Client) GetIdentityRecord(ctx context.Context, identity string) (domain.IdentityRecord, error) {
	path := "/api/v1/students/" + url.PathEscape(identity)

	var response APIResponse[StudentRecordDTO]
	if err := c.doRequest(ctx, path, &response); err != nil {
		var apiErr *APIErrorDTO
		if errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND" {
			return domain.IdentityRecord{}, shared.ErrIdentityNotFound
		}
		return domain.IdentityRecord{}, c.asDomainError("GetIdentityRecord", err)
	}
	if !response.Success {
		return domain.IdentityRecord{}, shared.NewDomainError("roster", "GetIdentityRecord", shared.ErrRosterUnavailable, response.Error)
	}

	record, err := c.mapper.IdentityRecordFromDTO(&response.Data)
	if err != nil {
		return domain.IdentityRecord{}, shared.NewDomainError("roster", "GetIdentityRecord", shared.ErrExternalService, err.Error())
	}
	return record, nil
}

// IsHealthy checks if the roster store is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response APIResponse[map[string]interface{}]
	err := c.doSingleRequest(ctx, "/api/v1/health", &response)
	return err == nil && response.Success
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP plumbing
// ─────────────────────────────────────────────────────────────────────────────

// doRequest performs a GET with rate limiting, circuit breaking, and retries.
func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	return c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
			}

			err := c.doSingleRequest(ctx, path, result)
			if err == nil {
				return nil
			}

			var rateLimitErr *RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.rateLimiter.RecordRateLimitHit()
				return retry.Retryable(err)
			}

			var apiErr *APIErrorDTO
			if errors.As(err, &apiErr) {
				// Client-side errors will not heal on retry.
				return retry.Permanent(err)
			}

			return retry.Retryable(err)
		})
	})
}

// doSingleRequest performs a single GET request.
func (c *Client) doSingleRequest(ctx context.Context, path string, result interface{}) error {
	fullURL := c.config.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("roster store request", "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: "roster store rate limit exceeded"}
	}

	if resp.StatusCode >= 400 {
		var apiErr APIErrorDTO
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			if apiErr.Code == "" && resp.StatusCode == http.StatusNotFound {
				apiErr.Code = "NOT_FOUND"
			}
			return &apiErr
		}
		if resp.StatusCode == http.StatusNotFound {
			return &APIErrorDTO{Code: "NOT_FOUND", Message: "not found"}
		}
		return fmt.Errorf("roster store error: status %d", resp.StatusCode)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// asDomainError maps transport failures onto the domain error taxonomy.
func (c *Client) asDomainError(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.NewDomainError("roster", op, shared.ErrRosterUnavailable, "roster store circuit open")
	}
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return shared.WrapError("roster", op, shared.ErrExternalService, "roster store rejected the request", apiErr)
	}
	return shared.WrapError("roster", op, shared.ErrRosterUnavailable, "roster store unreachable", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// CachedProvider wraps a Provider with a read-through roster cache.
// Cache failures fall back to the upstream; upstream failures are surfaced.
type CachedProvider struct {
	provider domain.Provider
	cache    domain.Cache
	logger   *slog.Logger
}

// NewCachedProvider creates a CachedProvider. The cache may be nil, in which
// case every call passes straight through.
func NewCachedProvider(provider domain.Provider, cache domain.Cache, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{provider: provider, cache: cache, logger: logger}
}

// GetRoster returns the cached roster when fresh, fetching and populating the
// cache otherwise.
func (p *CachedProvider) GetRoster(ctx context.Context, cohort shared.Cohort) ([]domain.Entry, error) {
	if p.cache != nil {
		entries, err := p.cache.GetRoster(ctx, cohort)
		if err == nil {
			return entries, nil
		}
	}

	entries, err := p.provider.GetRoster(ctx, cohort)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetRoster(ctx, cohort, entries); err != nil {
			p.logger.Warn("roster cache write failed", "cohort", cohort.String(), "error", err)
		}
	}
	return entries, nil
}

// GetIdentityRecord passes through to the upstream provider. Identity lookups
// are rare (one per summary request) and not worth a cache key space.
func (p *CachedProvider) GetIdentityRecord(ctx context.Context, identity string) (domain.IdentityRecord, error) {
	return p.provider.GetIdentityRecord(ctx, identity)
}

// Invalidate drops the cached roster for a cohort.
func (p *CachedProvider) Invalidate(ctx context.Context, cohort shared.Cohort) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Invalidate(ctx, cohort)
}
