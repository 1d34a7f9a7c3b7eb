package sitematrix

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/toolforge/toolforge-go/useragent"
)

const (
	// DefaultEndpoint is the Meta-Wiki action API.
	DefaultEndpoint = "https://meta.wikimedia.org/w/api.php"

	defaultRateLimitRPS   = 1.0
	defaultRateLimitBurst = 2
	flightKey             = "sitematrix"
)

// DefaultUserAgent identifies sitematrix requests when the caller has not
// configured one.
var DefaultUserAgent = "toolforge-go " + useragent.ClientVersion

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for the sitematrix request.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithEndpoint overrides the API endpoint, primarily for tests.
func WithEndpoint(endpoint string) Option {
	return func(r *Resolver) {
		r.endpoint = endpoint
	}
}

// WithUserAgent sets the User-Agent header of the sitematrix request. An
// empty value leaves the header to the HTTP client's transport.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		r.userAgent = ua
	}
}

// WithCache injects the table cache, letting several resolvers share one fetch.
func WithCache(cache Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithRateLimit bounds how often the endpoint may be requested after failed
// fetches; attempts over the limit fail with ErrRateLimited. A non-positive
// rate disables limiting.
func WithRateLimit(ratePerSecond float64, burst int) Option {
	return func(r *Resolver) {
		r.limiter = newTokenBucketLimiter(ratePerSecond, burst)
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver maps wiki domains to database names. The site table is fetched on
// first use and reused for the lifetime of the resolver; failed fetches are
// not cached. Concurrent first lookups share a single request.
type Resolver struct {
	client    *http.Client
	endpoint  string
	userAgent string
	cache     Cache
	limiter   rateLimiter
	logger    *zap.Logger
	group     singleflight.Group
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		client:    http.DefaultClient,
		endpoint:  DefaultEndpoint,
		userAgent: DefaultUserAgent,
		cache:     NewMemoryCache(),
		limiter:   newTokenBucketLimiter(defaultRateLimitRPS, defaultRateLimitBurst),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DBName converts a domain or URL into its wiki database name, e.g.
// "en.wikipedia.org" into "enwiki".
func (r *Resolver) DBName(ctx context.Context, domain string) (string, error) {
	site := Normalize(domain)

	table, err := r.Table(ctx)
	if err != nil {
		return "", err
	}

	if dbname, ok := table.Lookup(site); ok {
		return dbname, nil
	}
	return "", fmt.Errorf("%w for %q (%s)", ErrUnknownDatabase, domain, site)
}

// Table returns the memoized site table, fetching it if needed.
func (r *Resolver) Table(ctx context.Context) (*Table, error) {
	if table, ok := r.cache.Get(); ok {
		return table, nil
	}

	// The shared fetch outlives any single caller; each caller stops
	// waiting when its own context ends.
	flight := r.group.DoChan(flightKey, func() (any, error) {
		if table, ok := r.cache.Get(); ok {
			return table, nil
		}
		table, err := r.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		r.cache.Set(table)
		return table, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	}
}

// Reset forgets the memoized table.
func (r *Resolver) Reset() {
	r.cache.Reset()
}

func (r *Resolver) fetch(ctx context.Context) (*Table, error) {
	if r.limiter != nil && !r.limiter.Allow() {
		return nil, ErrRateLimited
	}

	u, err := url.Parse(r.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("action", "sitematrix")
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	r.logger.Debug("fetching site matrix", zap.String("url", u.String()))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	table, err := ParseTable(body)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("site matrix loaded", zap.Int("sites", len(table.Sites)))
	return table, nil
}
