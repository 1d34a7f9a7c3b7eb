// Package toolforge bundles the helpers a tool running on Wikimedia Toolforge
// needs most: connecting to the wiki replicas and ToolsDB, mapping wiki
// domains to database names, and identifying itself on outbound HTTP.
//
// A Client carries the state those helpers share: the HTTP client with its
// installed User-Agent and the memoized site matrix. The package-level
// functions use a process-wide default Client.
package toolforge

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toolforge/toolforge-go/db"
	"github.com/toolforge/toolforge-go/sitematrix"
	"github.com/toolforge/toolforge-go/useragent"
)

const defaultHTTPTimeout = 30 * time.Second

// Client holds the shared HTTP and lookup state.
type Client struct {
	transport  *useragent.Transport
	httpClient *http.Client
	sites      *sitematrix.Resolver
	dbOpts     []db.Option
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	base        http.RoundTripper
	timeout     time.Duration
	logger      *zap.Logger
	siteOptions []sitematrix.Option
	dbOptions   []db.Option
}

// WithLogger sets the logger passed down to the resolvers.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithBaseTransport sets the round tripper beneath the User-Agent transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(cfg *clientConfig) {
		cfg.base = rt
	}
}

// WithHTTPTimeout bounds every request made through the shared HTTP client.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = timeout
	}
}

// WithSiteMatrixOptions appends options for the site matrix resolver.
func WithSiteMatrixOptions(opts ...sitematrix.Option) Option {
	return func(cfg *clientConfig) {
		cfg.siteOptions = append(cfg.siteOptions, opts...)
	}
}

// WithDBOptions appends options applied to every Connect and ToolsDB call.
func WithDBOptions(opts ...db.Option) Option {
	return func(cfg *clientConfig) {
		cfg.dbOptions = append(cfg.dbOptions, opts...)
	}
}

// New creates a Client. Until SetUserAgent is called, requests identify as
// the library itself.
func New(opts ...Option) *Client {
	cfg := clientConfig{
		timeout: defaultHTTPTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := useragent.NewTransport(cfg.base)
	transport.SetValue(sitematrix.DefaultUserAgent)
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.timeout,
	}

	siteOpts := append([]sitematrix.Option{
		sitematrix.WithHTTPClient(httpClient),
		sitematrix.WithUserAgent(""),
		sitematrix.WithLogger(cfg.logger.Named("sitematrix")),
	}, cfg.siteOptions...)

	dbOpts := append([]db.Option{
		db.WithLogger(cfg.logger.Named("db")),
	}, cfg.dbOptions...)

	return &Client{
		transport:  transport,
		httpClient: httpClient,
		sites:      sitematrix.New(siteOpts...),
		dbOpts:     dbOpts,
		logger:     cfg.logger,
	}
}

// HTTPClient returns the shared HTTP client. Requests without an explicit
// User-Agent header carry the installed one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// SetUserAgent installs a policy-compliant User-Agent for tool on the shared
// HTTP client and returns it. Empty url and email select the tool's defaults.
func (c *Client) SetUserAgent(tool, url, email string) string {
	ua := c.transport.Set(tool, url, email)
	c.logger.Debug("user agent installed", zap.String("user_agent", ua))
	return ua
}

// UserAgent returns the installed User-Agent.
func (c *Client) UserAgent() string {
	return c.transport.Value()
}

// DBName converts a wiki domain or URL into its database name.
func (c *Client) DBName(ctx context.Context, domain string) (string, error) {
	return c.sites.DBName(ctx, domain)
}

// SiteMatrix returns the resolver backing DBName.
func (c *Client) SiteMatrix() *sitematrix.Resolver {
	return c.sites
}

// Connect opens a connection to a wiki replica database.
func (c *Client) Connect(ctx context.Context, dbname string, cluster db.Cluster, opts ...db.Option) (*sql.DB, error) {
	return db.Connect(ctx, dbname, cluster, c.options(opts)...)
}

// ToolsDB opens a connection to a database hosted on ToolsDB.
func (c *Client) ToolsDB(ctx context.Context, dbname string, opts ...db.Option) (*sql.DB, error) {
	return db.ConnectToolsDB(ctx, dbname, c.options(opts)...)
}

func (c *Client) options(opts []db.Option) []db.Option {
	out := make([]db.Option, 0, len(c.dbOpts)+len(opts))
	out = append(out, c.dbOpts...)
	return append(out, opts...)
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide Client used by the package-level functions.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = New()
	})
	return defaultClient
}

// Connect opens a replica connection using the default Client.
func Connect(ctx context.Context, dbname string, cluster db.Cluster, opts ...db.Option) (*sql.DB, error) {
	return Default().Connect(ctx, dbname, cluster, opts...)
}

// ToolsDB opens a ToolsDB connection using the default Client.
func ToolsDB(ctx context.Context, dbname string, opts ...db.Option) (*sql.DB, error) {
	return Default().ToolsDB(ctx, dbname, opts...)
}

// DBName resolves a wiki domain using the default Client.
func DBName(ctx context.Context, domain string) (string, error) {
	return Default().DBName(ctx, domain)
}

// SetUserAgent installs a User-Agent on the default Client.
func SetUserAgent(tool, url, email string) string {
	return Default().SetUserAgent(tool, url, email)
}

// HTTPClient returns the default Client's HTTP client.
func HTTPClient() *http.Client {
	return Default().HTTPClient()
}
