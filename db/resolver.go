package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

const (
	// PublicSuffix marks the permission-filtered view of a wiki database.
	PublicSuffix = "_p"
	// DefaultsFile is the credentials file Toolforge provisions for every tool.
	DefaultsFile = "~/replica.my.cnf"
	// ToolsDBHost serves databases owned by tools.
	ToolsDBHost = "tools.db.svc.wikimedia.cloud"

	replicaDomain  = "db.svc.wikimedia.cloud"
	metaDatabase   = "meta"
	metaShard      = "s7"
	defaultCharset = "utf8mb4"
)

// EnvPair names the environment variables holding a username and password.
type EnvPair struct {
	User     string
	Password string
}

var (
	// ReplicaEnv supplies fallback credentials for the wiki replicas.
	ReplicaEnv = EnvPair{User: "TOOL_REPLICA_USER", Password: "TOOL_REPLICA_PASSWORD"}
	// ToolsDBEnv supplies fallback credentials for ToolsDB.
	ToolsDBEnv = EnvPair{User: "TOOL_TOOLSDB_USER", Password: "TOOL_TOOLSDB_PASSWORD"}
)

// Option customises how a target is resolved and connected.
type Option func(*options)

type options struct {
	host         string
	extension    string
	user         string
	password     string
	defaultsFile string
	params       map[string]string
	lookupEnv    func(string) (string, bool)
	connector    Connector
	logger       *zap.Logger
}

// WithHost replaces the computed host entirely.
func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

// WithExtension prefixes the computed replica host with an extension
// qualifier, e.g. "termstore" for "termstore.enwiki.web.db.svc.wikimedia.cloud".
// It is ignored for ToolsDB.
func WithExtension(extension string) Option {
	return func(o *options) {
		o.extension = extension
	}
}

// WithCredentials sets explicit credentials, bypassing environment and file fallbacks.
func WithCredentials(user, password string) Option {
	return func(o *options) {
		o.user = user
		o.password = password
	}
}

// WithDefaultsFile overrides the MySQL option file used as the last credentials fallback.
func WithDefaultsFile(path string) Option {
	return func(o *options) {
		o.defaultsFile = path
	}
}

// WithParam adds a driver parameter such as "charset" or "readTimeout".
func WithParam(key, value string) Option {
	return func(o *options) {
		if o.params == nil {
			o.params = make(map[string]string)
		}
		o.params[key] = value
	}
}

// WithEnv overrides the environment lookup, primarily for tests.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookupEnv = lookup
	}
}

// WithConnector overrides the connector Connect and ConnectToolsDB delegate to.
func WithConnector(connector Connector) Option {
	return func(o *options) {
		o.connector = connector
	}
}

// WithLogger sets the logger used by the default connector.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		defaultsFile: DefaultsFile,
		lookupEnv:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.connector == nil {
		o.connector = &MySQLConnector{Logger: o.logger}
	}
	return o
}

// Resolve computes the replica target for a wiki database on the given
// cluster. The "_p" suffix is optional on input and always present on the
// returned database name. An unknown cluster fails before the environment is
// consulted.
func Resolve(dbname string, cluster Cluster, opts ...Option) (Target, error) {
	return resolveReplica(dbname, cluster, newOptions(opts))
}

// ResolveToolsDB computes the ToolsDB target for a tool-owned database.
func ResolveToolsDB(dbname string, opts ...Option) Target {
	return resolveToolsDB(dbname, newOptions(opts))
}

// Connect opens a connection to a wiki replica database.
func Connect(ctx context.Context, dbname string, cluster Cluster, opts ...Option) (*sql.DB, error) {
	o := newOptions(opts)
	target, err := resolveReplica(dbname, cluster, o)
	if err != nil {
		return nil, err
	}
	return o.connector.Connect(ctx, target)
}

// ConnectToolsDB opens a connection to a database hosted on ToolsDB.
func ConnectToolsDB(ctx context.Context, dbname string, opts ...Option) (*sql.DB, error) {
	o := newOptions(opts)
	return o.connector.Connect(ctx, resolveToolsDB(dbname, o))
}

func resolveReplica(dbname string, cluster Cluster, o *options) (Target, error) {
	if !cluster.Valid() {
		return Target{}, fmt.Errorf("%w, got %q", ErrUnknownCluster, cluster)
	}

	name := strings.TrimSuffix(dbname, PublicSuffix)
	prefix := name
	if name == metaDatabase {
		prefix = metaShard
	}

	host := fmt.Sprintf("%s.%s.%s", prefix, cluster, replicaDomain)
	if o.extension != "" {
		host = o.extension + "." + host
	}
	if o.host != "" {
		host = o.host
	}

	return o.target(host, name+PublicSuffix, ReplicaEnv), nil
}

func resolveToolsDB(dbname string, o *options) Target {
	host := ToolsDBHost
	if o.host != "" {
		host = o.host
	}
	return o.target(host, dbname, ToolsDBEnv)
}

func (o *options) target(host, database string, env EnvPair) Target {
	t := Target{
		Host:     host,
		Database: database,
		Params:   map[string]string{"charset": defaultCharset},
	}
	for k, v := range o.params {
		t.Params[k] = v
	}

	if o.user != "" {
		t.User, t.Password = o.user, o.password
	} else if user, password, ok := env.lookup(o.lookupEnv); ok {
		t.User, t.Password = user, password
	} else {
		t.DefaultsFile = o.defaultsFile
	}
	return t
}

// lookup returns the pair's values only when both are set and non-empty.
func (p EnvPair) lookup(lookupEnv func(string) (string, bool)) (string, string, bool) {
	user, ok := lookupEnv(p.User)
	if !ok || user == "" {
		return "", "", false
	}
	password, ok := lookupEnv(p.Password)
	if !ok || password == "" {
		return "", "", false
	}
	return user, password, true
}
