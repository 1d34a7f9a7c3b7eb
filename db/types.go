package db

import (
	"context"
	"database/sql"
)

// Cluster selects which group of wiki replicas serves a connection.
type Cluster string

const (
	// Web is the cluster for interactive, web-facing traffic.
	Web Cluster = "web"
	// Analytics is the cluster for long running queries.
	Analytics Cluster = "analytics"
)

// Valid reports whether c is one of the recognized clusters.
func (c Cluster) Valid() bool {
	return c == Web || c == Analytics
}

// Target describes where and how to connect. It is built per call and handed
// to a Connector.
type Target struct {
	Host     string
	Database string
	User     string
	Password string
	// DefaultsFile is a MySQL option file consulted for credentials when
	// User is empty. It may start with "~".
	DefaultsFile string
	Params       map[string]string
}

// HasCredentials reports whether the target carries an explicit user.
func (t Target) HasCredentials() bool {
	return t.User != ""
}

// Connector opens a database handle for a resolved target.
type Connector interface {
	Connect(ctx context.Context, target Target) (*sql.DB, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, target Target) (*sql.DB, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, target Target) (*sql.DB, error) {
	return f(ctx, target)
}
