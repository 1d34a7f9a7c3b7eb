package db

import "errors"

var (
	// ErrUnknownCluster is returned when a cluster other than web or analytics is requested.
	ErrUnknownCluster = errors.New(`"cluster" must be one of: "analytics", "web"`)
	// ErrNoCredentials is returned when neither explicit, environment nor file credentials are available.
	ErrNoCredentials = errors.New("no database credentials available")
)
