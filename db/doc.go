// Package db maps wiki database names onto Toolforge database hosts and opens
// MySQL connections to them. Wiki replicas live on one of two clusters (web or
// analytics); tool-owned databases live on the single ToolsDB host.
package db
