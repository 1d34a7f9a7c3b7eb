// Package application wires configuration and logging into a toolforge
// Client for the command line tool, keeping the main package focused on CLI
// parsing and output.
package application
