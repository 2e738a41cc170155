// Package graph wraps the graph database driver behind a small query contract.
package graph

import (
	"context"
	"errors"
)

// Client is what the graph-backed store needs from a graph database: auto-commit
// queries for schema and read models, and explicit transactions for ledger writes.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	BeginWrite(ctx context.Context) (Tx, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is an explicit write transaction. Statements run in order and become visible on Commit.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result holds the records of one statement.
type Result struct {
	Records []Record
}

// Record maps return keys to values.
type Record map[string]any

// Options configures a graph client.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")

// ErrTxClosed is returned when a committed or rolled back transaction is used.
var ErrTxClosed = errors.New("graph transaction already closed")
