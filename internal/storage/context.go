// Package storage defines the storage engine's external contracts and
// error taxonomy; internal/storage/postgres implements them against
// PostgreSQL.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OperationContext carries tracing metadata for a single engine call. It
// is attached to context.Context and used to tag queries so slow-query
// logs can be correlated back to the caller.
type OperationContext struct {
	// OperationID is a unique identifier for this operation (auto-generated if empty).
	OperationID string

	// Source identifies the component initiating the operation (e.g. "ostorectl", "vacuum").
	Source string

	// Actor is the upper-layer identity initiating the operation, if known.
	Actor string

	// StartTime is when the operation started.
	StartTime time.Time

	// Metadata holds additional context for logging.
	Metadata map[string]any
}

type contextKey int

const (
	operationContextKey contextKey = iota
)

// NewOperationContext creates a new OperationContext with defaults.
func NewOperationContext(source string) *OperationContext {
	return &OperationContext{
		OperationID: uuid.New().String(),
		Source:      source,
		StartTime:   time.Now(),
		Metadata:    make(map[string]any),
	}
}

// WithActor sets the actor.
func (oc *OperationContext) WithActor(actor string) *OperationContext {
	oc.Actor = actor
	return oc
}

// WithMetadata adds metadata.
func (oc *OperationContext) WithMetadata(key string, value any) *OperationContext {
	oc.Metadata[key] = value
	return oc
}

// WithOperationContext attaches an OperationContext to a context.Context.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey, oc)
}

// GetOperationContext retrieves the OperationContext from a context.Context.
// Returns nil if no OperationContext is present.
func GetOperationContext(ctx context.Context) *OperationContext {
	oc, _ := ctx.Value(operationContextKey).(*OperationContext)
	return oc
}

// MustGetOperationContext retrieves the OperationContext or creates a default one.
func MustGetOperationContext(ctx context.Context) *OperationContext {
	oc := GetOperationContext(ctx)
	if oc == nil {
		oc = NewOperationContext("unknown")
	}
	return oc
}

// QueryComment generates a SQL comment carrying operation context, prepended
// to statements by the postgres engine's taggedSQL helper so it shows up in
// pg_stat_activity and slow-query logs.
func (oc *OperationContext) QueryComment() string {
	comment := "/* op_id:" + oc.OperationID
	if oc.Source != "" {
		comment += " source:" + oc.Source
	}
	if oc.Actor != "" {
		comment += " actor:" + oc.Actor
	}
	comment += " */"
	return comment
}
