package graphstore

import (
	"context"

	"github.com/google/uuid"
)

const (
	// BaseVertexLabel is the scope every vertex label belongs to.
	BaseVertexLabel TypeLabel = "base_vertex"

	// LookupPropertyKey is the unique integer property used for point lookups.
	LookupPropertyKey = "pid"
)

// TypeLabel names a vertex or edge type.
type TypeLabel string

// VertexHandle references a stored vertex.
type VertexHandle struct {
	ID    uuid.UUID
	Label TypeLabel
}

// IsZero reports whether the handle references nothing.
func (h VertexHandle) IsZero() bool {
	return h.ID == uuid.Nil
}

// EdgeHandle references a stored edge.
type EdgeHandle struct {
	ID    uuid.UUID
	Label TypeLabel
	From  uuid.UUID
	To    uuid.UUID
}

// Engine is the lifecycle and session factory of a graph store.
// Restarting an engine means Shutdown followed by Startup, which must not happen while sessions are open.
type Engine interface {
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context) error
	OpenSession(ctx context.Context) (Session, error)
	CountVertices(ctx context.Context) (int64, error)
	CountEdges(ctx context.Context) (int64, error)
}

// Session is a unit of work against an Engine.
// Mutations are staged until Commit. After a failed Commit the session must be rolled back
// before it is used again. A Session is not safe for concurrent use.
type Session interface {
	CreateVertex(ctx context.Context, label TypeLabel) (VertexHandle, error)
	CreateEdge(ctx context.Context, label TypeLabel, from, to VertexHandle) (EdgeHandle, error)
	SetProperty(ctx context.Context, v VertexHandle, key string, value int64) error
	FindByProperty(ctx context.Context, scope TypeLabel, key string, value int64) (VertexHandle, bool, error)
	DeleteVertex(ctx context.Context, v VertexHandle) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}
