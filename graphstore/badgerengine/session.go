package badgerengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// session stages mutations in one lazily created read-write transaction.
type session struct {
	engine *Engine
	db     *badger.DB

	txn     *badger.Txn
	writes  int
	closed  bool
	release sync.Once
}

func (s *session) transaction() (*badger.Txn, error) {
	if s.closed {
		return nil, graphstore.ErrSessionClosed
	}

	if s.txn == nil {
		s.txn = s.db.NewTransaction(true)
	}

	return s.txn, nil
}

// CreateVertex stages a new vertex with the given label.
func (s *session) CreateVertex(ctx context.Context, label graphstore.TypeLabel) (graphstore.VertexHandle, error) {
	if err := ctx.Err(); err != nil {
		return graphstore.VertexHandle{}, err
	}

	txn, err := s.transaction()
	if err != nil {
		return graphstore.VertexHandle{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return graphstore.VertexHandle{}, fmt.Errorf("generate vertex id: %w", err)
	}

	if err = s.putVertex(txn, id, vertexRecord{Label: string(label)}); err != nil {
		return graphstore.VertexHandle{}, err
	}

	return graphstore.VertexHandle{ID: id, Label: label}, nil
}

// CreateEdge stages a new edge. Both endpoints must exist, otherwise graphstore.ErrRecordMissing is returned.
func (s *session) CreateEdge(
	ctx context.Context,
	label graphstore.TypeLabel,
	from, to graphstore.VertexHandle,
) (graphstore.EdgeHandle, error) {
	if err := ctx.Err(); err != nil {
		return graphstore.EdgeHandle{}, err
	}

	if from.IsZero() || to.IsZero() {
		return graphstore.EdgeHandle{}, graphstore.ErrInvalidHandle
	}

	txn, err := s.transaction()
	if err != nil {
		return graphstore.EdgeHandle{}, err
	}

	for _, endpoint := range []uuid.UUID{from.ID, to.ID} {
		if _, err = s.getVertex(txn, endpoint); err != nil {
			return graphstore.EdgeHandle{}, err
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return graphstore.EdgeHandle{}, fmt.Errorf("generate edge id: %w", err)
	}

	value, err := json.Marshal(edgeRecord{Label: string(label), From: from.ID, To: to.ID})
	if err != nil {
		return graphstore.EdgeHandle{}, fmt.Errorf("encode edge: %w", err)
	}

	if err = s.set(txn, edgeKey(id), value); err != nil {
		return graphstore.EdgeHandle{}, err
	}

	if err = s.set(txn, adjacencyKey(prefixOutgoing, from.ID, id), nil); err != nil {
		return graphstore.EdgeHandle{}, err
	}

	if err = s.set(txn, adjacencyKey(prefixIncoming, to.ID, id), nil); err != nil {
		return graphstore.EdgeHandle{}, err
	}

	return graphstore.EdgeHandle{ID: id, Label: label, From: from.ID, To: to.ID}, nil
}

// SetProperty stages an integer property and maintains the unique lookup index for it.
func (s *session) SetProperty(ctx context.Context, v graphstore.VertexHandle, key string, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if v.IsZero() {
		return graphstore.ErrInvalidHandle
	}

	txn, err := s.transaction()
	if err != nil {
		return err
	}

	record, err := s.getVertex(txn, v.ID)
	if err != nil {
		return err
	}

	owner, found, err := s.lookupIndex(txn, key, value)
	if err != nil {
		return err
	}

	if found && owner != v.ID {
		return fmt.Errorf("%w: %s=%d", graphstore.ErrUniqueViolation, key, value)
	}

	if old, ok := record.Properties[key]; ok && old != value {
		if err = s.delete(txn, indexKey(key, old)); err != nil {
			return err
		}
	}

	if record.Properties == nil {
		record.Properties = make(map[string]int64, 1)
	}
	record.Properties[key] = value

	if err = s.putVertex(txn, v.ID, record); err != nil {
		return err
	}

	return s.set(txn, indexKey(key, value), v.ID[:])
}

// FindByProperty resolves a vertex by its unique property value.
// The scope graphstore.BaseVertexLabel matches every vertex label.
func (s *session) FindByProperty(
	ctx context.Context,
	scope graphstore.TypeLabel,
	key string,
	value int64,
) (graphstore.VertexHandle, bool, error) {
	if err := ctx.Err(); err != nil {
		return graphstore.VertexHandle{}, false, err
	}

	txn, err := s.transaction()
	if err != nil {
		return graphstore.VertexHandle{}, false, err
	}

	id, found, err := s.lookupIndex(txn, key, value)
	if err != nil || !found {
		return graphstore.VertexHandle{}, false, err
	}

	record, err := s.getVertex(txn, id)
	if errors.Is(err, graphstore.ErrRecordMissing) {
		return graphstore.VertexHandle{}, false, nil
	}
	if err != nil {
		return graphstore.VertexHandle{}, false, err
	}

	label := graphstore.TypeLabel(record.Label)
	if scope != graphstore.BaseVertexLabel && scope != label {
		return graphstore.VertexHandle{}, false, nil
	}

	return graphstore.VertexHandle{ID: id, Label: label}, true, nil
}

// DeleteVertex stages the removal of a vertex with its index entries and all incident edges.
func (s *session) DeleteVertex(ctx context.Context, v graphstore.VertexHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if v.IsZero() {
		return graphstore.ErrInvalidHandle
	}

	txn, err := s.transaction()
	if err != nil {
		return err
	}

	record, err := s.getVertex(txn, v.ID)
	if err != nil {
		return err
	}

	for key, value := range record.Properties {
		if err = s.delete(txn, indexKey(key, value)); err != nil {
			return err
		}
	}

	for _, direction := range []byte{prefixOutgoing, prefixIncoming} {
		if err = s.deleteIncidentEdges(txn, direction, v.ID); err != nil {
			return err
		}
	}

	return s.delete(txn, vertexKey(v.ID))
}

func (s *session) deleteIncidentEdges(txn *badger.Txn, direction byte, vertex uuid.UUID) error {
	edges := s.collectAdjacent(txn, direction, vertex)

	for _, edgeID := range edges {
		item, err := txn.Get(edgeKey(edgeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		var edge edgeRecord
		if err = item.Value(func(val []byte) error { return json.Unmarshal(val, &edge) }); err != nil {
			return fmt.Errorf("decode edge: %w", err)
		}

		if err = s.delete(txn, edgeKey(edgeID)); err != nil {
			return err
		}

		if err = s.delete(txn, adjacencyKey(prefixOutgoing, edge.From, edgeID)); err != nil {
			return err
		}

		if err = s.delete(txn, adjacencyKey(prefixIncoming, edge.To, edgeID)); err != nil {
			return err
		}
	}

	return nil
}

// collectAdjacent lists edge ids of one direction. A read-write transaction allows only
// one open iterator, so keys are collected before anything is deleted.
func (s *session) collectAdjacent(txn *badger.Txn, direction byte, vertex uuid.UUID) []uuid.UUID {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = adjacencyPrefix(direction, vertex)

	it := txn.NewIterator(opts)
	defer it.Close()

	var edges []uuid.UUID
	for it.Rewind(); it.Valid(); it.Next() {
		if id, ok := edgeFromAdjacencyKey(it.Item().KeyCopy(nil)); ok {
			edges = append(edges, id)
		}
	}

	return edges
}

// Commit commits the staged mutations. A collision with a concurrent transaction returns graphstore.ErrWriteConflict.
func (s *session) Commit(ctx context.Context) error {
	if s.closed {
		return graphstore.ErrSessionClosed
	}

	if s.txn == nil {
		return nil
	}

	txn, writes := s.txn, s.writes
	s.txn, s.writes = nil, 0

	start := time.Now()
	err := txn.Commit()
	duration := time.Since(start)

	switch {
	case err == nil:
		s.engine.recordCommit(ctx, duration, statusSuccess)
		s.engine.logDebug(ctx, logMsgCommitted, logAttrWrites, writes, logAttrDurationMS, toMilliseconds(duration))

		return nil

	case errors.Is(err, badger.ErrConflict):
		s.engine.recordCommit(ctx, duration, statusConflict)
		s.engine.logDebug(ctx, logMsgWriteConflict, logAttrWrites, writes)

		return errors.Join(graphstore.ErrWriteConflict, err)

	default:
		s.engine.recordCommit(ctx, duration, statusError)

		return fmt.Errorf("commit transaction: %w", err)
	}
}

// Rollback discards the staged mutations.
func (s *session) Rollback(ctx context.Context) error {
	if s.txn != nil {
		s.txn.Discard()
		s.engine.logDebug(ctx, logMsgRolledBack, logAttrWrites, s.writes)
		s.txn, s.writes = nil, 0
	}

	return nil
}

// Close discards staged mutations and releases the session. It is safe to call more than once.
func (s *session) Close(ctx context.Context) error {
	_ = s.Rollback(ctx)
	s.closed = true
	s.release.Do(func() { s.engine.releaseSession(ctx) })

	return nil
}

func (s *session) getVertex(txn *badger.Txn, id uuid.UUID) (vertexRecord, error) {
	item, err := txn.Get(vertexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return vertexRecord{}, fmt.Errorf("%w: vertex %s", graphstore.ErrRecordMissing, id)
	}
	if err != nil {
		return vertexRecord{}, err
	}

	var record vertexRecord
	if err = item.Value(func(val []byte) error { return json.Unmarshal(val, &record) }); err != nil {
		return vertexRecord{}, fmt.Errorf("decode vertex: %w", err)
	}

	return record, nil
}

func (s *session) putVertex(txn *badger.Txn, id uuid.UUID, record vertexRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode vertex: %w", err)
	}

	return s.set(txn, vertexKey(id), value)
}

func (s *session) lookupIndex(txn *badger.Txn, key string, value int64) (uuid.UUID, bool, error) {
	item, err := txn.Get(indexKey(key, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	var id uuid.UUID
	err = item.Value(func(val []byte) error {
		parsed, parseErr := uuid.FromBytes(val)
		id = parsed

		return parseErr
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("decode index entry: %w", err)
	}

	return id, true, nil
}

func (s *session) set(txn *badger.Txn, key, value []byte) error {
	if err := txn.Set(key, value); err != nil {
		return fmt.Errorf("stage write: %w", err)
	}
	s.writes++

	return nil
}

func (s *session) delete(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(key); err != nil {
		return fmt.Errorf("stage delete: %w", err)
	}
	s.writes++

	return nil
}

var _ graphstore.Session = (*session)(nil)
