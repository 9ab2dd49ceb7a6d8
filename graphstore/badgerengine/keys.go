package badgerengine

import (
	"encoding/binary"

	"github.com/google/uuid"
)

const (
	prefixVertex   = 'v'
	prefixEdge     = 'e'
	prefixIndex    = 'p'
	prefixOutgoing = 'o'
	prefixIncoming = 'i'
)

// vertexRecord is the stored value of a vertex key.
type vertexRecord struct {
	Label      string           `json:"label"`
	Properties map[string]int64 `json:"properties,omitempty"`
}

// edgeRecord is the stored value of an edge key.
type edgeRecord struct {
	Label string    `json:"label"`
	From  uuid.UUID `json:"from"`
	To    uuid.UUID `json:"to"`
}

func vertexKey(id uuid.UUID) []byte {
	return idKey(prefixVertex, id)
}

func edgeKey(id uuid.UUID) []byte {
	return idKey(prefixEdge, id)
}

func idKey(prefix byte, id uuid.UUID) []byte {
	key := make([]byte, 0, 1+len(id))
	key = append(key, prefix)

	return append(key, id[:]...)
}

// indexKey layout: p | len(key) | key | value (big endian, sign bit flipped).
func indexKey(key string, value int64) []byte {
	out := make([]byte, 0, 2+len(key)+8)
	out = append(out, prefixIndex, byte(len(key)))
	out = append(out, key...)

	return binary.BigEndian.AppendUint64(out, uint64(value)^(1<<63))
}

// adjacencyKey layout: o|i | vertex id | edge id.
func adjacencyKey(prefix byte, vertex, edge uuid.UUID) []byte {
	out := make([]byte, 0, 1+2*len(vertex))
	out = append(out, prefix)
	out = append(out, vertex[:]...)

	return append(out, edge[:]...)
}

func adjacencyPrefix(prefix byte, vertex uuid.UUID) []byte {
	return idKey(prefix, vertex)
}

// edgeFromAdjacencyKey extracts the edge id from an adjacency key.
func edgeFromAdjacencyKey(key []byte) (uuid.UUID, bool) {
	if len(key) != 1+32 {
		return uuid.Nil, false
	}

	id, err := uuid.FromBytes(key[17:])
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
