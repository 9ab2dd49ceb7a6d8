package loadgen

import (
	"fmt"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	vertexLabelPrefix = "vertex_"
	edgeLabelPrefix   = "edge_"
)

// VertexLabels returns n vertex labels vertex_0 .. vertex_{n-1}.
func VertexLabels(n int) []graphstore.TypeLabel {
	return labels(vertexLabelPrefix, n)
}

// EdgeLabels returns n edge labels edge_0 .. edge_{n-1}.
func EdgeLabels(n int) []graphstore.TypeLabel {
	return labels(edgeLabelPrefix, n)
}

func labels(prefix string, n int) []graphstore.TypeLabel {
	out := make([]graphstore.TypeLabel, n)
	for i := range n {
		out[i] = graphstore.TypeLabel(fmt.Sprintf("%s%d", prefix, i))
	}

	return out
}

// Shard partitions labels into equal, contiguous shards, one per worker.
func Shard(labels []graphstore.TypeLabel, workers int) ([][]graphstore.TypeLabel, error) {
	if workers <= 0 || len(labels) == 0 || len(labels)%workers != 0 {
		return nil, fmt.Errorf("%w: %d labels cannot be split into %d equal shards", ErrInvalidPlan, len(labels), workers)
	}

	size := len(labels) / workers
	shards := make([][]graphstore.TypeLabel, workers)
	for w := range workers {
		shards[w] = labels[w*size : (w+1)*size : (w+1)*size]
	}

	return shards, nil
}
