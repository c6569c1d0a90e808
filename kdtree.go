package tram

import (
	"math"
	"sort"
)

// nnIndex is a Euclidean KD-tree used for Voronoi assignment: batched
// 1-nearest-neighbor queries of trajectory points against the test-point
// set. Points live in a flat row-major array; the tree reorders an index
// permutation, never the data. Nodes are stored as a complete binary tree
// in array form (node i has children 2i+1 and 2i+2) with axis-aligned
// bounding boxes per node.
type nnIndex struct {
	data     []float64
	n        int
	dims     int
	leafSize int
	idxArray []int // tree-order position → original index
	nodes    []nnNode
	// boundsMin[node*dims + d] / boundsMax[node*dims + d] bound feature d
	// over the node's points.
	boundsMin []float64
	boundsMax []float64
}

type nnNode struct {
	idxStart, idxEnd int
	isLeaf           bool
}

// newNNIndex builds the index over flat row-major data with n points of
// dimensionality dims.
func newNNIndex(data []float64, n, dims, leafSize int) *nnIndex {
	if leafSize < 1 {
		leafSize = 1
	}

	dataCopy := make([]float64, len(data))
	copy(dataCopy, data)
	idxArray := make([]int, n)
	for i := range idxArray {
		idxArray[i] = i
	}

	maxNodes := nnMaxNodes(n, leafSize)
	t := &nnIndex{
		data:      dataCopy,
		n:         n,
		dims:      dims,
		leafSize:  leafSize,
		idxArray:  idxArray,
		nodes:     make([]nnNode, maxNodes),
		boundsMin: make([]float64, maxNodes*dims),
		boundsMax: make([]float64, maxNodes*dims),
	}
	if n > 0 {
		t.buildNode(0, 0, n)
	}
	return t
}

// nnMaxNodes returns an upper bound on the node count for n points and the
// given leaf size.
func nnMaxNodes(n, leafSize int) int {
	if n == 0 {
		return 1
	}
	leaves := (n + leafSize - 1) / leafSize
	depth := 0
	v := 1
	for v < leaves {
		v *= 2
		depth++
	}
	return (1 << (depth + 1)) - 1 + 2 // +2 safety margin for uneven splits
}

// buildNode recursively builds the tree for points in idxArray[start:end],
// splitting at the median of the widest-spread dimension.
func (t *nnIndex) buildNode(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, nnNode{})
		t.boundsMin = append(t.boundsMin, make([]float64, t.dims)...)
		t.boundsMax = append(t.boundsMax, make([]float64, t.dims)...)
	}

	t.computeNodeBounds(nodeID, start, end)

	count := end - start
	if count <= t.leafSize {
		t.nodes[nodeID] = nnNode{idxStart: start, idxEnd: end, isLeaf: true}
		return
	}

	splitDim := 0
	maxSpread := -1.0
	for d := 0; d < t.dims; d++ {
		spread := t.boundsMax[nodeID*t.dims+d] - t.boundsMin[nodeID*t.dims+d]
		if spread > maxSpread {
			maxSpread = spread
			splitDim = d
		}
	}

	t.sortByDimension(start, end, splitDim)
	mid := start + count/2

	t.nodes[nodeID] = nnNode{idxStart: start, idxEnd: end}
	t.buildNode(2*nodeID+1, start, mid)
	t.buildNode(2*nodeID+2, mid, end)
}

func (t *nnIndex) computeNodeBounds(nodeID, start, end int) {
	base := nodeID * t.dims
	for d := 0; d < t.dims; d++ {
		t.boundsMin[base+d] = math.Inf(1)
		t.boundsMax[base+d] = math.Inf(-1)
	}
	for i := start; i < end; i++ {
		ptIdx := t.idxArray[i]
		for d := 0; d < t.dims; d++ {
			v := t.data[ptIdx*t.dims+d]
			if v < t.boundsMin[base+d] {
				t.boundsMin[base+d] = v
			}
			if v > t.boundsMax[base+d] {
				t.boundsMax[base+d] = v
			}
		}
	}
}

func (t *nnIndex) sortByDimension(start, end, dim int) {
	sub := t.idxArray[start:end]
	dims := t.dims
	data := t.data
	sort.Slice(sub, func(i, j int) bool {
		return data[sub[i]*dims+dim] < data[sub[j]*dims+dim]
	})
}

// nearest returns, for each query row, the original index of its nearest
// point in the tree under Euclidean distance.
func (t *nnIndex) nearest(queries []float64, nq int) []int {
	result := make([]int, nq)
	for q := 0; q < nq; q++ {
		query := queries[q*t.dims : (q+1)*t.dims]
		best := -1
		bestDist := math.Inf(1)
		t.nnSearch(0, query, &best, &bestDist)
		result[q] = best
	}
	return result
}

// nnSearch descends nearer child first, pruning subtrees whose bounding
// box lower bound exceeds the current best squared distance.
func (t *nnIndex) nnSearch(nodeID int, query []float64, best *int, bestDist *float64) {
	if nodeID >= len(t.nodes) {
		return
	}
	node := t.nodes[nodeID]
	if node.idxStart == node.idxEnd && nodeID != 0 {
		return // uninitialized node
	}

	if node.isLeaf {
		for i := node.idxStart; i < node.idxEnd; i++ {
			ptIdx := t.idxArray[i]
			d := euclideanSumOfSquares(query, t.data[ptIdx*t.dims:(ptIdx+1)*t.dims])
			if d < *bestDist {
				*bestDist = d
				*best = ptIdx
			}
		}
		return
	}

	left := 2*nodeID + 1
	right := 2*nodeID + 2
	leftBound := t.minSqDistToNode(left, query)
	rightBound := t.minSqDistToNode(right, query)

	nearChild, farChild := left, right
	farBound := rightBound
	if rightBound < leftBound {
		nearChild, farChild = right, left
		farBound = leftBound
	}

	t.nnSearch(nearChild, query, best, bestDist)
	if farBound < *bestDist {
		t.nnSearch(farChild, query, best, bestDist)
	}
}

// minSqDistToNode returns the squared distance from a point to the node's
// bounding box (0 if the point is inside).
func (t *nnIndex) minSqDistToNode(nodeID int, point []float64) float64 {
	if nodeID >= len(t.nodes) {
		return math.Inf(1)
	}
	base := nodeID * t.dims
	var sq float64
	for d := 0; d < t.dims; d++ {
		lo := t.boundsMin[base+d]
		hi := t.boundsMax[base+d]
		var gap float64
		if point[d] < lo {
			gap = lo - point[d]
		} else if point[d] > hi {
			gap = point[d] - hi
		}
		sq += gap * gap
	}
	return sq
}
