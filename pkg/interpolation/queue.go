package interpolation

import "container/heap"

// node is a queued search position
type node struct {
	index int
	dist  float64
	seq   uint64
}

// nodeQueue orders search positions by distance to the target.
// Ties go to the position queued first, so searches are deterministic.
type nodeQueue struct {
	nodes []node
	seq   uint64
}

// Len implements heap.Interface
func (q *nodeQueue) Len() int { return len(q.nodes) }

// Less implements heap.Interface
func (q *nodeQueue) Less(i, j int) bool {
	a, b := q.nodes[i], q.nodes[j]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.seq < b.seq
}

// Swap implements heap.Interface
func (q *nodeQueue) Swap(i, j int) { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }

// Push implements heap.Interface
func (q *nodeQueue) Push(x any) { q.nodes = append(q.nodes, x.(node)) }

// Pop implements heap.Interface
func (q *nodeQueue) Pop() any {
	old := q.nodes
	n := len(old)
	item := old[n-1]
	q.nodes = old[:n-1]
	return item
}

// push queues index at dist
func (q *nodeQueue) push(index int, dist float64) {
	heap.Push(q, node{index: index, dist: dist, seq: q.seq})
	q.seq++
}

// pop removes the closest queued position
func (q *nodeQueue) pop() node {
	return heap.Pop(q).(node)
}

// reset empties the queue and keeps its storage
func (q *nodeQueue) reset() {
	q.nodes = q.nodes[:0]
	q.seq = 0
}
