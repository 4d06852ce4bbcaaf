package listener

// bucketHeap is a stdlib container/heap min-heap of deadline bucket
// timestamps (unix milliseconds). No third-party ordered-map or priority
// queue surfaced in the example pack, so this leans on the standard
// library's heap interface the way any idiomatic Go scheduler would.
type bucketHeap []int64

func (h bucketHeap) Len() int            { return len(h) }
func (h bucketHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h bucketHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bucketHeap) Push(x interface{}) { *h = append(*h, x.(int64)) }
func (h *bucketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
