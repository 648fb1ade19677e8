package outcome

import "sync/atomic"

// GenerationCounter is the process-wide monotonically increasing generation
// stamp. Every call to Spawn bumps it and records the result as that worker's
// own generation; any worker whose generation falls behind the counter's
// current value is superseded and must abort at its next check point.
type GenerationCounter struct {
	n atomic.Uint64
}

// NewGenerationCounter returns a counter starting at 0.
func NewGenerationCounter() *GenerationCounter {
	return &GenerationCounter{}
}

// Next atomically increments the counter and returns the new value.
func (g *GenerationCounter) Next() uint64 {
	return g.n.Add(1)
}

// Load returns the counter's current value without mutating it.
func (g *GenerationCounter) Load() uint64 {
	return g.n.Load()
}
