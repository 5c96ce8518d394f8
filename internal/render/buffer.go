package render

import "sync"

// Buffer is an in-memory Region. Hosts use it as their model and read it
// back when drawing.
type Buffer struct {
	mu      sync.RWMutex
	blocks  []Block
	visible bool
	version uint64
}

var _ Region = (*Buffer)(nil)

func (b *Buffer) Append(blk Block) {
	b.mu.Lock()
	b.blocks = append(b.blocks, blk)
	b.version++
	b.mu.Unlock()
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	b.blocks = nil
	b.version++
	b.mu.Unlock()
}

func (b *Buffer) Reveal() {
	b.mu.Lock()
	b.visible = true
	b.mu.Unlock()
}

// Blocks returns a copy of the children in display order.
func (b *Buffer) Blocks() []Block {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Block, len(b.blocks))
	copy(out, b.blocks)
	return out
}

// Visible reports whether Reveal has been called.
func (b *Buffer) Visible() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.visible
}

// Version increases on every mutation so hosts can skip redundant redraws.
func (b *Buffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// ScrollCounter is a Page that only counts scroll requests.
type ScrollCounter struct {
	mu sync.Mutex
	n  int
}

func (s *ScrollCounter) ScrollToBottom() {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
}

func (s *ScrollCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
