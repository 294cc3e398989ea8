package compute

import "sync"

// BufferPool recycles float32 buffers of one length.
type BufferPool struct {
	pool sync.Pool
	size int
}

func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]float32, size)
				return &b
			},
		},
	}
}

func (p *BufferPool) Size() int { return p.size }

func (p *BufferPool) Get() []float32 {
	return *p.pool.Get().(*[]float32)
}

// Put returns b to the pool. Buffers of another length are dropped.
func (p *BufferPool) Put(b []float32) {
	if len(b) != p.size {
		return
	}
	clear(b)
	p.pool.Put(&b)
}

func (p *BufferPool) GetAndCopy(src []float32) []float32 {
	dst := p.Get()
	copy(dst, src)
	return dst
}
