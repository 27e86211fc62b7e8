// Package pool provides pooled byte buffers for the hot paths that build
// binary output: block payload assembly and whole-document byte assembly.
// Reusing buffers avoids a fresh allocation per block/document on every
// write or update.
package pool

import (
	"io"
	"sync"
)

// Size tiers for the two buffer pools this package exposes. Block payloads
// (one array's worth of compressed bytes) are typically small; a full
// document byte buffer (header + YAML + all blocks) is sized closer to a
// whole file.
const (
	BlockBufferDefaultSize  = 1024 * 16       // 16KiB
	BlockBufferMaxThreshold = 1024 * 128      // 128KiB
	DocBufferDefaultSize    = 1024 * 1024     // 1MiB
	DocBufferMaxThreshold   = 1024 * 1024 * 8 // 8MiB
)

// ByteBuffer is a growable byte slice wrapper sized for reuse via sync.Pool.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the given default capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Reset empties the buffer while retaining its capacity.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// Len returns the buffer's current length.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// Cap returns the buffer's current capacity.
func (bb *ByteBuffer) Cap() int { return cap(bb.B) }

// MustWrite appends data, growing the buffer if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Slice returns buf[start:end]; it panics on out-of-bounds indices, same as
// a raw slice expression would.
func (bb *ByteBuffer) Slice(start, end int) []byte {
	if start < 0 || end < start || end > cap(bb.B) {
		panic("pool: Slice: invalid indices")
	}

	return bb.B[start:end]
}

// SetLength sets the buffer's logical length to n without reallocating.
func (bb *ByteBuffer) SetLength(n int) {
	if n < 0 || n > cap(bb.B) {
		panic("pool: SetLength: invalid length")
	}
	bb.B = bb.B[:n]
}

// Extend grows the logical length by n bytes if capacity allows, reporting
// whether it could.
func (bb *ByteBuffer) Extend(n int) bool {
	curLen := len(bb.B)
	if cap(bb.B)-curLen < n {
		return false
	}

	bb.B = bb.B[:curLen+n]

	return true
}

// ExtendOrGrow extends the buffer by n bytes, reallocating if needed.
func (bb *ByteBuffer) ExtendOrGrow(n int) {
	if bb.Extend(n) {
		return
	}

	start := len(bb.B)
	bb.Grow(n)
	bb.B = bb.B[:start+n]
}

// Grow ensures the buffer can hold requiredBytes more bytes without a
// further reallocation. Small buffers grow by a fixed increment to cut
// down on reallocations while still small; larger buffers grow by a
// quarter of their current capacity to bound wasted memory.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return
	}

	growBy := BlockBufferDefaultSize
	if cap(bb.B) > 4*BlockBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}

	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write implements io.Writer.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// WriteTo implements io.WriterTo.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ByteBufferPool pools ByteBuffers of a given default size, discarding
// buffers that grew past maxThreshold to avoid pinning large allocations.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool whose buffers start at defaultSize and
// are discarded (rather than recycled) once they exceed maxThreshold.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool, discarding it if it grew too large.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	blockDefaultPool = NewByteBufferPool(BlockBufferDefaultSize, BlockBufferMaxThreshold)
	docDefaultPool   = NewByteBufferPool(DocBufferDefaultSize, DocBufferMaxThreshold)
)

// GetBlockBuffer retrieves a ByteBuffer from the default block-payload pool.
func GetBlockBuffer() *ByteBuffer { return blockDefaultPool.Get() }

// PutBlockBuffer returns a ByteBuffer to the default block-payload pool.
func PutBlockBuffer(bb *ByteBuffer) { blockDefaultPool.Put(bb) }

// GetDocBuffer retrieves a ByteBuffer from the default whole-document pool.
func GetDocBuffer() *ByteBuffer { return docDefaultPool.Get() }

// PutDocBuffer returns a ByteBuffer to the default whole-document pool.
func PutDocBuffer(bb *ByteBuffer) { docDefaultPool.Put(bb) }
