package pool

import "sync"

var bufferPools sync.Map // map[int]*sync.Pool

// GetBuffer returns a byte slice of length size from the pool for that size.
//
// Receive buffers are sized by the session's buffer capacity, so only a handful of
// distinct sizes exist in a process. Return the buffer with PutBuffer.
func GetBuffer(size int) []byte {
	if size <= 0 {
		return nil
	}

	if p, ok := bufferPools.Load(size); ok {
		if bp, ok := p.(*sync.Pool).Get().(*[]byte); ok && len(*bp) == size {
			return *bp
		}
	}

	return make([]byte, size)
}

// PutBuffer returns buf to the pool for its length. buf cannot be accessed afterwards.
func PutBuffer(buf []byte) {
	size := len(buf)
	if size == 0 {
		return
	}

	p, _ := bufferPools.LoadOrStore(size, &sync.Pool{})
	p.(*sync.Pool).Put(&buf) //nolint:forcetypeassert
}
