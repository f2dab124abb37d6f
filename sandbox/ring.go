// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "sync"

// DefaultRingCapacity is the default output ring capacity in bytes.
// 256 KB is far more than a model-facing turn will ever surface, but
// keeps recent output available for denial diagnostics and session
// polling without unbounded growth.
const DefaultRingCapacity = 256 * 1024

// Ring is a fixed-capacity circular buffer for captured process
// output. When full, new writes overwrite the oldest bytes, so the
// buffer always holds the most recent output. A total byte counter
// lets callers detect that early output was dropped, and a notify
// channel lets a poller sleep until new output arrives.
//
// All methods are safe for concurrent use.
type Ring struct {
	mutex sync.Mutex
	data  []byte
	// writePosition is the next write index within data.
	writePosition int
	// totalWritten counts every byte ever written, including bytes
	// since overwritten.
	totalWritten uint64
	notify       chan struct{}
}

// NewRing creates a ring with the given capacity in bytes. Use
// DefaultRingCapacity for the standard size.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{
		data:   make([]byte, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Write appends bytes, overwriting the oldest data when full, and
// signals the notify channel. It never fails; the error return
// satisfies io.Writer.
func (ring *Ring) Write(data []byte) (int, error) {
	ring.mutex.Lock()
	for offset := 0; offset < len(data); {
		available := len(ring.data) - ring.writePosition
		copyLength := len(data) - offset
		if copyLength > available {
			copyLength = available
		}
		copy(ring.data[ring.writePosition:ring.writePosition+copyLength], data[offset:offset+copyLength])
		ring.writePosition = (ring.writePosition + copyLength) % len(ring.data)
		offset += copyLength
	}
	ring.totalWritten += uint64(len(data))
	ring.mutex.Unlock()

	select {
	case ring.notify <- struct{}{}:
	default:
	}
	return len(data), nil
}

// Bytes returns a copy of the buffer's current contents, oldest
// first.
func (ring *Ring) Bytes() []byte {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()

	stored := ring.totalWritten
	if stored > uint64(len(ring.data)) {
		stored = uint64(len(ring.data))
	}
	if stored == 0 {
		return nil
	}

	result := make([]byte, stored)
	start := (ring.writePosition - int(stored)) % len(ring.data)
	if start < 0 {
		start += len(ring.data)
	}
	for copied := 0; copied < int(stored); {
		available := len(ring.data) - start
		copyLength := int(stored) - copied
		if copyLength > available {
			copyLength = available
		}
		copy(result[copied:copied+copyLength], ring.data[start:start+copyLength])
		start = (start + copyLength) % len(ring.data)
		copied += copyLength
	}
	return result
}

// ReadFrom returns a copy of all bytes written since the given
// offset (a previous TotalWritten value). If the offset has already
// been overwritten, the oldest retained bytes are returned instead;
// the caller can detect the gap by comparing offsets.
func (ring *Ring) ReadFrom(offset uint64) []byte {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()

	if offset >= ring.totalWritten {
		return nil
	}
	stored := ring.totalWritten
	if stored > uint64(len(ring.data)) {
		stored = uint64(len(ring.data))
	}
	oldest := ring.totalWritten - stored
	if offset < oldest {
		offset = oldest
	}
	length := ring.totalWritten - offset

	result := make([]byte, length)
	start := (ring.writePosition - int(ring.totalWritten-offset)) % len(ring.data)
	if start < 0 {
		start += len(ring.data)
	}
	for copied := 0; copied < int(length); {
		available := len(ring.data) - start
		copyLength := int(length) - copied
		if copyLength > available {
			copyLength = available
		}
		copy(result[copied:copied+copyLength], ring.data[start:start+copyLength])
		start = (start + copyLength) % len(ring.data)
		copied += copyLength
	}
	return result
}

// TotalWritten returns the total number of bytes ever written,
// including bytes since overwritten.
func (ring *Ring) TotalWritten() uint64 {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()
	return ring.totalWritten
}

// Dropped reports whether the ring has overwritten early output.
func (ring *Ring) Dropped() bool {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()
	return ring.totalWritten > uint64(len(ring.data))
}

// Notify returns a channel that receives after new output is
// written. The channel has capacity one: a receive means "something
// arrived since you last looked", not one signal per write.
func (ring *Ring) Notify() <-chan struct{} {
	return ring.notify
}
