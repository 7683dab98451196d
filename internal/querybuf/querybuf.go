// Package querybuf sizes buffers for OS queries whose output length is not
// known up front. Grow retries with doubled capacity until the query fits;
// Probe asks the query for the exact size first.
package querybuf

import (
	"errors"
	"fmt"
	"math"

	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/rs/zerolog"
	"golang.org/x/exp/constraints"
)

const (
	// Floor is the first capacity Grow tries.
	Floor = 1024

	// TokenLimit is the largest token information block Probe accepts.
	TokenLimit = 64 * 1024
)

// GrowFunc fills buf and returns the number of content bytes written. When
// buf is too small it returns an error matching oserr.ErrBufferTooSmall.
type GrowFunc[S constraints.Unsigned] func(buf []byte) (S, error)

// ProbeFunc fills buf and returns the number of bytes written. When buf is
// too small (including empty) it returns the required size and an error
// matching oserr.ErrBufferTooSmall.
type ProbeFunc[S constraints.Unsigned] func(buf []byte) (S, error)

// Allocator hands out query buffers and takes them back.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(buf []byte)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, oserr.ErrInsufficientResources
	}
	return make([]byte, n), nil
}

// Free is a no-op, the collector reclaims the slice.
func (heapAllocator) Free([]byte) {}

type options struct {
	alloc Allocator
	log   zerolog.Logger
}

// Option configures Grow and Probe.
type Option func(*options)

// WithAllocator replaces the default heap allocator.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}

// WithLogger logs each resize at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func newOptions(opts []Option) options {
	o := options{
		alloc: heapAllocator{},
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Buffer is a query result. It belongs to the caller until Release.
type Buffer struct {
	buf   []byte
	n     int
	alloc Allocator
}

// Bytes returns the content written by the query.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Release returns the buffer to its allocator. It is safe to call twice.
func (b *Buffer) Release() {
	if b == nil || b.buf == nil {
		return
	}
	b.alloc.Free(b.buf)
	b.buf = nil
	b.n = 0
}

// Grow calls query with a Floor sized buffer, doubling the capacity after
// every "buffer too small" answer. A failed buffer is freed before the next
// one is allocated. There is no attempt limit; growth stops only on success,
// on any other error, or when the allocator gives up.
func Grow[S constraints.Unsigned](query GrowFunc[S], opts ...Option) (*Buffer, error) {
	o := newOptions(opts)

	for size := Floor; ; size *= 2 {
		buf, err := o.alloc.Alloc(size)
		if err != nil {
			return nil, allocError(size, err)
		}

		n, err := query(buf)
		if err == nil {
			if uint64(n) > uint64(len(buf)) {
				o.alloc.Free(buf)
				return nil, fmt.Errorf("querybuf: query reported %d bytes in a %d byte buffer: %w",
					uint64(n), len(buf), oserr.ErrInvalidParameter)
			}
			return &Buffer{buf: buf, n: int(n), alloc: o.alloc}, nil
		}

		o.alloc.Free(buf)

		if !errors.Is(err, oserr.ErrBufferTooSmall) {
			return nil, err
		}
		if size > math.MaxInt/2 {
			return nil, allocError(size, errors.New("capacity overflow"))
		}

		o.log.Debug().Int("capacity", size).Int("next", size*2).Msg("query buffer too small")
	}
}

// Probe calls query with an empty buffer to learn the required size,
// allocates exactly that much and calls query again. A probe that succeeds,
// or asks for more than limit bytes, is an error.
func Probe[S constraints.Unsigned](query ProbeFunc[S], limit S, opts ...Option) (*Buffer, error) {
	o := newOptions(opts)

	required, err := query(nil)
	if err == nil {
		return nil, fmt.Errorf("querybuf: probe with empty buffer succeeded: %w", oserr.ErrInvalidParameter)
	}
	if !errors.Is(err, oserr.ErrBufferTooSmall) {
		return nil, err
	}
	if required == 0 {
		return nil, fmt.Errorf("querybuf: probe reported zero required size: %w", oserr.ErrInvalidParameter)
	}
	if required > limit {
		return nil, fmt.Errorf("querybuf: required size %d exceeds limit %d: %w",
			uint64(required), uint64(limit), oserr.ErrInsufficientResources)
	}

	size := int(required)
	o.log.Debug().Int("size", size).Msg("query buffer probed")

	buf, err := o.alloc.Alloc(size)
	if err != nil {
		return nil, allocError(size, err)
	}

	n, err := query(buf)
	if err != nil {
		o.alloc.Free(buf)
		return nil, err
	}

	return &Buffer{buf: buf, n: min(int(n), len(buf)), alloc: o.alloc}, nil
}

func allocError(size int, err error) error {
	if errors.Is(err, oserr.ErrInsufficientResources) {
		return fmt.Errorf("querybuf: allocate %d bytes: %w", size, err)
	}
	return fmt.Errorf("querybuf: allocate %d bytes: %v: %w", size, err, oserr.ErrInsufficientResources)
}
