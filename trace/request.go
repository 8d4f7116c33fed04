// Package trace defines the request stream consumed by the simulator:
// the Request value, the restartable Reader abstraction and a couple of
// in-memory readers (a slice replay and a seeded Zipf workload).
package trace

import "github.com/IvanBrykalov/cachesim/internal/util"

// Op is the request operation.
type Op uint8

const (
	// OpGet reads an object; a miss admits it.
	OpGet Op = iota
	// OpSet writes an object; handled like a read by the simulator.
	OpSet
	// OpDelete removes an object if it is cached. Not counted as a request.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Request is one decoded trace record.
type Request struct {
	ID        uint64
	Size      uint32
	Timestamp int64
	TTL       int32 // 0 = no expiration
	Op        Op

	// Valid is cleared by Reader.Next at end of stream.
	Valid bool
}

// Reader produces a finite, restartable sequence of requests.
// A Reader is not safe for concurrent use; workers take a Clone each.
type Reader interface {
	// Next fills r with the next request. At end of stream it sets
	// r.Valid to false and leaves the rest of r unspecified.
	Next(r *Request)
	// Reset rewinds the reader to the first request.
	Reset()
	// Clone returns an independent reader positioned at the start.
	Clone() Reader
}

// KeyOf normalizes a string object id to the integer key space.
func KeyOf(id string) uint64 { return util.Hash64(id) }

// Count drains r, returns the number of requests and rewinds it.
func Count(r Reader) int {
	r.Reset()
	var (
		req Request
		n   int
	)
	for r.Next(&req); req.Valid; r.Next(&req) {
		n++
	}
	r.Reset()
	return n
}
