package trace

// SliceReader replays an in-memory request slice. Clones share the slice,
// which must not be modified while readers are in use.
type SliceReader struct {
	reqs []Request
	pos  int
}

// NewSliceReader returns a reader over reqs.
func NewSliceReader(reqs []Request) *SliceReader {
	return &SliceReader{reqs: reqs}
}

// FromIDs builds a reader of unit-size gets with timestamps 0..len(ids)-1.
func FromIDs(ids ...uint64) *SliceReader {
	reqs := make([]Request, len(ids))
	for i, id := range ids {
		reqs[i] = Request{ID: id, Size: 1, Timestamp: int64(i), Op: OpGet, Valid: true}
	}
	return NewSliceReader(reqs)
}

func (s *SliceReader) Next(r *Request) {
	if s.pos >= len(s.reqs) {
		r.Valid = false
		return
	}
	*r = s.reqs[s.pos]
	r.Valid = true
	s.pos++
}

func (s *SliceReader) Reset() { s.pos = 0 }

func (s *SliceReader) Clone() Reader { return &SliceReader{reqs: s.reqs} }

// Len returns the total number of requests.
func (s *SliceReader) Len() int { return len(s.reqs) }
