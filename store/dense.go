package store

// Dense keeps values in a contiguous slice with an id→position map, so
// that uniform random sampling is O(1). Removal swaps the last element
// into the vacated slot and fixes its map entry.
type Dense[T any] struct {
	ids  []uint64
	vals []T
	pos  map[uint64]int
}

// NewDense returns an empty Dense sized for about hint entries.
func NewDense[T any](hint int) *Dense[T] {
	return &Dense[T]{
		ids:  make([]uint64, 0, hint),
		vals: make([]T, 0, hint),
		pos:  make(map[uint64]int, hint),
	}
}

// Len returns the number of entries.
func (d *Dense[T]) Len() int { return len(d.ids) }

// Add appends v under id. It returns false if id is already present.
func (d *Dense[T]) Add(id uint64, v T) bool {
	if _, ok := d.pos[id]; ok {
		return false
	}
	d.pos[id] = len(d.ids)
	d.ids = append(d.ids, id)
	d.vals = append(d.vals, v)
	return true
}

// Get returns a pointer to id's value; valid until the next Add or Remove.
func (d *Dense[T]) Get(id uint64) (*T, bool) {
	i, ok := d.pos[id]
	if !ok {
		return nil, false
	}
	return &d.vals[i], true
}

// At returns the id and value at position i.
func (d *Dense[T]) At(i int) (uint64, *T) { return d.ids[i], &d.vals[i] }

// Remove swap-removes id. It returns false if id is absent.
func (d *Dense[T]) Remove(id uint64) bool {
	i, ok := d.pos[id]
	if !ok {
		return false
	}
	last := len(d.ids) - 1
	if i != last {
		moved := d.ids[last]
		d.ids[i] = moved
		d.vals[i] = d.vals[last]
		d.pos[moved] = i
	}
	var zero T
	d.vals[last] = zero
	d.ids = d.ids[:last]
	d.vals = d.vals[:last]
	delete(d.pos, id)
	return true
}
