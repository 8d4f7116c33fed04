package store

// Handle is a stable index of an object inside a Store arena.
// The zero Handle is Nil and never refers to an object.
type Handle int32

// Nil is the "no object" handle (list ends, empty lists).
const Nil Handle = 0

// Object is a cached object owned by a Store. Policies refer to it only
// through its Handle or its id, never by a retained pointer: the arena may
// grow and move objects on Insert.
type Object struct {
	ID   uint64
	Size int64

	// CreateTime and LastAccess are trace timestamps.
	CreateTime int64
	LastAccess int64
	// ExpireAt is the absolute expiration timestamp; 0 means no TTL.
	ExpireAt int64
	// Freq counts references since admission (1 on insert).
	Freq int64

	// Policy-specific metadata: list/segment membership for segmented
	// policies, heap slot for priority-based ones.
	Segment int
	Index   int

	// Intrusive list links.
	prev, next Handle
	linked     bool
}

// Expired reports whether the object is expired at timestamp now.
func (o *Object) Expired(now int64) bool {
	return o.ExpireAt != 0 && now >= o.ExpireAt
}

// Linked reports whether the object is threaded into a List.
func (o *Object) Linked() bool { return o.linked }
