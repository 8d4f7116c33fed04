package profiler

// node is a splay tree node keyed by virtual time. size counts the nodes
// of its subtree.
type node struct {
	key         int64
	left, right *node
	size        int
}

func sizeOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *node) fix() { n.size = 1 + sizeOf(n.left) + sizeOf(n.right) }

// tree is a size-augmented splay tree. Keys are unique.
type tree struct {
	root *node
	free *node // recycled nodes, chained through right
}

// splay brings the node with key (or the last node on its search path)
// to the root, top-down, keeping subtree sizes exact.
func splay(t *node, key int64) *node {
	if t == nil {
		return nil
	}
	// header.right collects the left tree, header.left the right tree.
	var header node
	l, r := &header, &header
	lsize, rsize := 0, 0
	for {
		if key < t.key {
			if t.left == nil {
				break
			}
			if key < t.left.key {
				y := t.left // rotate right
				t.left = y.right
				y.right = t
				t.fix()
				t = y
				if t.left == nil {
					break
				}
			}
			r.left = t // link right
			r = t
			t = t.left
			rsize += 1 + sizeOf(r.right)
		} else if key > t.key {
			if t.right == nil {
				break
			}
			if key > t.right.key {
				y := t.right // rotate left
				t.right = y.left
				y.left = t
				t.fix()
				t = y
				if t.right == nil {
					break
				}
			}
			l.right = t // link left
			l = t
			t = t.right
			lsize += 1 + sizeOf(l.left)
		} else {
			break
		}
	}
	lsize += sizeOf(t.left)
	rsize += sizeOf(t.right)
	t.size = lsize + rsize + 1

	l.right, r.left = nil, nil
	// Sizes along the spines of the two side trees are stale: the spine
	// nodes lost the subtrees that were split off below them.
	for y := header.right; y != nil; y = y.right {
		y.size = lsize
		lsize -= 1 + sizeOf(y.left)
	}
	for y := header.left; y != nil; y = y.left {
		y.size = rsize
		rsize -= 1 + sizeOf(y.right)
	}

	l.right = t.left
	r.left = t.right
	t.left = header.right
	t.right = header.left
	return t
}

func (t *tree) len() int { return sizeOf(t.root) }

func (t *tree) alloc(key int64) *node {
	n := t.free
	if n == nil {
		return &node{key: key, size: 1}
	}
	t.free = n.right
	*n = node{key: key, size: 1}
	return n
}

// insert adds key, which must not be present.
func (t *tree) insert(key int64) {
	n := t.alloc(key)
	if t.root == nil {
		t.root = n
		return
	}
	root := splay(t.root, key)
	if key < root.key {
		n.left, n.right = root.left, root
		root.left = nil
	} else {
		n.right, n.left = root.right, root
		root.right = nil
	}
	root.fix()
	n.fix()
	t.root = n
}

// remove deletes key and reports whether it was present.
func (t *tree) remove(key int64) bool {
	root := splay(t.root, key)
	if root == nil || root.key != key {
		t.root = root
		return false
	}
	if root.left == nil {
		t.root = root.right
	} else {
		x := splay(root.left, key)
		x.right = root.right
		x.fix()
		t.root = x
	}
	root.left, root.right = nil, t.free
	t.free = root
	return true
}

// greater returns how many keys are strictly greater than key, which must
// be present.
func (t *tree) greater(key int64) int {
	t.root = splay(t.root, key)
	return sizeOf(t.root.right)
}
