package orderbook

import (
	"cmp"
	"fmt"
)

type color uint8

const (
	red   color = 0
	black color = 1
)

type node[K cmp.Ordered, V any] struct {
	key    K
	value  V
	color  color
	left   *node[K, V]
	right  *node[K, V]
	parent *node[K, V]
}

// Index is an ordered key/value map used for both the price→bucket
// trees and the orderId→order index. Matching needs predecessor and
// successor queries at every insert of a new price, so a hash map is
// not an option here.
type Index[K cmp.Ordered, V any] struct {
	root *node[K, V]
	nil  *node[K, V] // sentinel (black)
	size int
}

// NewIndex constructs an empty tree with a black sentinel.
func NewIndex[K cmp.Ordered, V any]() *Index[K, V] {
	nilNode := &node[K, V]{color: black}
	return &Index[K, V]{
		root: nilNode,
		nil:  nilNode,
	}
}

// Size counts entries up to limit.
func (t *Index[K, V]) Size(limit int) int {
	if t.size > limit {
		return limit
	}
	return t.size
}

// Get returns the value stored under key, or the zero value.
func (t *Index[K, V]) Get(key K) V {
	n := t.root
	for n != t.nil {
		if key < n.key {
			n = n.left
		} else if key > n.key {
			n = n.right
		} else {
			return n.value
		}
	}
	var zero V
	return zero
}

// Put inserts or replaces the value under key.
func (t *Index[K, V]) Put(key K, value V) {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if key < x.key {
			x = x.left
		} else if key > x.key {
			x = x.right
		} else {
			x.value = value
			return
		}
	}

	z := &node[K, V]{
		key:    key,
		value:  value,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: y,
	}

	if y == t.nil {
		t.root = z
	} else if z.key < y.key {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++
}

// Remove deletes the entry under key, reporting whether it existed.
func (t *Index[K, V]) Remove(key K) bool {
	z := t.searchNode(key)
	if z == t.nil {
		return false
	}
	t.deleteNode(z)
	t.size--
	return true
}

// LowerValue returns the value under the greatest key strictly below
// key, or the zero value.
func (t *Index[K, V]) LowerValue(key K) V {
	n := t.root
	pred := t.nil
	for n != t.nil {
		if key > n.key {
			pred = n
			n = n.right
		} else {
			n = n.left
		}
	}
	if pred == t.nil {
		var zero V
		return zero
	}
	return pred.value
}

// HigherValue returns the value under the least key strictly above
// key, or the zero value.
func (t *Index[K, V]) HigherValue(key K) V {
	n := t.root
	succ := t.nil
	for n != t.nil {
		if key < n.key {
			succ = n
			n = n.left
		} else {
			n = n.right
		}
	}
	if succ == t.nil {
		var zero V
		return zero
	}
	return succ.value
}

// Ascend visits entries in key order, at most limit of them, stopping
// early when fn returns false.
func (t *Index[K, V]) Ascend(limit int, fn func(K, V) bool) {
	count := 0
	for n := t.minNode(t.root); n != t.nil; n = t.next(n) {
		if count >= limit || !fn(n.key, n.value) {
			return
		}
		count++
	}
}

// Descend visits entries in reverse key order, at most limit of them,
// stopping early when fn returns false.
func (t *Index[K, V]) Descend(limit int, fn func(K, V) bool) {
	count := 0
	for n := t.maxNode(t.root); n != t.nil; n = t.prev(n) {
		if count >= limit || !fn(n.key, n.value) {
			return
		}
		count++
	}
}

/******************** Internal helpers ********************/

func (t *Index[K, V]) searchNode(key K) *node[K, V] {
	n := t.root
	for n != t.nil {
		if key < n.key {
			n = n.left
		} else if key > n.key {
			n = n.right
		} else {
			return n
		}
	}
	return t.nil
}

func (t *Index[K, V]) minNode(n *node[K, V]) *node[K, V] {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *Index[K, V]) maxNode(n *node[K, V]) *node[K, V] {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *Index[K, V]) next(n *node[K, V]) *node[K, V] {
	if n == t.nil {
		return t.nil
	}
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *Index[K, V]) prev(n *node[K, V]) *node[K, V] {
	if n == t.nil {
		return t.nil
	}
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *Index[K, V]) leftRotate(x *node[K, V]) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Index[K, V]) rightRotate(y *node[K, V]) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *Index[K, V]) insertFixup(z *node[K, V]) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *Index[K, V]) transplant(u, v *node[K, V]) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *Index[K, V]) deleteNode(z *node[K, V]) {
	y := z
	yOrigColor := y.color
	var x *node[K, V]

	if z.left == t.nil {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nil {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *Index[K, V]) deleteFixup(x *node[K, V]) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}

// Validate checks the search-tree ordering and red-black shape
// properties. It is only called from the book's state validation.
func (t *Index[K, V]) Validate() error {
	if t.root.color != black {
		return fmt.Errorf("index: root is not black")
	}
	_, err := t.validateNode(t.root)
	return err
}

func (t *Index[K, V]) validateNode(n *node[K, V]) (int, error) {
	if n == t.nil {
		return 1, nil
	}
	if n.color == red && (n.left.color == red || n.right.color == red) {
		return 0, fmt.Errorf("index: red node %v has red child", n.key)
	}
	if n.left != t.nil && n.left.key >= n.key {
		return 0, fmt.Errorf("index: left child %v >= parent %v", n.left.key, n.key)
	}
	if n.right != t.nil && n.right.key <= n.key {
		return 0, fmt.Errorf("index: right child %v <= parent %v", n.right.key, n.key)
	}
	lh, err := t.validateNode(n.left)
	if err != nil {
		return 0, err
	}
	rh, err := t.validateNode(n.right)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("index: black height mismatch at %v (%d vs %d)", n.key, lh, rh)
	}
	if n.color == black {
		lh++
	}
	return lh, nil
}
