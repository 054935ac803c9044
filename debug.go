package pinetree

import (
	"fmt"
	"io"
	"strings"

	"pinetree/internal/base"
)

// Dump writes a breadth-first rendering of the tree to w, one page per
// line. Intended for debugging and tests; it pins one page at a time.
func (t *BTree[K]) Dump(w io.Writer) error {
	queue := []base.PageID{t.rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		frame, err := t.pool.Fetch(id)
		if err != nil {
			return err
		}
		page := asTreePage(frame)
		if page.isLeaf() {
			fmt.Fprintln(w, renderLeaf(asLeaf[K](frame)))
		} else {
			node := asInternal[K](frame)
			fmt.Fprintln(w, renderInternal(node))
			s := node.slots()
			for i := 0; i < node.size(); i++ {
				queue = append(queue, s[i].Val)
			}
		}
		t.pool.Unpin(id, false)
	}
	return nil
}

func renderLeaf[K any](p *leafPage[K]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "leaf %d parent=%d next=%d size=%d/%d keys=[",
		p.id(), p.parentID(), p.nextPageID(), p.size(), p.maxSize())
	for i := 0; i < p.size(); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v", p.keyAt(i))
	}
	b.WriteByte(']')
	return b.String()
}

func renderInternal[K any](p *internalPage[K]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "internal %d parent=%d size=%d/%d [",
		p.id(), p.parentID(), p.size(), p.maxSize())
	s := p.slots()
	for i := 0; i < p.size(); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == 0 {
			fmt.Fprintf(&b, "*:%d", s[i].Val)
		} else {
			fmt.Fprintf(&b, "%v:%d", s[i].Key, s[i].Val)
		}
	}
	b.WriteByte(']')
	return b.String()
}
