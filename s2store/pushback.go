package s2store

// RangeSource is a forward-only producer of sorted, non-overlapping ranges.
//
// ok=false indicates the source is exhausted.
type RangeSource interface {
	Next() (r Range, ok bool)
}

// sliceSource adapts an in-memory slice to a RangeSource.
type sliceSource struct {
	ranges []Range
	pos    int
}

func (s *sliceSource) Next() (Range, bool) {
	if s.pos >= len(s.ranges) {
		return Range{}, false
	}
	r := s.ranges[s.pos]
	s.pos++
	return r, true
}

// pushbackCursor wraps a RangeSource with a single buffered put-back slot, so
// a consumer can peek a range, carve off the part it wants, and requeue the
// remainder for the next pass.
type pushbackCursor struct {
	src      RangeSource
	buffered Range
	hasBuf   bool
}

func newPushbackCursor(src RangeSource) *pushbackCursor {
	return &pushbackCursor{src: src}
}

func (c *pushbackCursor) next() (Range, bool) {
	if c.hasBuf {
		c.hasBuf = false
		return c.buffered, true
	}
	return c.src.Next()
}

// pushback requeues r ahead of the source. The slot holds one range; pushing
// onto an occupied slot is a programming error.
func (c *pushbackCursor) pushback(r Range) {
	if c.hasBuf {
		panic("s2store: pushback slot occupied")
	}
	c.buffered = r
	c.hasBuf = true
}

func (c *pushbackCursor) hasNext() bool {
	if c.hasBuf {
		return true
	}
	r, ok := c.src.Next()
	if !ok {
		return false
	}
	c.pushback(r)
	return true
}
