package s2store

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestPushbackCursor(t *testing.T) {
	ranges := []Range{
		{Start: 1 << 10, End: 2 << 10},
		{Start: 3 << 10, End: 4 << 10},
	}
	c := newPushbackCursor(&sliceSource{ranges: ranges})

	assert.Assert(t, c.hasNext())

	r, ok := c.next()
	assert.Assert(t, ok)
	assert.Equal(t, ranges[0], r)

	// A pushed back range is returned before the source resumes.
	c.pushback(Range{Start: 5, End: 6})
	assert.Assert(t, c.hasNext())
	r, ok = c.next()
	assert.Assert(t, ok)
	assert.Equal(t, Range{Start: 5, End: 6}, r)

	r, ok = c.next()
	assert.Assert(t, ok)
	assert.Equal(t, ranges[1], r)

	assert.Assert(t, !c.hasNext())
	_, ok = c.next()
	assert.Assert(t, !ok)

	// hasNext buffers the peeked range rather than dropping it.
	c = newPushbackCursor(&sliceSource{ranges: ranges[:1]})
	assert.Assert(t, c.hasNext())
	assert.Assert(t, c.hasNext())
	r, ok = c.next()
	assert.Assert(t, ok)
	assert.Equal(t, ranges[0], r)
	assert.Assert(t, !c.hasNext())
}

func TestPushbackCursorSingleSlot(t *testing.T) {
	c := newPushbackCursor(&sliceSource{})
	c.pushback(Range{Start: 1, End: 2})

	defer func() {
		assert.Assert(t, recover() != nil)
	}()
	c.pushback(Range{Start: 3, End: 4})
}
