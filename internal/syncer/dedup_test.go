package syncer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSetRejectsDuplicates(t *testing.T) {
	s := newSeenSet(4)

	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.False(t, s.Add("b"))
}

func TestSeenSetAgesOutOldest(t *testing.T) {
	s := newSeenSet(2)

	s.Add("a")
	s.Add("b")
	s.Add("c")

	// "a" fell out of the window, so its id counts as new again.
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("c"))
}

func TestSeenSetDefaultLimit(t *testing.T) {
	s := newSeenSet(0)
	for i := 0; i < 1024; i++ {
		assert.True(t, s.Add(fmt.Sprintf("ev-%d", i)))
	}
	assert.False(t, s.Add("ev-1023"))
	assert.True(t, s.Add("ev-overflow"))
	// The oldest id aged out once the window overflowed.
	assert.True(t, s.Add("ev-0"))
}
