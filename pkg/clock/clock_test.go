package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(30*time.Millisecond, func() { fired = append(fired, "b") })
	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "a") })
	late := c.AfterFunc(time.Second, func() { fired = append(fired, "late") })

	c.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(50*time.Millisecond), c.Now())
	assert.Equal(t, 1, c.Pending())

	assert.True(t, late.Stop())
	assert.False(t, late.Stop())
	c.Advance(time.Hour)
	assert.Equal(t, []string{"a", "b"}, fired)
}

func TestFake_ChainedTimers(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 5 {
			c.AfterFunc(10*time.Millisecond, tick)
		}
	}
	c.AfterFunc(10*time.Millisecond, tick)

	c.Advance(35 * time.Millisecond)
	assert.Equal(t, 3, count)
	c.Advance(time.Second)
	assert.Equal(t, 5, count)
}
