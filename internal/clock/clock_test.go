package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(start))
}

func TestMockClock_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(time.Minute)

	select {
	case <-ch:
		t.Fatal("channel fired before time advanced")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case <-ch:
		t.Fatal("channel fired before the full duration elapsed")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(time.Minute), got)
	default:
		t.Fatal("channel did not fire after the deadline passed")
	}
}

func TestMockClock_Set(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(time.Hour)

	next := start.Add(2 * time.Hour)
	c.Set(next)
	assert.Equal(t, next, c.Now())

	select {
	case <-ch:
	default:
		t.Fatal("moving the clock forward should fire expired waiters")
	}

	// Moving backwards just sets the time.
	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()

	before := time.Now()
	got := c.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}
