package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtGivenTime(t *testing.T) {
	clock := NewFakeClock(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(0)

	assert.Equal(t, 10*time.Millisecond, clock.Advance(10*time.Millisecond))
	assert.Equal(t, 15*time.Millisecond, clock.Advance(5*time.Millisecond))
	assert.Equal(t, 15*time.Millisecond, clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(0)
	clock.Set(time.Second)
	assert.Equal(t, time.Second, clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock(0)
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*time.Millisecond, clock.Now())
}

func TestLogBuffer_CountsWarnings(t *testing.T) {
	logger, logs := NewLogger()

	logger.Warn("first")
	logger.Info("info")
	logger.Warn("second")

	assert.Equal(t, 2, logs.Warnings())
	assert.Equal(t, 1, logs.Count("second"))
}
