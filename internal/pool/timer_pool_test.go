package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Stop Active Timer", func(t *testing.T) {
		timer1 := GetTimer(1000 * time.Millisecond)
		assert.NotNil(timer1)

		time.Sleep(50 * time.Millisecond) // Make timer1 active
		assert.True(timer1.Stop())        // stop timer1

		timer2 := GetTimer(500 * time.Millisecond)
		assert.NotNil(timer2)

		assert.NotSame(timer1, timer2)

		select {
		case <-timer1.C:
			t.Error("timer1 should stopped and not fire")
		case <-timer2.C:
			// timer2 should fire
		}
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(100 * time.Millisecond)
		assert.NotNil(timer1)

		time.Sleep(50 * time.Millisecond) // Make timer1 active

		PutTimer(timer1) // Put the active timer back into the pool

		begin := time.Now()
		timer2 := GetTimer(300 * time.Millisecond)
		assert.NotNil(t, timer2)

		select {
		case tt := <-timer2.C: // timer2 should fire after 300ms
			if tt.Sub(begin) < 270*time.Millisecond {
				t.Error("timer2 should fire after 300ms")
			}
		case <-time.After(330 * time.Millisecond):
			t.Error("timer2 should have fired within 330ms")
		}
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(10 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	t.Run("Elapsed", func(t *testing.T) {
		begin := time.Now()
		require.NoError(t, Sleep(context.Background(), 30*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(begin), 30*time.Millisecond)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		begin := time.Now()
		err := Sleep(ctx, 5*time.Second)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(begin), time.Second)
	})

	t.Run("NonPositive", func(t *testing.T) {
		require.NoError(t, Sleep(context.Background(), 0))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, Sleep(ctx, -time.Second), context.Canceled)
	})
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer(4096)
	require.Len(t, buf, 4096)
	buf[0] = 0xAA
	PutBuffer(buf)

	again := GetBuffer(4096)
	require.Len(t, again, 4096)
	PutBuffer(again)

	assert.Len(t, GetBuffer(512), 512)
	assert.Nil(t, GetBuffer(0))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := GetBuffer(1024)
			assert.Len(t, b, 1024)
			PutBuffer(b)
		}()
	}
	wg.Wait()
}
