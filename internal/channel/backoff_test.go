package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Next(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 30 * time.Second}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i+1)
	}
	assert.Equal(t, len(want), b.Attempt())

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_NoOverflow(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Minute}
	for i := 0; i < 200; i++ {
		b.Next()
	}
	assert.Equal(t, time.Minute, b.Next())
}

func TestState_Banner(t *testing.T) {
	assert.Equal(t, "Reconnecting…", StateReconnecting.Banner())
	assert.Equal(t, "Connecting…", StateConnecting.Banner())
	assert.Equal(t, "Disconnected", StateDisconnected.Banner())
	assert.Empty(t, StateConnected.Banner())
}
