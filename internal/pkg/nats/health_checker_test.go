package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker_NilConnIsUnhealthy(t *testing.T) {
	hc := NewHealthChecker(nil, 10*time.Millisecond)
	assert.False(t, hc.IsHealthy())
	assert.Equal(t, "disconnected", hc.Status())
}

func TestHealthChecker_StopIdempotent(t *testing.T) {
	hc := NewHealthChecker(nil, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		hc.Start(context.Background())
		close(done)
	}()

	hc.Stop()
	hc.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health checker did not stop")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("127.0.0.1:1", "test")
	assert.Error(t, err)
}
