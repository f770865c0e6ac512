package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterrupt_SetsAndStays(t *testing.T) {
	m := New()
	assert.False(t, m.ShouldInterrupt())
	m.Interrupt()
	assert.True(t, m.ShouldInterrupt())
	assert.True(t, m.ShouldInterrupt(), "interrupt must remain level-triggered")
}

func TestPauseResume(t *testing.T) {
	m := New()
	m.Pause()
	assert.True(t, m.IsPaused())

	done := make(chan struct{})
	go func() {
		m.WaitIfPaused()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned before Resume")
	case <-time.After(20 * time.Millisecond):
	}

	m.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Resume")
	}
}

func TestInterruptReleasesPause(t *testing.T) {
	m := New()
	m.Pause()
	done := make(chan struct{})
	go func() {
		m.WaitIfPaused()
		close(done)
	}()

	m.Interrupt()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Interrupt")
	}
}

func TestTogglePause(t *testing.T) {
	m := New()
	m.TogglePause()
	assert.True(t, m.IsPaused())
	m.TogglePause()
	assert.False(t, m.IsPaused())
}

func TestPauseAfterInterruptIsNoop(t *testing.T) {
	m := New()
	m.Interrupt()
	m.Pause()
	assert.False(t, m.IsPaused(), "an interrupted run must never re-enter pause")
}

func TestInterjectAndDrain(t *testing.T) {
	m := New()
	assert.Equal(t, "", m.PendingUserInput())
	m.Interject("first")
	m.Interject("second")
	got := m.PendingUserInput()
	require.Equal(t, "first\nsecond", got)
	assert.Equal(t, "", m.PendingUserInput(), "drain must be one-shot")
}

func TestReset(t *testing.T) {
	m := New()
	m.Interrupt()
	m.Reset()
	assert.False(t, m.ShouldInterrupt())
	assert.False(t, m.IsPaused())
}
