package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeoutSupervisor_Fires(t *testing.T) {
	s := NewTimeoutSupervisor(20 * time.Millisecond)
	fired := make(chan struct{})
	s.Arm("t1", func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
}

func TestTimeoutSupervisor_DisarmPreventsFire(t *testing.T) {
	s := NewTimeoutSupervisor(20 * time.Millisecond)
	var fired atomic.Int32
	s.Arm("t1", func() { fired.Add(1) })
	s.Disarm("t1")

	time.Sleep(60 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("disarmed timeout fired %d times", n)
	}
}

func TestTimeoutSupervisor_DisarmIdempotent(t *testing.T) {
	s := NewTimeoutSupervisor(20 * time.Millisecond)
	s.Arm("t1", func() {})
	s.Disarm("t1")
	s.Disarm("t1")
	s.Disarm("never-armed")
}

func TestTimeoutSupervisor_RearmSupersedesOldExpiry(t *testing.T) {
	s := NewTimeoutSupervisor(30 * time.Millisecond)
	var first, second atomic.Int32
	s.Arm("t1", func() { first.Add(1) })
	s.Arm("t1", func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if first.Load() != 0 {
		t.Error("superseded expiry fired")
	}
	if second.Load() != 1 {
		t.Errorf("replacement expiry fired %d times, want 1", second.Load())
	}
}

func TestTimeoutSupervisor_FireThenDisarmNoDoubleCleanup(t *testing.T) {
	s := NewTimeoutSupervisor(10 * time.Millisecond)
	var fired atomic.Int32
	s.Arm("t1", func() { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	s.Disarm("t1")
	time.Sleep(20 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("expiry ran %d times, want 1", n)
	}
}
