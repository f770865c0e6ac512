package procreg

import "testing"

func TestRegisterUnregister(t *testing.T) {
	r := New()
	r.Register(12345)
	if r.Count() != 1 {
		t.Fatalf("want 1 tracked child, got %d", r.Count())
	}
	r.Unregister(12345)
	if r.Count() != 0 {
		t.Fatalf("want 0 tracked children after unregister, got %d", r.Count())
	}
}

func TestRegister_IgnoresNonPositivePID(t *testing.T) {
	r := New()
	r.Register(0)
	r.Register(-1)
	if r.Count() != 0 {
		t.Fatalf("non-positive pids must not be tracked, got %d", r.Count())
	}
}

func TestKillAll_ClearsRegistry(t *testing.T) {
	r := New()
	// Use an unrealistic-but-positive pid: KillAll must not panic even
	// though nothing with this pid exists; syscall.Kill simply errors.
	r.Register(999999)
	r.KillAll()
	if r.Count() != 0 {
		t.Fatalf("KillAll must clear the registry, got %d remaining", r.Count())
	}
}

func TestGlobal_ReturnsSingleton(t *testing.T) {
	if Global() != Global() {
		t.Fatal("Global() must return the same Registry instance")
	}
}
