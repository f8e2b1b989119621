package session

import (
	"testing"
	"time"
)

func TestDebounceGuard_ShouldEmit(t *testing.T) {
	base := time.Now()
	tests := []struct {
		name   string
		events []struct {
			secret string
			at     time.Duration
			want   bool
		}
	}{
		{
			name: "identical secret within window suppressed",
			events: []struct {
				secret string
				at     time.Duration
				want   bool
			}{
				{"s1", 0, true},
				{"s1", 5 * time.Second, false},
				{"s1", 14 * time.Second, false},
			},
		},
		{
			name: "identical secret after window re-emitted",
			events: []struct {
				secret string
				at     time.Duration
				want   bool
			}{
				{"s1", 0, true},
				{"s1", 16 * time.Second, true},
			},
		},
		{
			name: "different secret emitted immediately",
			events: []struct {
				secret string
				at     time.Duration
				want   bool
			}{
				{"s1", 0, true},
				{"s2", time.Second, true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewDebounceGuard(15 * time.Second)
			for i, ev := range tt.events {
				got := g.ShouldEmit("t1", ev.secret, base.Add(ev.at))
				if got != ev.want {
					t.Errorf("event %d: ShouldEmit(%q, +%v) = %v, want %v",
						i, ev.secret, ev.at, got, ev.want)
				}
			}
		})
	}
}

func TestDebounceGuard_PerTenantBaselines(t *testing.T) {
	g := NewDebounceGuard(15 * time.Second)
	now := time.Now()
	if !g.ShouldEmit("t1", "s1", now) {
		t.Error("first emit for t1 suppressed")
	}
	if !g.ShouldEmit("t2", "s1", now) {
		t.Error("same secret for a different tenant suppressed")
	}
}

func TestDebounceGuard_Clear(t *testing.T) {
	g := NewDebounceGuard(15 * time.Second)
	now := time.Now()
	g.ShouldEmit("t1", "s1", now)
	g.Clear("t1")
	if !g.ShouldEmit("t1", "s1", now.Add(time.Second)) {
		t.Error("emit suppressed after Clear")
	}
}
