package surface

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/plot"
)

func always(effect func()) bool {
	effect()
	return true
}

func never(func()) bool { return false }

func result(stat string) plot.PlotResult {
	return plot.PlotResult{
		Payload:   plot.Payload{Data: []byte(`[{"type":"bar"}]`), Layout: []byte(`{}`)},
		Statistic: stat,
		PlotKind:  "bar",
	}
}

func TestFacetKey(t *testing.T) {
	if got := FacetKey(3); got != "facet/3" {
		t.Errorf("FacetKey(3) = %q", got)
	}
}

func TestRegistryKeepsBindingAcrossRegister(t *testing.T) {
	r := NewRegistry()
	s := r.Register(MergedKey, 0, 0)
	if s.Ready() {
		t.Fatal("zero-sized surface should not be ready")
	}
	r.bind(s, 1, result("capex"))

	again := r.Register(MergedKey, 80, 20)
	if again != s {
		t.Fatal("re-registering should return the same surface")
	}
	if _, ok := again.Binding(); !ok {
		t.Error("re-registering should keep the binding")
	}
	if !again.Ready() {
		t.Error("surface should be ready after sizing")
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(MergedKey, 80, 20)

	var notified []string
	r.OnChange(func(key string) { notified = append(notified, key) })

	a := NewAttacher(r, WithClock(clock.NewFake(time.Unix(0, 0))))
	for i := 0; i < 3; i++ {
		if err := a.Attach(context.Background(), MergedKey, uint64(i+1), result("capex"), always); err != nil {
			t.Fatalf("Attach #%d: %v", i, err)
		}
	}

	s, _ := r.Get(MergedKey)
	b, ok := s.Binding()
	if !ok {
		t.Fatal("expected a live binding")
	}
	if b.GenerationID != 3 {
		t.Errorf("expected binding from generation 3, got %d", b.GenerationID)
	}
	if s.Teardowns() != 2 {
		t.Errorf("expected 2 teardowns before the live binding, got %d", s.Teardowns())
	}
	if len(notified) != 3 {
		t.Errorf("expected 3 change notifications, got %d", len(notified))
	}
}

func TestAttachWaitsForSurface(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(r *Registry, sleeps int)
		wantErr   bool
		wantSleep int
	}{
		{
			name: "appears later",
			setup: func(r *Registry, sleeps int) {
				if sleeps == 3 {
					r.Register(MergedKey, 40, 10)
				}
			},
			wantSleep: 3,
		},
		{
			name: "sized later",
			setup: func(r *Registry, sleeps int) {
				switch sleeps {
				case 1:
					r.Register(MergedKey, 0, 0)
				case 4:
					r.Resize(MergedKey, 40, 10)
				}
			},
			wantSleep: 4,
		},
		{
			name:      "never appears",
			setup:     func(*Registry, int) {},
			wantErr:   true,
			wantSleep: 5,
		},
		{
			name: "never sized",
			setup: func(r *Registry, sleeps int) {
				if sleeps == 1 {
					r.Register(MergedKey, 40, 0)
				}
			},
			wantErr:   true,
			wantSleep: 1 + 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			c := clock.NewFake(time.Unix(0, 0))
			sleeps := 0
			c.OnSleep(func(time.Duration) {
				sleeps++
				tt.setup(r, sleeps)
			})

			a := NewAttacher(r, WithClock(c), WithBudget(5, 10*time.Millisecond))
			err := a.Attach(context.Background(), MergedKey, 1, result("opex"), always)

			if tt.wantErr {
				var rerr *plot.RenderError
				if !errors.As(err, &rerr) {
					t.Fatalf("expected RenderError, got %v", err)
				}
				if rerr.SurfaceKey != MergedKey {
					t.Errorf("RenderError key = %q", rerr.SurfaceKey)
				}
			} else if err != nil {
				t.Fatalf("Attach: %v", err)
			}
			if sleeps != tt.wantSleep {
				t.Errorf("expected %d readiness waits, got %d", tt.wantSleep, sleeps)
			}
		})
	}
}

func TestAttachStaleGuard(t *testing.T) {
	r := NewRegistry()
	r.Register(MergedKey, 80, 20)
	a := NewAttacher(r)

	err := a.Attach(context.Background(), MergedKey, 1, result("capex"), never)
	if !errors.Is(err, plot.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	s, _ := r.Get(MergedKey)
	if _, ok := s.Binding(); ok {
		t.Error("stale attach must not bind")
	}
}

func TestAttachCancelledWhileWaiting(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAttacher(r, WithClock(clock.NewFake(time.Unix(0, 0))))
	if err := a.Attach(ctx, MergedKey, 1, result("capex"), always); !errors.Is(err, plot.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
}

func TestAttachDeadlineIsRenderError(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
	defer cancel()

	a := NewAttacher(r, WithClock(clock.NewFake(time.Unix(0, 0))))
	err := a.Attach(ctx, MergedKey, 1, result("capex"), always)
	var rerr *plot.RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expired deadline should be a render error, got %v", err)
	}
	if errors.Is(err, plot.ErrSuperseded) {
		t.Error("a deadline must not look like supersession")
	}
}

func TestRemoveTearsDown(t *testing.T) {
	r := NewRegistry()
	s := r.Register(FacetKey(0), 10, 10)
	r.bind(s, 1, result("capex"))

	r.Remove(FacetKey(0))
	if _, ok := r.Get(FacetKey(0)); ok {
		t.Error("surface should be gone")
	}
	if s.Teardowns() != 1 {
		t.Errorf("expected binding to be torn down, got %d teardowns", s.Teardowns())
	}
}
