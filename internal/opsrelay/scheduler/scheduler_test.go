package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/testutil"
)

// fireRecorder collects callback invocations from Tick goroutines.
type fireRecorder struct {
	mu    sync.Mutex
	names []string
}

func (f *fireRecorder) run(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.names)
}

func newFixedScheduler(at time.Time) *Scheduler {
	s := New()
	s.now = func() time.Time { return at }
	return s
}

func TestArm_IntervalFiresFirstAtInterval(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newFixedScheduler(t0)
	rec := &fireRecorder{}

	s.Arm([]config.PeriodicScript{{Name: "beat", Path: "/opt/beat.sh", Interval: 3600}}, rec.run)

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 armed job, got %d", len(jobs))
	}
	if want := t0.Add(3600 * time.Second); !jobs[0].Next.Equal(want) {
		t.Errorf("Expected first fire at %v, got %v", want, jobs[0].Next)
	}

	s.Tick(t0.Add(3599 * time.Second))
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Error("Job fired before its interval elapsed")
	}

	s.Tick(t0.Add(3600 * time.Second))
	testutil.WaitWithTimeout(t, 2*time.Second, func() bool { return rec.count() == 1 }, "interval job fired")

	if want := t0.Add(7200 * time.Second); !s.Jobs()[0].Next.Equal(want) {
		t.Errorf("Expected next fire at %v, got %v", want, s.Jobs()[0].Next)
	}
}

func TestArm_TimeOfDayComputesNextOccurrence(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	s := newFixedScheduler(t0)

	s.Arm([]config.PeriodicScript{
		{Name: "early", Path: "/opt/a.sh", TimeOfDay: "06:30"},
		{Name: "late", Path: "/opt/b.sh", TimeOfDay: "23:15"},
	}, func(string) {})

	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 armed jobs, got %d", len(jobs))
	}

	// 06:30 already passed today, so the next occurrence is tomorrow.
	if want := time.Date(2024, 5, 2, 6, 30, 0, 0, time.Local); !jobs[0].Next.Equal(want) {
		t.Errorf("Expected %s next at %v, got %v", jobs[0].Name, want, jobs[0].Next)
	}
	if want := time.Date(2024, 5, 1, 23, 15, 0, 0, time.Local); !jobs[1].Next.Equal(want) {
		t.Errorf("Expected %s next at %v, got %v", jobs[1].Name, want, jobs[1].Next)
	}
}

func TestArm_PrefersTimeOfDayOverInterval(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	s := newFixedScheduler(t0)

	s.Arm([]config.PeriodicScript{
		{Name: "both", Path: "/opt/a.sh", Interval: 60, TimeOfDay: "12:00"},
	}, func(string) {})

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 armed job, got %d", len(jobs))
	}
	if jobs[0].Trigger != "daily at 12:00" {
		t.Errorf("Expected the daily trigger to win, got %q", jobs[0].Trigger)
	}
	if want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local); !jobs[0].Next.Equal(want) {
		t.Errorf("Expected next at %v, got %v", want, jobs[0].Next)
	}
}

func TestArm_MalformedTimeOfDay(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("falls back to interval", func(t *testing.T) {
		s := newFixedScheduler(t0)
		stderr := testutil.CaptureStderr(t, func() {
			s.Arm([]config.PeriodicScript{
				{Name: "broken-clock", Path: "/opt/a.sh", Interval: 120, TimeOfDay: "6:75"},
			}, func(string) {})
		})

		jobs := s.Jobs()
		if len(jobs) != 1 {
			t.Fatalf("Expected the interval fallback to arm, got %d jobs", len(jobs))
		}
		if jobs[0].Trigger != "every 120s" {
			t.Errorf("Expected interval trigger, got %q", jobs[0].Trigger)
		}
		testutil.AssertContains(t, stderr, "out of range")
	})

	t.Run("skipped without interval", func(t *testing.T) {
		s := newFixedScheduler(t0)
		stderr := testutil.CaptureStderr(t, func() {
			s.Arm([]config.PeriodicScript{
				{Name: "no-trigger", Path: "/opt/a.sh", TimeOfDay: "sometime"},
			}, func(string) {})
		})

		if len(s.Jobs()) != 0 {
			t.Errorf("Expected no armed jobs, got %d", len(s.Jobs()))
		}
		testutil.AssertContains(t, stderr, "no usable trigger")
	})
}

func TestArm_SkipsJobWithoutTrigger(t *testing.T) {
	s := newFixedScheduler(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	stderr := testutil.CaptureStderr(t, func() {
		s.Arm([]config.PeriodicScript{
			{Name: "idle", Path: "/opt/idle.sh"},
			{Name: "beat", Path: "/opt/beat.sh", Interval: 60},
		}, func(string) {})
	})

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "beat" {
		t.Fatalf("Expected only the interval job armed, got %+v", jobs)
	}
	testutil.AssertContains(t, stderr, "no usable trigger")
}

func TestDisarm_EmptiesTable(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newFixedScheduler(t0)
	rec := &fireRecorder{}

	s.Arm([]config.PeriodicScript{{Name: "beat", Path: "/opt/beat.sh", Interval: 1}}, rec.run)
	s.Disarm()

	if len(s.Jobs()) != 0 {
		t.Fatalf("Expected empty table after Disarm, got %d jobs", len(s.Jobs()))
	}

	s.Tick(t0.Add(time.Hour))
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Error("Disarmed job still fired")
	}
}

func TestArm_RearmRebuildsWholesale(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newFixedScheduler(t0)

	s.Arm([]config.PeriodicScript{
		{Name: "old-a", Path: "/opt/a.sh", Interval: 60},
		{Name: "old-b", Path: "/opt/b.sh", Interval: 60},
	}, func(string) {})
	s.Disarm()
	s.Arm([]config.PeriodicScript{
		{Name: "new", Path: "/opt/c.sh", Interval: 30},
	}, func(string) {})

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "new" {
		t.Fatalf("Expected only the re-armed job, got %+v", jobs)
	}
}

func TestTick_HungCallbackDoesNotBlockOthers(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newFixedScheduler(t0)

	release := make(chan struct{})
	fired := make(chan string, 2)
	s.Arm([]config.PeriodicScript{
		{Name: "stuck", Path: "/opt/stuck.sh", Interval: 10},
		{Name: "quick", Path: "/opt/quick.sh", Interval: 10},
	}, func(name string) {
		if name == "stuck" {
			<-release
		}
		fired <- name
	})
	defer close(release)

	done := make(chan struct{})
	go func() {
		s.Tick(t0.Add(10 * time.Second))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tick blocked on a hung callback")
	}

	select {
	case name := <-fired:
		if name != "quick" {
			t.Errorf("Expected the quick job to fire, got %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Quick job never fired while the other callback hung")
	}
}
