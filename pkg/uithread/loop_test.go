package uithread

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		l.Stop()
	})
	return l
}

func TestLoop_FIFO(t *testing.T) {
	l := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Post(func(context.Context) { got = append(got, i) }); err != nil {
			t.Fatal(err)
		}
	}
	if n := l.Drain(context.Background()); n != 5 {
		t.Errorf("Drain ran %d tasks, want 5", n)
	}
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3, 4}) {
		t.Errorf("order=%v", got)
	}
}

func TestLoop_DrainRunsTasksPostedWhileDraining(t *testing.T) {
	l := New()
	var got []string
	_ = l.Post(func(context.Context) {
		got = append(got, "a")
		_ = l.Post(func(context.Context) { got = append(got, "c") })
	})
	_ = l.Post(func(context.Context) { got = append(got, "b") })
	l.Drain(context.Background())
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("order=%v", got)
	}
}

func TestLoop_InvokeInlineOnLoop(t *testing.T) {
	l := New()
	var order []string
	_ = l.Post(func(ctx context.Context) {
		if !l.OnLoop(ctx) {
			t.Error("task context should be on loop")
		}
		_ = l.Invoke(ctx, func(context.Context) { order = append(order, "inner") })
		order = append(order, "outer")
	})
	l.Drain(context.Background())
	if !reflect.DeepEqual(order, []string{"inner", "outer"}) {
		t.Errorf("order=%v", order)
	}
}

func TestLoop_InvokeFromOtherGoroutine(t *testing.T) {
	l := startLoop(t)
	var ran atomic.Bool
	err := l.Invoke(context.Background(), func(ctx context.Context) {
		if !OnAnyLoop(ctx) {
			t.Error("expected loop context")
		}
		ran.Store(true)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ran.Load() {
		t.Error("Invoke returned before the task ran")
	}
}

func TestLoop_InvokeContextCancelled(t *testing.T) {
	l := New() // never driven
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Invoke(ctx, func(context.Context) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err=%v, want deadline exceeded", err)
	}
}

func TestLoop_StopReleasesInvoke(t *testing.T) {
	l := New()
	errc := make(chan error, 1)
	go func() {
		errc <- l.Invoke(context.Background(), func(context.Context) {})
	}()
	time.Sleep(20 * time.Millisecond)
	l.Stop()
	l.Stop()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrLoopStopped) {
			t.Errorf("err=%v, want ErrLoopStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Invoke did not return after Stop")
	}
	if err := l.Post(func(context.Context) {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Post after Stop: %v", err)
	}
}

func TestLoop_RunTwice(t *testing.T) {
	l := startLoop(t)
	time.Sleep(10 * time.Millisecond)
	if err := l.Run(context.Background()); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("second Run: %v", err)
	}
}

func TestLoop_TaskPanicRecovered(t *testing.T) {
	l := New()
	ran := false
	_ = l.Post(func(context.Context) { panic("boom") })
	_ = l.Post(func(context.Context) { ran = true })
	l.Drain(context.Background())
	if !ran {
		t.Error("task after a panicking task should still run")
	}
	posted, executed := l.Stats()
	if posted != 2 || executed != 2 {
		t.Errorf("stats=(%d,%d)", posted, executed)
	}
}

func TestTimer_FiresOnLoop(t *testing.T) {
	l := startLoop(t)
	fired := make(chan bool, 1)
	l.AfterFunc(10*time.Millisecond, func(ctx context.Context) {
		fired <- l.OnLoop(ctx)
	})
	select {
	case onLoop := <-fired:
		if !onLoop {
			t.Error("timer task should run on the loop")
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimer_StopPreventsRun(t *testing.T) {
	l := New()
	var ran atomic.Bool
	tm := l.AfterFunc(10*time.Millisecond, func(context.Context) { ran.Store(true) })

	// Let the timer post its task, then cancel before the loop drains it.
	time.Sleep(40 * time.Millisecond)
	if !tm.Stop() {
		t.Error("Stop should report the task had not run")
	}
	l.Drain(context.Background())
	if ran.Load() {
		t.Error("stopped timer task ran")
	}
	if tm.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestTimer_StopAfterFire(t *testing.T) {
	l := New()
	tm := l.AfterFunc(time.Millisecond, func(context.Context) {})
	time.Sleep(20 * time.Millisecond)
	l.Drain(context.Background())
	if tm.Stop() {
		t.Error("Stop after the task ran should report false")
	}
}

func TestWaitForTaskCmd(t *testing.T) {
	l := New()
	_ = l.Post(func(context.Context) {})
	msg := WaitForTaskCmd(l)()
	ready, ok := msg.(TasksReadyMsg)
	if !ok || ready.Loop != l {
		t.Fatalf("msg=%#v", msg)
	}
	cmd, handled := HandleMsg(context.Background(), l, msg)
	if !handled || cmd == nil {
		t.Fatal("HandleMsg should drain and return the next wait command")
	}
	if l.Pending() != 0 {
		t.Errorf("Pending=%d after HandleMsg", l.Pending())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var got any
	go func() {
		defer wg.Done()
		got = cmd()
	}()
	l.Stop()
	wg.Wait()
	if _, ok := got.(LoopStoppedMsg); !ok {
		t.Errorf("got %#v, want LoopStoppedMsg", got)
	}
}
