package lifecycle

import (
	"context"
	"errors"
	"testing"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (f *fakeComponent) Start(context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeComponent) Stop(context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return f.stopErr
}

func TestRuntimeStartsInOrderStopsInReverse(t *testing.T) {
	t.Parallel()
	var log []string
	rt := NewRuntime(
		&fakeComponent{name: "a", log: &log},
		&fakeComponent{name: "b", log: &log},
		&fakeComponent{name: "c", log: &log},
	)
	ctx := context.Background()

	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := rt.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %s, want %s", i, log[i], want[i])
		}
	}
}

func TestRuntimeUnwindsOnStartFailure(t *testing.T) {
	t.Parallel()
	var log []string
	boom := errors.New("boom")
	rt := NewRuntime(
		&fakeComponent{name: "a", log: &log},
		&fakeComponent{name: "b", startErr: boom, log: &log},
		&fakeComponent{name: "c", log: &log},
	)

	err := rt.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("start error = %v, want wrapped boom", err)
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %s, want %s", i, log[i], want[i])
		}
	}
}

func TestRuntimeStopCollectsErrors(t *testing.T) {
	t.Parallel()
	var log []string
	e1 := errors.New("first")
	e2 := errors.New("second")
	rt := NewRuntime(
		&fakeComponent{name: "a", stopErr: e1, log: &log},
		&fakeComponent{name: "b", stopErr: e2, log: &log},
	)
	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err := rt.Stop(ctx)
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("stop error %v must contain both component errors", err)
	}
}

func TestRuntimeIgnoresNilComponents(t *testing.T) {
	t.Parallel()
	var log []string
	rt := NewRuntime()
	rt.Register(nil)
	rt.Register(&fakeComponent{name: "a", log: &log})

	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := rt.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("log = %v, want start/stop of a only", log)
	}
}
