package progress

import (
	"context"
	"testing"
)

func TestDoneAdvancesMonotonically(t *testing.T) {
	n := New(context.Background())
	n.SetSteps(1, 1, 2)

	var seen []float64
	n.OnProgress(func(f float64) { seen = append(seen, f) })

	n.Done()
	n.Done()
	n.Done()

	if len(seen) != 3 {
		t.Fatalf("expected 3 progress callbacks, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("progress regressed: %v", seen)
		}
	}
	if got := seen[len(seen)-1]; got != 1 {
		t.Errorf("expected final fraction 1, got %v", got)
	}
}

func TestDoneWithoutStepsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling Done with no declared steps")
		}
	}()
	n := New(context.Background())
	n.Done()
}

func TestDoneTooManyTimesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling Done more times than declared")
		}
	}()
	n := New(context.Background())
	n.SetSteps(1)
	n.Done()
	n.Done()
}

func TestChildPropagatesToParent(t *testing.T) {
	parent := New(context.Background())
	parent.SetSteps(1, 1)

	var parentFrac float64
	parent.OnProgress(func(f float64) { parentFrac = f })

	parent.Done() // First step complete: parent at 0.5.
	if parentFrac != 0.5 {
		t.Fatalf("expected 0.5 after first step, got %v", parentFrac)
	}

	child := parent.Child(1)
	child.SetSteps(1, 1)
	child.Done()
	if parentFrac <= 0.5 {
		t.Fatalf("expected child progress to advance parent beyond 0.5, got %v", parentFrac)
	}
	child.Done()
	parent.Done()
	if parentFrac != 1 {
		t.Fatalf("expected parent to reach 1.0, got %v", parentFrac)
	}
}

func TestCancelPropagatesToChild(t *testing.T) {
	parent := New(context.Background())
	child := parent.Child(1)

	parent.Cancel()
	if child.Err() == nil {
		t.Fatal("expected child context to be canceled along with parent")
	}
}
