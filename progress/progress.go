// Package progress implements the engine-wide progress/cancellation tree:
// every blocking operation in this module takes a [Node] as its "state"
// handle, declares its step plan up front, and calls Done after completing
// each step. Children created under a Node propagate weighted progress to
// their parent, so a caller watching the root sees a single monotonically
// increasing percentage for an arbitrarily deep operation.
package progress

import (
	"context"
	"fmt"
	"sync"
)

// Node is one handle in a progress tree.
//
// The zero Node is not ready for use; construct with [New] or
// [Node.Child]. A Node must not be copied after use.
type Node struct {
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	weights []float64 // Declared step plan; len(weights) is the step count.
	done    int        // Steps completed so far.
	emitted float64    // Last percentage reported to parent/observer, enforced non-decreasing.

	parent       *Node
	parentWeight float64 // This node's share of the parent's current step.

	onProgress func(fraction float64)
}

// New creates a root Node. Canceling ctx (or any context this function
// derives it from) cancels the whole tree beneath the returned Node.
func New(ctx context.Context) *Node {
	c, cancel := context.WithCancel(ctx)
	return &Node{ctx: c, cancel: cancel}
}

// Context returns the Node's cancellation context.
func (n *Node) Context() context.Context { return n.ctx }

// Cancel cancels this Node and every descendant.
func (n *Node) Cancel() { n.cancel() }

// Err reports the tree's cancellation error, if any.
func (n *Node) Err() error { return n.ctx.Err() }

// OnProgress registers a callback invoked with this Node's own fractional
// completion (0..1) every time it advances. Intended for root nodes driving
// a progress bar; children propagate to parents regardless of whether a
// callback is registered.
func (n *Node) OnProgress(f func(fraction float64)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onProgress = f
}

// SetSteps declares the step plan for this Node: one weight per step, in
// the order Done will be called. Weights need not sum to 1; they're
// normalized internally. Calling SetSteps twice on the same Node, or after
// any Done call, is a programming error.
func (n *Node) SetSteps(weights ...float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.weights != nil {
		panic("progress: SetSteps called twice on the same Node")
	}
	if n.done != 0 {
		panic("progress: SetSteps called after Done")
	}
	if len(weights) == 0 {
		weights = []float64{1}
	}
	n.weights = append([]float64(nil), weights...)
}

// Done marks the next declared step complete and propagates weighted
// progress to the parent (if any) and to any registered [Node.OnProgress]
// callback. Calling Done more times than steps were declared is a
// programming error.
func (n *Node) Done() {
	n.mu.Lock()
	if n.weights == nil {
		n.mu.Unlock()
		panic("progress: Done called with no step plan declared")
	}
	if n.done >= len(n.weights) {
		n.mu.Unlock()
		panic(fmt.Sprintf("progress: Done called %d times but only %d steps declared", n.done+1, len(n.weights)))
	}
	n.done++
	frac := n.doneFractionLocked()
	if frac < n.emitted {
		// A child already advanced past this step boundary; never emit a
		// lower percentage than previously reported.
		frac = n.emitted
	}
	n.emitted = frac
	cb := n.onProgress
	n.mu.Unlock()

	if cb != nil {
		cb(frac)
	}
	if n.parent != nil {
		n.parent.childAdvanced(n.parentWeight, frac)
	}
}

// DoneFractionLocked computes the fraction contributed by completed steps
// alone, without touching the emission watermark. Caller must hold n.mu.
func (n *Node) doneFractionLocked() float64 {
	var total, got float64
	for i, w := range n.weights {
		total += w
		if i < n.done {
			got += w
		}
	}
	if total == 0 {
		return 0
	}
	return got / total
}

// Child creates a sub-operation's Node, whose progress contributes
// "weight"'s share of whatever step of the parent is currently in flight.
// The child inherits the parent's cancellation context.
func (n *Node) Child(weight float64) *Node {
	c := &Node{
		ctx:          n.ctx,
		cancel:       func() {}, // Cancellation flows from the parent; children don't cancel independently.
		parent:       n,
		parentWeight: weight,
	}
	return c
}

// ChildAdvanced is called by a child Node when it advances; it folds the
// child's fraction into this Node's current-step completion, weighted by
// the child's declared share, then propagates upward exactly as Done does.
func (n *Node) childAdvanced(weight, childFraction float64) {
	n.mu.Lock()
	frac := n.doneFractionLocked() + weight*childFraction/n.totalWeightLocked()
	cb := n.onProgress
	if frac > n.emitted {
		n.emitted = frac
	} else {
		frac = n.emitted
	}
	n.mu.Unlock()

	if cb != nil {
		cb(frac)
	}
	if n.parent != nil {
		n.parent.childAdvanced(n.parentWeight, frac)
	}
}

func (n *Node) totalWeightLocked() float64 {
	var total float64
	for _, w := range n.weights {
		total += w
	}
	if total == 0 {
		return 1
	}
	return total
}

// Fraction reports the Node's current completion fraction (0..1) without
// advancing it.
func (n *Node) Fraction() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var total, got float64
	for i, w := range n.weights {
		total += w
		if i < n.done {
			got += w
		}
	}
	if total == 0 {
		return 0
	}
	return got / total
}
