package pathq

import (
	"sync"
)

// ExpressionPool holds compiled instances of a single expression. Borrowed
// instances are exclusively owned until released; released instances go
// back on the idle list for reuse. Destroying the pool detaches outstanding
// borrows: they stay usable and are discarded on release instead of being
// returned.
type ExpressionPool struct {
	factory *compilationFactory

	mu        sync.Mutex
	idle      []*PooledExpression
	borrowed  map[*PooledExpression]struct{}
	destroyed bool
}

func newExpressionPool(factory *compilationFactory) *ExpressionPool {
	return &ExpressionPool{
		factory:  factory,
		borrowed: make(map[*PooledExpression]struct{}),
	}
}

// Borrow hands out an idle instance, compiling a new one when none is
// available. Compilation runs outside the pool lock; concurrent borrows
// under an empty pool may each compile their own instance.
func (p *ExpressionPool) Borrow() (*PooledExpression, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil, &ProtocolError{Op: "borrow", Reason: "pool is destroyed"}
	}
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.borrowed[inst] = struct{}{}
		p.mu.Unlock()
		return inst, nil
	}
	p.mu.Unlock()

	inst, err := p.factory.newInstance()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		// The pool died while we compiled; hand the instance out detached.
		inst.pool = nil
		return inst, nil
	}
	inst.pool = p
	p.borrowed[inst] = struct{}{}
	return inst, nil
}

// giveBack returns a borrowed instance to the idle list. A destroyed pool
// drops the instance instead, and the drop counts as the instance's
// release. A live pool rejects instances it did not lend out, telling an
// already-idle instance apart from one that never came from this pool.
func (p *ExpressionPool) giveBack(inst *PooledExpression) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		inst.mu.Lock()
		inst.pool = nil
		inst.released = true
		inst.mu.Unlock()
		return nil
	}
	if _, ok := p.borrowed[inst]; !ok {
		for _, idle := range p.idle {
			if idle == inst {
				return &ProtocolError{Op: "release", Reason: "instance already released"}
			}
		}
		return &ProtocolError{Op: "release", Reason: "instance was not borrowed from this pool"}
	}
	delete(p.borrowed, inst)
	p.idle = append(p.idle, inst)
	return nil
}

// Destroy drops all idle instances and detaches every outstanding borrow.
// Further borrows fail; outstanding instances remain valid until released.
func (p *ExpressionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.idle = nil
	for inst := range p.borrowed {
		inst.detach()
	}
	p.borrowed = make(map[*PooledExpression]struct{})
}

// ReclaimIdle drops every idle instance, returning how many were dropped.
// Borrowed instances are untouched.
func (p *ExpressionPool) ReclaimIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle)
	p.idle = nil
	return n
}

// Idle returns the number of instances waiting for reuse.
func (p *ExpressionPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Borrowed returns the number of instances currently out on loan.
func (p *ExpressionPool) Borrowed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.borrowed)
}
