package runtime

import (
	"context"
	"encoding/json"
)

// Result is the resolved outcome of an asynchronous call. Value holds
// the call's JSON return payload when Err is nil.
type Result struct {
	Value json.RawMessage
	Err   error
}

// Promise is the handle for a call that has been issued but not yet
// executed. Once issued a call cannot be cancelled; the only recourse
// after a failure is compensating logic in a join callback.
type Promise struct {
	done   chan struct{}
	result Result
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

func (p *Promise) resolve(r Result) {
	p.result = r
	close(p.done)
}

// Done is closed once the call has resolved.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the call resolves or the context is cancelled.
// Cancellation abandons the wait only; the call itself still runs.
func (p *Promise) Await(ctx context.Context) Result {
	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// NewCompletion returns a promise together with the function that
// resolves it. Used by multi-step operations whose final callback is
// the real completion point, not any single underlying call.
func NewCompletion() (*Promise, func(Result)) {
	p := newPromise()
	return p, p.resolve
}

// JoinHandle joins two concurrently issued calls.
type JoinHandle struct {
	a, b *Promise
}

// Join pairs two promises for a fork-join continuation.
func Join(a, b *Promise) *JoinHandle {
	return &JoinHandle{a: a, b: b}
}

// Then runs fn exactly once, after both joined calls have resolved
// (success or failure). fn receives both results and must not assume
// any ordering between the joined branches.
func (j *JoinHandle) Then(fn func(a, b Result)) {
	go func() {
		<-j.a.done
		<-j.b.done
		fn(j.a.result, j.b.result)
	}()
}
