package runtime_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ksred/rtp-api/internal/runtime"
)

// echoContract returns its args and logs one line per call.
type echoContract struct {
	calls atomic.Int64
}

func (e *echoContract) Invoke(call *runtime.Call) ([]byte, error) {
	e.calls.Add(1)
	call.EmitLog("echo:" + call.Method)
	return call.Args, nil
}

func startRuntime(t *testing.T, interval time.Duration) (*runtime.Runtime, context.CancelFunc) {
	t.Helper()
	rt := runtime.New(runtime.Config{BlockInterval: interval})
	ctx, cancel := context.WithCancel(context.Background())
	go rt.Start(ctx)
	return rt, cancel
}

func TestCallResolvesWithValue(t *testing.T) {
	rt, cancel := startRuntime(t, 10*time.Millisecond)
	defer cancel()

	contract := &echoContract{}
	rt.Genesis("alice", 0, contract)

	ctx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()

	res := rt.Call("bob", "alice", "ping", map[string]string{"k": "v"}, 0).Await(ctx)
	if res.Err != nil {
		t.Fatalf("call failed: %v", res.Err)
	}

	var out map[string]string
	if err := json.Unmarshal(res.Value, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out["k"] != "v" {
		t.Errorf("result: got %v, want k=v", out)
	}
}

func TestCallToMissingAccountFails(t *testing.T) {
	rt, cancel := startRuntime(t, 10*time.Millisecond)
	defer cancel()

	ctx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()

	res := rt.Call("bob", "nobody", "ping", nil, 0).Await(ctx)
	if res.Err == nil {
		t.Fatal("expected error for missing account")
	}
}

func TestBlocksCarryReceiptsAndLogs(t *testing.T) {
	rt := runtime.New(runtime.Config{BlockInterval: 10 * time.Millisecond})
	contract := &echoContract{}
	rt.Genesis("alice", 0, contract)
	blocks := rt.Blocks()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Start(ctx)

	awaitCtx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()
	if res := rt.Call("bob", "alice", "ping", nil, 0).Await(awaitCtx); res.Err != nil {
		t.Fatalf("call failed: %v", res.Err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case block, ok := <-blocks:
			if !ok {
				t.Fatal("block channel closed before receipt arrived")
			}
			for _, receipt := range block.Receipts {
				if receipt.Receiver == "alice" && receipt.Method == "ping" {
					if !receipt.Success {
						t.Errorf("receipt not successful: %s", receipt.Error)
					}
					if len(receipt.Logs) != 1 || receipt.Logs[0] != "echo:ping" {
						t.Errorf("receipt logs: got %v", receipt.Logs)
					}
					return
				}
			}
		case <-deadline:
			t.Fatal("no block with the call receipt within 1s")
		}
	}
}

func TestBlockHeightsIncrease(t *testing.T) {
	rt := runtime.New(runtime.Config{BlockInterval: 5 * time.Millisecond})
	blocks := rt.Blocks()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Start(ctx)

	var last uint64
	for i := 0; i < 5; i++ {
		select {
		case block := <-blocks:
			if block.Height <= last {
				t.Fatalf("height did not increase: %d after %d", block.Height, last)
			}
			last = block.Height
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for blocks")
		}
	}
}

func TestSlowSubscriberLosesNoBlocks(t *testing.T) {
	rt := runtime.New(runtime.Config{BlockInterval: time.Millisecond})
	blocks := rt.Blocks()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Start(ctx)

	// Let far more blocks seal than the subscription buffer holds; the
	// runtime must backpressure instead of skipping heights.
	time.Sleep(250 * time.Millisecond)

	var last uint64
	for i := 0; i < 100; i++ {
		select {
		case block := <-blocks:
			if last != 0 && block.Height != last+1 {
				t.Fatalf("height gap: %d after %d", block.Height, last)
			}
			last = block.Height
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for blocks")
		}
	}
}

func TestTransferAndBalances(t *testing.T) {
	rt, cancel := startRuntime(t, 10*time.Millisecond)
	defer cancel()

	rt.Genesis("alice", 100, nil)

	ctx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()

	if res := rt.CreateAccount("alice", "bob").Await(ctx); res.Err != nil {
		t.Fatalf("create account: %v", res.Err)
	}
	if res := rt.Transfer("alice", "bob", 40).Await(ctx); res.Err != nil {
		t.Fatalf("transfer: %v", res.Err)
	}

	if bal, _ := rt.Balance("alice"); bal != 60 {
		t.Errorf("alice balance: got %d, want 60", bal)
	}
	if bal, _ := rt.Balance("bob"); bal != 40 {
		t.Errorf("bob balance: got %d, want 40", bal)
	}

	if res := rt.Transfer("alice", "bob", 1000).Await(ctx); res.Err == nil {
		t.Error("overdraft transfer should fail")
	}
}

func TestDeleteAccountRefundsBeneficiary(t *testing.T) {
	rt, cancel := startRuntime(t, 10*time.Millisecond)
	defer cancel()

	rt.Genesis("alice", 100, nil)
	rt.Genesis("vault", 0, nil)

	ctx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()

	if res := rt.DeleteAccount("alice", "alice", "vault").Await(ctx); res.Err != nil {
		t.Fatalf("delete account: %v", res.Err)
	}
	if bal, _ := rt.Balance("vault"); bal != 100 {
		t.Errorf("vault balance: got %d, want 100", bal)
	}
	if _, ok := rt.Balance("alice"); ok {
		t.Error("deleted account still present")
	}
}

func TestJoinThenRunsOnceAfterBoth(t *testing.T) {
	rt, cancel := startRuntime(t, 10*time.Millisecond)
	defer cancel()

	contract := &echoContract{}
	rt.Genesis("alice", 0, contract)

	pa := rt.Call("f", "alice", "a", nil, 0)
	pb := rt.Call("f", "alice", "b", nil, 0)

	done := make(chan struct{})
	var runs atomic.Int64
	runtime.Join(pa, pb).Then(func(a, b runtime.Result) {
		runs.Add(1)
		if a.Err != nil || b.Err != nil {
			t.Errorf("joined calls failed: %v / %v", a.Err, b.Err)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("join callback never ran")
	}
	if runs.Load() != 1 {
		t.Errorf("join callback ran %d times", runs.Load())
	}
}

func TestJoinSeesPartialFailure(t *testing.T) {
	rt, cancel := startRuntime(t, 10*time.Millisecond)
	defer cancel()

	contract := &echoContract{}
	rt.Genesis("alice", 0, contract)

	pa := rt.Call("f", "alice", "a", nil, 0)
	pb := rt.Call("f", "missing", "b", nil, 0)

	done := make(chan struct{})
	runtime.Join(pa, pb).Then(func(a, b runtime.Result) {
		if a.Err != nil {
			t.Errorf("healthy branch failed: %v", a.Err)
		}
		if b.Err == nil {
			t.Error("missing-account branch succeeded")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("join callback never ran")
	}
}

func TestCompletionPromise(t *testing.T) {
	p, resolve := runtime.NewCompletion()

	select {
	case <-p.Done():
		t.Fatal("promise resolved before resolve was called")
	default:
	}

	resolve(runtime.Result{Value: json.RawMessage(`"ok"`)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := p.Await(ctx)
	if res.Err != nil {
		t.Fatalf("await: %v", res.Err)
	}
	if string(res.Value) != `"ok"` {
		t.Errorf("value: got %s", res.Value)
	}
}
