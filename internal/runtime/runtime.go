// Package runtime simulates the ledger platform at its interface
// boundary: asynchronous, causally-ordered remote calls between
// isolated contract accounts, with receipts grouped into ordered
// blocks for downstream consumption. There is no synchronous wait
// inside contract execution and no cancellation once a call is issued.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Contract is the operation surface an account exposes to remote calls.
// Args and return values cross the boundary as JSON.
type Contract interface {
	Invoke(call *Call) ([]byte, error)
}

// Call carries one invocation into a contract. Contracts append domain
// events to the call's receipt logs via EmitLog.
type Call struct {
	Caller   string
	Receiver string
	Method   string
	Args     json.RawMessage
	Deposit  uint64

	logs []string
}

// EmitLog appends a log line to the receipt of this call.
func (c *Call) EmitLog(line string) {
	c.logs = append(c.logs, line)
}

// Logs returns the log lines emitted so far.
func (c *Call) Logs() []string {
	return c.logs
}

// DecodeArgs unmarshals the call arguments into out.
func (c *Call) DecodeArgs(out any) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("%s: no input", c.Method)
	}
	if err := json.Unmarshal(c.Args, out); err != nil {
		return fmt.Errorf("%s: decode args: %w", c.Method, err)
	}
	return nil
}

// Receipt is the recorded outcome of one executed call or account action.
type Receipt struct {
	Receiver string   `json:"receiver"`
	Caller   string   `json:"caller"`
	Method   string   `json:"method"`
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs,omitempty"`
}

// Block is an ordered batch of receipts sealed at a height.
type Block struct {
	Height    uint64    `json:"height"`
	Timestamp int64     `json:"timestamp"`
	Receipts  []Receipt `json:"receipts"`
}

type taskKind int

const (
	taskCall taskKind = iota
	taskCreateAccount
	taskTransfer
	taskDeploy
	taskDelete
)

type task struct {
	kind        taskKind
	caller      string
	receiver    string
	beneficiary string
	method      string
	args        json.RawMessage
	deposit     uint64
	amount      uint64
	code        []byte
	contract    Contract
	promise     *Promise
}

type account struct {
	id       string
	balance  uint64
	code     []byte
	contract Contract
}

// Config controls block production and storage pricing.
type Config struct {
	BlockInterval   time.Duration
	StorageByteCost uint64
	QueueSize       int
	Logger          zerolog.Logger
}

// Runtime executes calls one at a time in submission order, which gives
// the causal ordering guarantee the factory's join callbacks rely on.
type Runtime struct {
	cfg   Config
	tasks chan *task

	mu       sync.Mutex
	accounts map[string]*account
	pending  []Receipt
	height   uint64
	subs     []chan Block
	started  bool
}

// New creates a runtime. Accounts present at genesis are registered
// with Genesis before Start.
func New(cfg Config) *Runtime {
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = 500 * time.Millisecond
	}
	if cfg.StorageByteCost == 0 {
		cfg.StorageByteCost = 10_000
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 4096
	}
	return &Runtime{
		cfg:      cfg,
		tasks:    make(chan *task, cfg.QueueSize),
		accounts: make(map[string]*account),
	}
}

// Genesis registers an account before the runtime starts. Used for the
// factory root account, which exists before any provisioning happens.
func (r *Runtime) Genesis(id string, balance uint64, contract Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[id] = &account{id: id, balance: balance, contract: contract}
}

// StorageByteCost is the per-byte storage price used for deposit checks.
func (r *Runtime) StorageByteCost() uint64 {
	return r.cfg.StorageByteCost
}

// Balance returns an account's current balance.
func (r *Runtime) Balance(id string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return 0, false
	}
	return a.balance, true
}

// Tip returns the height of the most recently sealed block.
func (r *Runtime) Tip() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

// Blocks subscribes to sealed blocks. The channel is closed on shutdown.
// Delivery is lossless while the runtime is running: a slow consumer
// backpressures block sealing rather than losing events. Only the final
// block sealed during shutdown may be dropped.
func (r *Runtime) Blocks() <-chan Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Block, 64)
	r.subs = append(r.subs, ch)
	return ch
}

// Call issues an asynchronous contract call.
func (r *Runtime) Call(caller, receiver, method string, args any, deposit uint64) *Promise {
	p := newPromise()
	data, err := json.Marshal(args)
	if err != nil {
		p.resolve(Result{Err: fmt.Errorf("marshal args for %s.%s: %w", receiver, method, err)})
		return p
	}
	r.submit(&task{
		kind:     taskCall,
		caller:   caller,
		receiver: receiver,
		method:   method,
		args:     data,
		deposit:  deposit,
		promise:  p,
	})
	return p
}

// CreateAccount issues an asynchronous account creation.
func (r *Runtime) CreateAccount(caller, id string) *Promise {
	p := newPromise()
	r.submit(&task{kind: taskCreateAccount, caller: caller, receiver: id, promise: p})
	return p
}

// Transfer issues an asynchronous balance transfer.
func (r *Runtime) Transfer(from, to string, amount uint64) *Promise {
	p := newPromise()
	r.submit(&task{kind: taskTransfer, caller: from, receiver: to, amount: amount, promise: p})
	return p
}

// DeployContract attaches code and an operation surface to an account.
func (r *Runtime) DeployContract(caller, id string, code []byte, contract Contract) *Promise {
	p := newPromise()
	r.submit(&task{kind: taskDeploy, caller: caller, receiver: id, code: code, contract: contract, promise: p})
	return p
}

// DeleteAccount irreversibly removes an account, refunding any residual
// balance to the beneficiary.
func (r *Runtime) DeleteAccount(caller, id, beneficiary string) *Promise {
	p := newPromise()
	r.submit(&task{kind: taskDelete, caller: caller, receiver: id, beneficiary: beneficiary, promise: p})
	return p
}

func (r *Runtime) submit(t *task) {
	select {
	case r.tasks <- t:
	default:
		t.promise.resolve(Result{Err: fmt.Errorf("runtime queue full: %s.%s dropped", t.receiver, t.method)})
	}
}

// Start runs the scheduler until the context is cancelled. It must be
// called exactly once.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	ticker := time.NewTicker(r.cfg.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.sealBlock(false)
			r.closeSubs()
			return
		case <-ticker.C:
			r.sealBlock(true)
		case t := <-r.tasks:
			r.execute(t)
		}
	}
}

func (r *Runtime) execute(t *task) {
	receipt := Receipt{
		Receiver: t.receiver,
		Caller:   t.caller,
		Method:   t.method,
	}

	value, err := r.run(t, &receipt)
	if err != nil {
		receipt.Error = err.Error()
		r.cfg.Logger.Debug().
			Str("receiver", t.receiver).
			Str("method", receipt.Method).
			Err(err).
			Msg("call failed")
	} else {
		receipt.Success = true
	}

	r.mu.Lock()
	r.pending = append(r.pending, receipt)
	r.mu.Unlock()

	t.promise.resolve(Result{Value: value, Err: err})
}

func (r *Runtime) run(t *task, receipt *Receipt) (json.RawMessage, error) {
	if t.kind == taskCall {
		return r.runCall(t, receipt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch t.kind {
	case taskCreateAccount:
		receipt.Method = "create_account"
		if _, ok := r.accounts[t.receiver]; ok {
			return nil, fmt.Errorf("account %s already exists", t.receiver)
		}
		r.accounts[t.receiver] = &account{id: t.receiver}
		return nil, nil

	case taskTransfer:
		receipt.Method = "transfer"
		from, ok := r.accounts[t.caller]
		if !ok {
			return nil, fmt.Errorf("account %s does not exist", t.caller)
		}
		to, ok := r.accounts[t.receiver]
		if !ok {
			return nil, fmt.Errorf("account %s does not exist", t.receiver)
		}
		if from.balance < t.amount {
			return nil, fmt.Errorf("insufficient balance on %s: have %d, need %d", t.caller, from.balance, t.amount)
		}
		from.balance -= t.amount
		to.balance += t.amount
		return nil, nil

	case taskDeploy:
		receipt.Method = "deploy_contract"
		a, ok := r.accounts[t.receiver]
		if !ok {
			return nil, fmt.Errorf("account %s does not exist", t.receiver)
		}
		a.code = t.code
		a.contract = t.contract
		return nil, nil

	case taskDelete:
		receipt.Method = "delete_account"
		a, ok := r.accounts[t.receiver]
		if !ok {
			return nil, fmt.Errorf("account %s does not exist", t.receiver)
		}
		if b, ok := r.accounts[t.beneficiary]; ok {
			b.balance += a.balance
		}
		delete(r.accounts, t.receiver)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown task kind %d", t.kind)
	}
}

// runCall resolves the receiver under lock, then invokes the contract
// without holding it. The single scheduler goroutine already serializes
// execution, so contracts never see concurrent calls.
func (r *Runtime) runCall(t *task, receipt *Receipt) (json.RawMessage, error) {
	r.mu.Lock()
	a, ok := r.accounts[t.receiver]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("account %s does not exist", t.receiver)
	}
	if a.contract == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("account %s has no contract deployed", t.receiver)
	}
	if t.deposit > 0 {
		from, ok := r.accounts[t.caller]
		if !ok || from.balance < t.deposit {
			r.mu.Unlock()
			return nil, fmt.Errorf("insufficient deposit from %s", t.caller)
		}
		from.balance -= t.deposit
		a.balance += t.deposit
	}
	contract := a.contract
	r.mu.Unlock()

	call := &Call{
		Caller:   t.caller,
		Receiver: t.receiver,
		Method:   t.method,
		Args:     t.args,
		Deposit:  t.deposit,
	}
	value, err := contract.Invoke(call)
	receipt.Logs = call.logs
	return value, err
}

// sealBlock batches the pending receipts into the next block and hands
// it to every subscriber. While running the send blocks, so a slow
// subscriber stalls sealing instead of losing events the matching
// engine depends on. During shutdown (wait false) a stopped subscriber
// must not hang the scheduler, so the final block may be dropped.
func (r *Runtime) sealBlock(wait bool) {
	r.mu.Lock()
	r.height++
	block := Block{
		Height:    r.height,
		Timestamp: time.Now().UnixMilli(),
		Receipts:  r.pending,
	}
	r.pending = nil
	subs := make([]chan Block, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, ch := range subs {
		if wait {
			ch <- block
			continue
		}
		select {
		case ch <- block:
		default:
			r.cfg.Logger.Warn().
				Uint64("height", block.Height).
				Msg("final block dropped for stopped subscriber")
		}
	}
}

func (r *Runtime) closeSubs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}
