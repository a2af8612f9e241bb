package volley

// Delivery is the collaborator that hands parsed results, intermediate
// (soft-expired) results, and errors back to request listeners, per §4.5.
// It exists as an interface so the dispatchers never call listener closures
// directly on a dispatcher goroutine — delivery always happens through
// whatever executor the caller wired in.
type Delivery interface {
	// Post delivers a final result. If req has already been delivered (or
	// canceled), implementations must drop the call silently — callers
	// never see a double invocation.
	Post(req *Request, resp *ParsedResponse)

	// PostWithContinuation delivers an intermediate (soft-expired) result
	// and then invokes continuation, which the Queue uses to requeue the
	// request onto the network dispatcher for a fresh fetch (§4.2 step 5).
	// If req is canceled the result is dropped, but continuation still runs.
	PostWithContinuation(req *Request, resp *ParsedResponse, continuation func())

	// PostError delivers a terminal error.
	PostError(req *Request, err error)
}

// Executor runs a delivery func, typically by posting it onto some other
// goroutine or loop rather than running it inline. A plain
// ExecutorFunc(func(f func()) { f() }) runs deliveries synchronously on the
// calling (dispatcher) goroutine, which is the default the Queue falls back
// to but not the recommended configuration — Delivery should almost always
// be given an Executor that hops off the dispatcher goroutine, since a slow
// listener would otherwise stall the pool that drives it (§4.5).
type Executor interface {
	Execute(f func())
}

// ExecutorFunc adapts a plain function into an Executor.
type ExecutorFunc func(f func())

func (e ExecutorFunc) Execute(f func()) { e(f) }

// ExecutorDelivery is the default Delivery: it posts onto the configured
// Executor and guards against double-delivery and delivery-after-cancel via
// Request.markDelivered.
type ExecutorDelivery struct {
	executor Executor
}

// NewExecutorDelivery builds a Delivery that runs every listener callback
// through executor. A nil executor runs callbacks inline, which is only
// appropriate in tests.
func NewExecutorDelivery(executor Executor) *ExecutorDelivery {
	if executor == nil {
		executor = ExecutorFunc(func(f func()) { f() })
	}
	return &ExecutorDelivery{executor: executor}
}

func (d *ExecutorDelivery) Post(req *Request, resp *ParsedResponse) {
	if req.Canceled() {
		return
	}
	if !req.markDelivered() {
		return
	}
	d.executor.Execute(func() {
		if req.onSuccess != nil {
			req.onSuccess(resp)
		}
	})
}

func (d *ExecutorDelivery) PostWithContinuation(req *Request, resp *ParsedResponse, continuation func()) {
	if req.Canceled() {
		if continuation != nil {
			continuation()
		}
		return
	}
	d.executor.Execute(func() {
		if req.onSuccess != nil {
			req.onSuccess(resp)
		}
		if continuation != nil {
			continuation()
		}
	})
}

func (d *ExecutorDelivery) PostError(req *Request, err error) {
	if req.Canceled() {
		return
	}
	if !req.markDelivered() {
		return
	}
	if req.parser != nil {
		err = req.parser.ParseError(err)
	}
	d.executor.Execute(func() {
		if req.onError != nil {
			req.onError(err)
		}
	})
}
