package volley

import "testing"

func newDeliveryTestRequest(t *testing.T) (*Request, *[]string, *[]error) {
	t.Helper()
	var successes []string
	var errs []error
	req := NewRequest(MethodGet, "https://example.com/a", stringParser,
		func(result string, intermediate bool) { successes = append(successes, result) },
		func(err error) { errs = append(errs, err) },
	)
	return req, &successes, &errs
}

func TestExecutorDeliveryPostIsOneShot(t *testing.T) {
	req, successes, _ := newDeliveryTestRequest(t)
	d := NewExecutorDelivery(nil)

	resp := &ParsedResponse{Value: "first"}
	d.Post(req, resp)
	d.Post(req, &ParsedResponse{Value: "second"})

	if len(*successes) != 1 || (*successes)[0] != "first" {
		t.Fatalf("successes = %v, want exactly one delivery of \"first\"", *successes)
	}
}

func TestExecutorDeliveryPostDropsAfterCancel(t *testing.T) {
	req, successes, _ := newDeliveryTestRequest(t)
	d := NewExecutorDelivery(nil)

	req.Cancel()
	d.Post(req, &ParsedResponse{Value: "ignored"})

	if len(*successes) != 0 {
		t.Fatalf("successes = %v, want none after cancellation", *successes)
	}
}

func TestExecutorDeliveryPostErrorIsOneShot(t *testing.T) {
	req, _, errs := newDeliveryTestRequest(t)
	d := NewExecutorDelivery(nil)

	d.PostError(req, errBoom)
	d.PostError(req, errBoom)

	if len(*errs) != 1 {
		t.Fatalf("errs = %v, want exactly one delivery", *errs)
	}
}

func TestExecutorDeliveryPostThenPostErrorIsDropped(t *testing.T) {
	req, successes, errs := newDeliveryTestRequest(t)
	d := NewExecutorDelivery(nil)

	d.Post(req, &ParsedResponse{Value: "ok"})
	d.PostError(req, errBoom)

	if len(*successes) != 1 || len(*errs) != 0 {
		t.Fatalf("successes=%v errs=%v, want a single successful delivery and no error", *successes, *errs)
	}
}

func TestExecutorDeliveryPostWithContinuationAlwaysRunsContinuation(t *testing.T) {
	req, successes, _ := newDeliveryTestRequest(t)
	d := NewExecutorDelivery(nil)

	continued := false
	d.PostWithContinuation(req, &ParsedResponse{Value: "stale", Intermediate: true}, func() { continued = true })

	if len(*successes) != 1 || (*successes)[0] != "stale" {
		t.Fatalf("successes = %v, want [stale]", *successes)
	}
	if !continued {
		t.Fatal("continuation was not invoked")
	}
}

func TestExecutorDeliveryRunsThroughConfiguredExecutor(t *testing.T) {
	var ran bool
	executor := ExecutorFunc(func(f func()) { ran = true; f() })
	d := NewExecutorDelivery(executor)

	req, successes, _ := newDeliveryTestRequest(t)
	d.Post(req, &ParsedResponse{Value: "via-executor"})

	if !ran {
		t.Fatal("Executor.Execute was never called")
	}
	if len(*successes) != 1 {
		t.Fatalf("successes = %v, want one delivery", *successes)
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
