package resilience

import (
	"context"
	"testing"
)

func TestContext(t *testing.T) {
	caller, cancel := context.WithCancel(context.Background())
	req := newRequest(caller)
	rc := newContext(caller, req)

	if rc.Request() != req {
		t.Error("Request() is not the original request")
	}
	if FromContext(rc.attach(caller)) != rc {
		t.Error("FromContext did not return the attached Context")
	}
	if FromContext(context.Background()) != nil {
		t.Error("FromContext on a bare context is not nil")
	}

	if rc.Bool(KeyFallbackEngaged) {
		t.Error("unset marker reads true")
	}
	rc.Set(KeyFallbackEngaged, true)
	if !rc.Bool(KeyFallbackEngaged) {
		t.Error("marker not stored")
	}

	if got := rc.loadOrStore("k", 1); got != 1 {
		t.Errorf("loadOrStore first = %v", got)
	}
	if got := rc.loadOrStore("k", 2); got != 1 {
		t.Errorf("loadOrStore second = %v, want 1", got)
	}
	if !rc.once("o") || rc.once("o") {
		t.Error("once did not fire exactly once")
	}

	if rc.nextSend() != 1 || rc.nextSend() != 2 || rc.Sends() != 2 {
		t.Error("send counting is wrong")
	}

	if rc.Canceled() {
		t.Error("Canceled() before cancel")
	}
	cancel()
	if !rc.Canceled() || rc.CallerErr() != context.Canceled {
		t.Error("caller cancellation not visible")
	}
}
