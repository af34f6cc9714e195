package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func waitClosed(t *testing.T, ch chan string, what string) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Errorf("%s: expected closed channel, got a value", what)
		}
	case <-time.After(time.Second):
		t.Fatalf("%s: timeout waiting for channel close", what)
	}
}

func TestDisabledSerialMux_UnsubscribeClosesChannel(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	waitClosed(t, ch, "unsubscribe")

	// second unsubscribe is a no-op
	d.Unsubscribe(id)
}

func TestDisabledSerialMux_CloseClosesAllChannels(t *testing.T) {
	d := NewDisabledSerialMux()
	_, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	waitClosed(t, ch1, "ch1")
	waitClosed(t, ch2, "ch2")

	if err := d.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}

	_, late := d.Subscribe()
	waitClosed(t, late, "subscribe after close")
}

func TestDisabledSerialMux_NoOps(t *testing.T) {
	d := NewDisabledSerialMux()
	if err := d.SendCommand("START"); err != nil {
		t.Errorf("SendCommand: %v", err)
	}
	if err := d.Initialize(); err != nil {
		t.Errorf("Initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Monitor(ctx); err != context.Canceled {
		t.Errorf("Monitor() = %v, want context.Canceled", err)
	}

	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/serial-disabled", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "replay") {
		t.Errorf("disabled route: %d %q", rec.Code, rec.Body.String())
	}
}
