package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("[tracker] new user %d", 3)
	if got != "[tracker] new user 3" {
		t.Errorf("custom logger got %q", got)
	}

	// nil installs a no-op logger
	SetLogger(nil)
	Logf("ignored")
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() { Logf = original; SetDebug(false) }()

	calls := 0
	SetLogger(func(string, ...interface{}) { calls++ })

	SetDebug(false)
	Debugf("frame %d", 1)
	if calls != 0 {
		t.Errorf("Debugf logged while disabled")
	}

	SetDebug(true)
	Debugf("frame %d", 2)
	if calls != 1 {
		t.Errorf("Debugf calls = %d, want 1", calls)
	}
}
