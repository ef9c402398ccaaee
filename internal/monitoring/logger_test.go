package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("[V20260829_A1B2C3] registered patient %s", "P-a1b2c3d4")
	if got == "" {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op, not a nil func.
	SetLogger(nil)
	if Logf == nil {
		t.Fatal("Logf must never be nil")
	}
	Logf("dropped")

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("visible")
	if !called {
		t.Error("replacement logger was not called")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should have a default")
	}
	Logf("pipeline log line: %s", "ok")
}
