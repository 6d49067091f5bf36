package identity

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestResolveWithProcessName(t *testing.T) {
	os.Setenv("MERU_PROCESS", "w1")
	defer os.Unsetenv("MERU_PROCESS")

	got := Resolve(false, time.Now())
	if got != "w1" {
		t.Errorf("Resolve(false) = %q, want %q", got, "w1")
	}
}

func TestResolveIncludesHostname(t *testing.T) {
	os.Setenv("MERU_PROCESS", "w1")
	defer os.Unsetenv("MERU_PROCESS")

	host, err := os.Hostname()
	if err != nil {
		t.Skip("no hostname available in this environment")
	}

	got := Resolve(true, time.Now())
	want := host + "-w1"
	if got != want {
		t.Errorf("Resolve(true) = %q, want %q", got, want)
	}
}

func TestResolveFallsBackToTimeSuffix(t *testing.T) {
	os.Unsetenv("MERU_PROCESS")

	got := Resolve(false, time.Now())
	if !strings.HasPrefix(got, "t") {
		t.Errorf("Resolve fallback = %q, want a t-prefixed suffix", got)
	}
	if len(got) != 1+2+2+6 {
		t.Errorf("Resolve fallback = %q, unexpected length %d", got, len(got))
	}
}

func TestBuildAddress(t *testing.T) {
	if got := BuildAddress("127.0.0.1", 24052); got != "127.0.0.1:24052" {
		t.Errorf("BuildAddress = %q", got)
	}
}
