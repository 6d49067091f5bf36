// Package identity derives the string a process uses to identify itself
// to the broker: the Origin stamped on every outgoing Action and the name
// a worker registers under on the snapshot channel.
package identity

import (
	"fmt"
	"os"
	"time"
)

// Resolve builds a process identity out of up to two ambient sources: the
// machine hostname and the MERU_PROCESS environment variable. Four
// outcomes are possible:
//
//   - hostname included, MERU_PROCESS set:   "<hostname>-<process>"
//   - hostname included, MERU_PROCESS unset: "<hostname>-t<time-based suffix>"
//   - hostname excluded, MERU_PROCESS set:   "<process>"
//   - hostname excluded, MERU_PROCESS unset: "t<time-based suffix>"
//
// includeHostname is normally sourced from MERU_HOSTNAME_IN_IDENTITY
// (internal/config). now is injected so callers can get a deterministic
// result in tests.
func Resolve(includeHostname bool, now time.Time) string {
	out := ""
	if includeHostname {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		out += host + "-"
	}

	process := os.Getenv("MERU_PROCESS")
	if process == "" {
		out += fmt.Sprintf("t%02d%02d%06d", now.Minute(), now.Second(), now.Nanosecond()/1000)
	} else {
		out += process
	}

	return out
}

// BuildAddress formats a TCP address the way every broker/worker socket
// constructor expects it: host:port, no scheme.
func BuildAddress(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
