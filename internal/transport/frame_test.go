package transport

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("topic"), []byte("payload")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	parts, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if string(parts[0]) != "topic" || string(parts[1]) != "payload" {
		t.Errorf("got parts %q, %q", parts[0], parts[1])
	}
}

func TestWriteReadFrameEmptyMeansSubscribeAll(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parts, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(parts) != 0 {
		t.Errorf("got %d parts, want 0", len(parts))
	}
}

func TestReadFrameRejectsOversizedPart(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("ReadFrame accepted an implausibly large part length")
	}
}

func TestAcceptsTopicPrefixFiltering(t *testing.T) {
	cases := []struct {
		filters [][]byte
		topic   string
		want    bool
	}{
		{nil, "anything", true},
		{[][]byte{[]byte("state")}, "state", true},
		{[][]byte{[]byte("state")}, "stateUpdate", true},
		{[][]byte{[]byte("state")}, "other", false},
	}
	for _, c := range cases {
		if got := accepts(c.filters, []byte(c.topic)); got != c.want {
			t.Errorf("accepts(%v, %q) = %v, want %v", c.filters, c.topic, got, c.want)
		}
	}
}
