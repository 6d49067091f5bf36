package wire

import (
	"testing"

	meru "github.com/HumbleRetreat/meru"
)

type dummyAction struct {
	meru.Base
}

type fooState struct {
	meru.StateBase
	Field string `json:"field"`
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.Discover(Builtins()...); err != nil {
		t.Fatalf("Discover(builtins): %v", err)
	}
	if err := r.Register("dummyAction", func() any { return &dummyAction{} }); err != nil {
		t.Fatalf("Register(dummyAction): %v", err)
	}
	if err := r.Register("fooState", func() any { return &fooState{} }); err != nil {
		t.Fatalf("Register(fooState): %v", err)
	}
	return r
}

// TestCodecRoundTripAction mirrors the encode/decode scenario for a bare
// action: the decoded record must be equal to the original in every
// field, even though JSON key order differs from an insertion-ordered
// dict.
func TestCodecRoundTripAction(t *testing.T) {
	registry := newRegistry(t)
	codec := NewCodec(registry, BackendJSON)

	original := meru.New("host-w1", nil, &dummyAction{})

	buf, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, ok := decoded.(*dummyAction)
	if !ok {
		t.Fatalf("Decode returned %T, want *dummyAction", decoded)
	}
	if got.Origin != original.Origin || got.Timestamp != original.Timestamp {
		t.Errorf("round trip mismatch: got %+v, want %+v", got.Base, original.Base)
	}
	if len(got.Topic) != 0 {
		t.Errorf("Topic = %q, want empty", got.Topic)
	}
}

// TestCodecRoundTripBinaryBackend exercises the MessagePack backend with
// the same action, since both backends must agree after a round trip.
func TestCodecRoundTripBinaryBackend(t *testing.T) {
	registry := newRegistry(t)
	codec := NewCodec(registry, BackendBinary)

	original := meru.New("host-w1", []byte("topic-a"), &dummyAction{})

	buf, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := codec.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.(*dummyAction)
	if !ok {
		t.Fatalf("Decode returned %T, want *dummyAction", decoded)
	}
	if string(got.Topic) != "topic-a" {
		t.Errorf("Topic = %q, want %q", got.Topic, "topic-a")
	}
}

// TestCodecNestedStateNode exercises a StateUpdate action carrying a
// state-node instance: each nested MeruObject must resolve its own
// object_type tag independently of its container.
func TestCodecNestedStateNode(t *testing.T) {
	registry := newRegistry(t)
	codec := NewCodec(registry, BackendJSON)

	update := meru.NewStateUpdate("broker", []meru.StateNode{&fooState{Field: "v"}})

	buf, err := codec.Encode(update)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := codec.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, ok := decoded.(*meru.StateUpdate)
	if !ok {
		t.Fatalf("Decode returned %T, want *meru.StateUpdate", decoded)
	}
	if len(got.Nodes) != 1 {
		t.Fatalf("Nodes has %d entries, want 1", len(got.Nodes))
	}
	node, ok := got.Nodes[0].(*fooState)
	if !ok {
		t.Fatalf("Nodes[0] is %T, want *fooState", got.Nodes[0])
	}
	if node.Field != "v" {
		t.Errorf("Field = %q, want %q", node.Field, "v")
	}
}

// TestCodecDecodeUnknownTag checks that an unresolvable object_type
// becomes a *errs.DecodeError rather than a partially-built value.
func TestCodecDecodeUnknownTag(t *testing.T) {
	registry := newRegistry(t)
	codec := NewCodec(registry, BackendJSON)

	_, err := codec.Decode([]byte(`{"object_type":"NeverRegistered"}`))
	if err == nil {
		t.Fatal("Decode of unknown tag returned no error")
	}
}

// TestCodecDecodePlainMapping checks that a mapping without object_type
// decodes as a plain map, per the decode contract.
func TestCodecDecodePlainMapping(t *testing.T) {
	registry := newRegistry(t)
	codec := NewCodec(registry, BackendJSON)

	decoded, err := codec.Decode([]byte(`{"a":1,"b":"x"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("Decode returned %T, want map[string]any", decoded)
	}
	if m["b"] != "x" {
		t.Errorf("m[b] = %v, want x", m["b"])
	}
}

func TestRegistryDuplicateTag(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("X", func() any { return &dummyAction{} }); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register("X", func() any { return &dummyAction{} }); err == nil {
		t.Fatal("second Register of the same tag returned no error")
	}
}

func TestRegistryUnknownTag(t *testing.T) {
	r := NewRegistry()
	if _, err := r.New("Nope"); err == nil {
		t.Fatal("New of an unregistered tag returned no error")
	}
}
