package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/HumbleRetreat/meru/errs"
	"github.com/vmihailenco/msgpack/v5"

	meru "github.com/HumbleRetreat/meru"
)

// Backend selects the wire encoding. Both must produce identical
// in-memory records after a round trip.
type Backend int

const (
	// BackendJSON is the default, textual backend.
	BackendJSON Backend = iota
	// BackendBinary is the opt-in language-native backend (MessagePack),
	// trading portability for speed.
	BackendBinary
)

// ParseBackend maps the MERU_SERIALIZATION_METHOD values ("json",
// "binary") onto a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "json":
		return BackendJSON, nil
	case "binary":
		return BackendBinary, nil
	default:
		return 0, &errs.ConfigError{Key: "MERU_SERIALIZATION_METHOD", Message: fmt.Sprintf("unsupported value %q, use json or binary", s)}
	}
}

var meruObjType = reflect.TypeOf((*meru.MeruObject)(nil)).Elem()

// Codec converts a MeruObject to a byte buffer and back, using the
// configured Registry to resolve type tags on decode.
type Codec struct {
	registry *Registry
	backend  Backend
}

// NewCodec returns a Codec bound to registry, using backend for
// Encode/Decode.
func NewCodec(registry *Registry, backend Backend) *Codec {
	return &Codec{registry: registry, backend: backend}
}

// Encode converts obj (any MeruObject) to an opaque byte buffer. Nested
// MeruObjects are encoded recursively; each one gets its own object_type
// tag independent of its container.
func (c *Codec) Encode(obj any) ([]byte, error) {
	tree := buildTree(reflect.ValueOf(obj))
	switch c.backend {
	case BackendBinary:
		return msgpack.Marshal(tree)
	default:
		return json.Marshal(tree)
	}
}

// Decode parses buf and walks the decoded tree bottom-up: whenever a
// mapping carries the reserved object_type key, it resolves the tag
// against the registry and constructs the corresponding record. A mapping
// without object_type comes back as a plain map[string]any. An unknown
// tag is a *errs.DecodeError.
func (c *Codec) Decode(buf []byte) (any, error) {
	var tree any
	var err error
	switch c.backend {
	case BackendBinary:
		err = msgpack.Unmarshal(buf, &tree)
	default:
		err = json.Unmarshal(buf, &tree)
	}
	if err != nil {
		return nil, &errs.DecodeError{Message: err.Error()}
	}
	return c.resolve(tree)
}

func (c *Codec) resolve(node any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for k, val := range v {
			if k == "object_type" {
				continue
			}
			rv, err := c.resolve(val)
			if err != nil {
				return nil, err
			}
			resolved[k] = rv
		}
		tagRaw, hasTag := v["object_type"]
		if !hasTag {
			return resolved, nil
		}
		tag, _ := tagRaw.(string)
		instance, err := c.registry.New(tag)
		if err != nil {
			return nil, &errs.DecodeError{Tag: tag, Message: err.Error()}
		}
		if err := populate(instance, resolved); err != nil {
			return nil, &errs.DecodeError{Tag: tag, Message: err.Error()}
		}
		return instance, nil
	case map[any]any:
		// MessagePack libraries sometimes decode maps with this shape;
		// normalize to map[string]any and retry.
		norm := make(map[string]any, len(v))
		for k, val := range v {
			norm[fmt.Sprint(k)] = val
		}
		return c.resolve(norm)
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			rv, err := c.resolve(el)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// buildTree walks obj (an Action, StateNode, or plain value reachable
// from one) into a tree of map[string]any / []any / primitives, tagging
// every struct that implements meru.MeruObject with its simple type name
// under the reserved "object_type" key.
func buildTree(v reflect.Value) any {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		m := make(map[string]any, t.NumField()+1)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" && !f.Anonymous {
				continue // unexported
			}
			if f.Anonymous {
				if embedded, ok := buildTree(v.Field(i)).(map[string]any); ok {
					for k, val := range embedded {
						m[k] = val
					}
				}
				continue
			}
			m[fieldName(f)] = buildTree(v.Field(i))
		}
		if t.Implements(meruObjType) || reflect.PointerTo(t).Implements(meruObjType) {
			m["object_type"] = t.Name()
		}
		return m
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return b
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = buildTree(v.Index(i))
		}
		return out
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = buildTree(iter.Value())
		}
		return out
	default:
		return v.Interface()
	}
}

// populate fills instance's exported fields from data, recursing into
// anonymous embedded structs (e.g. meru.Base) so reserved attributes like
// timestamp/origin/topic land in the right place alongside user fields.
func populate(instance any, data map[string]any) error {
	rv := reflect.ValueOf(instance)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("cannot populate non-struct %s", rv.Kind())
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := rv.Field(i)
		if f.Anonymous {
			if fv.Kind() == reflect.Struct {
				if err := populate(fv.Addr().Interface(), data); err != nil {
					return err
				}
			}
			continue
		}
		if f.PkgPath != "" {
			continue // unexported
		}
		val, ok := data[fieldName(f)]
		if !ok {
			continue
		}
		if err := setField(fv, val); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, val any) error {
	if val == nil {
		return nil
	}

	if fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8 {
		switch b := val.(type) {
		case []byte:
			fv.SetBytes(b)
			return nil
		case string:
			decoded, err := base64.StdEncoding.DecodeString(b)
			if err != nil {
				return fmt.Errorf("invalid byte string: %w", err)
			}
			fv.SetBytes(decoded)
			return nil
		default:
			return fmt.Errorf("expected byte string, got %T", val)
		}
	}

	switch fv.Kind() {
	case reflect.String:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		fv.SetString(s)
	case reflect.Bool:
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", val)
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(val)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(val)
		if err != nil {
			return err
		}
		fv.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		switch n := val.(type) {
		case float64:
			fv.SetFloat(n)
		case int64:
			fv.SetFloat(float64(n))
		default:
			return fmt.Errorf("expected number, got %T", val)
		}
	case reflect.Slice:
		arr, ok := val.([]any)
		if !ok {
			return fmt.Errorf("expected list, got %T", val)
		}
		out := reflect.MakeSlice(fv.Type(), len(arr), len(arr))
		for i, el := range arr {
			if err := setField(out.Index(i), el); err != nil {
				return err
			}
		}
		fv.Set(out)
	case reflect.Map:
		m, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("expected mapping, got %T", val)
		}
		out := reflect.MakeMapWithSize(fv.Type(), len(m))
		for k, mv := range m {
			kv := reflect.New(fv.Type().Key()).Elem()
			kv.SetString(k)
			vv := reflect.New(fv.Type().Elem()).Elem()
			if err := setField(vv, mv); err != nil {
				return err
			}
			out.SetMapIndex(kv, vv)
		}
		fv.Set(out)
	case reflect.Interface:
		rv := reflect.ValueOf(val)
		if !rv.IsValid() {
			return nil
		}
		if !rv.Type().AssignableTo(fv.Type()) {
			return fmt.Errorf("type %s not assignable to %s", rv.Type(), fv.Type())
		}
		fv.Set(rv)
	case reflect.Struct:
		m, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("expected mapping, got %T", val)
		}
		return populate(fv.Addr().Interface(), m)
	case reflect.Ptr:
		m, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("expected mapping, got %T", val)
		}
		fv.Set(reflect.New(fv.Type().Elem()))
		return populate(fv.Interface(), m)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

func toInt64(val any) (int64, error) {
	switch n := val.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", val)
	}
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return lowerFirst(f.Name)
	}
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return lowerFirst(f.Name)
	}
	return tag
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
