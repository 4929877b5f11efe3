package graph

import (
	"fmt"
	"reflect"
	"strings"
)

// Tuple is an ordered group of values that a single dependency node stands for,
// such as (system, situation). Tuples are classified as system-or-situation
// values regardless of their contents.
type Tuple []any

// T builds a Tuple from its arguments.
func T(values ...any) Tuple { return Tuple(values) }

// KeyFunc derives the value key of a node payload. Two payloads with the same key
// are the same dependency node.
type KeyFunc func(value any) string

// JoinKey is the default KeyFunc: a value's textual form, and for a Tuple the
// underscore-joined textual forms of its members in order. Distinct tuples whose
// members concatenate identically, like ("a_b","c") and ("a","b_c"), share a key;
// an Interner records such collisions.
func JoinKey(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case Tuple:
		parts := make([]string, len(v))
		for i, member := range v {
			parts[i] = JoinKey(member)
		}
		return strings.Join(parts, "_")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Collision records two different payloads that mapped to the same key. The
// first payload keeps the node; the second is merged into it.
type Collision struct {
	Key      string
	Existing any
	Incoming any
}

func (c Collision) String() string {
	return fmt.Sprintf("value key %q collision: %v merged into %v", c.Key, c.Incoming, c.Existing)
}

// Interner maps payloads to value keys and remembers the first payload seen for
// each key.
type Interner struct {
	keyFn      KeyFunc
	values     map[string]any
	collisions []Collision
}

// NewInterner returns an Interner using fn, or JoinKey when fn is nil.
func NewInterner(fn KeyFunc) *Interner {
	if fn == nil {
		fn = JoinKey
	}
	return &Interner{keyFn: fn, values: make(map[string]any)}
}

// Key computes the key of value without interning it.
func (in *Interner) Key(value any) string { return in.keyFn(value) }

// Intern returns the key of value and whether the key was new. A known key with
// a different payload is recorded as a Collision.
func (in *Interner) Intern(value any) (string, bool) {
	key := in.keyFn(value)
	existing, ok := in.values[key]
	if !ok {
		in.values[key] = value
		return key, true
	}
	if !reflect.DeepEqual(existing, value) {
		in.collisions = append(in.collisions, Collision{Key: key, Existing: existing, Incoming: value})
	}
	return key, false
}

// Lookup returns the payload interned under key.
func (in *Interner) Lookup(key string) (any, bool) {
	v, ok := in.values[key]
	return v, ok
}

// Collisions returns the recorded collisions in the order they happened.
func (in *Interner) Collisions() []Collision {
	out := make([]Collision, len(in.collisions))
	copy(out, in.collisions)
	return out
}

// KeyFunc returns the function this Interner derives keys with.
func (in *Interner) KeyFunc() KeyFunc { return in.keyFn }
