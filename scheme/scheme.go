// Package scheme implements the declarative bit-level scheme interpreter
// used to decode H.264 SPS/PPS/slice-header syntax. A Scheme is a static,
// ordered list of directives (field reads, conditionals, loops, calculated
// values, and escape-hatch executors) evaluated against a bit reader plus a
// local field map and a cross-NALU global map.
//
// Directives are flattened into a plain []Directive slice of closures rather
// than a tagged-variant tree walked by a dynamic-dispatch evaluator: this
// keeps the interpreter itself to a single Run loop.
package scheme

import (
	"fmt"

	"github.com/bugVanisher/h264avc/bits"
)

// Fields is the local field map populated while evaluating one scheme
// invocation (one NALU). Values are uint32, int32, bool, []interface{} for
// loop-indexed fields, or a nested Fields holding a sub-scheme's result.
type Fields map[string]interface{}

// Uint reads an unsigned field, returning 0 if absent or not a uint32.
func (f Fields) Uint(name string) uint32 {
	v, _ := f[name].(uint32)
	return v
}

// Int reads a signed field, returning 0 if absent or not an int32.
func (f Fields) Int(name string) int32 {
	v, _ := f[name].(int32)
	return v
}

// Bool reads a boolean field, returning false if absent. A u(n) flag stored
// as uint32 counts as true when non-zero.
func (f Fields) Bool(name string) bool {
	switch v := f[name].(type) {
	case bool:
		return v
	case uint32:
		return v != 0
	}
	return false
}

// GlobalState is the cross-NALU store that save_as_global/load_global write
// and read, namespaced (e.g. "sps", "pps") and keyed by an id derived from
// the local state at the time of the save (e.g. seq_parameter_set_id).
type GlobalState struct {
	spaces map[string]map[string]Fields
}

// NewGlobalState returns an empty GlobalState.
func NewGlobalState() *GlobalState {
	return &GlobalState{spaces: make(map[string]map[string]Fields)}
}

// Save stores a copy of f under namespace/key, overwriting any prior entry.
func (g *GlobalState) Save(namespace, key string, f Fields) {
	ns := g.spaces[namespace]
	if ns == nil {
		ns = make(map[string]Fields)
		g.spaces[namespace] = ns
	}
	cp := make(Fields, len(f))
	for k, v := range f {
		cp[k] = v
	}
	ns[key] = cp
}

// Load returns the saved Fields for namespace/key, or nil, false if absent.
func (g *GlobalState) Load(namespace, key string) (Fields, bool) {
	ns := g.spaces[namespace]
	if ns == nil {
		return nil, false
	}
	f, ok := ns[key]
	return f, ok
}

// Context is the mutable state threaded through a scheme Run: the bit
// reader, the local field map being built for this NALU, and the
// persistent global state.
type Context struct {
	R      *bits.Reader
	Local  Fields
	Global *GlobalState
}

// Directive is one step of a Scheme: a closure over a Context that may read
// bits, mutate Local, or mutate Global.
type Directive func(ctx *Context) error

// Scheme is an ordered list of directives, run in sequence against a fresh
// local Fields map for each NALU.
type Scheme []Directive

// Run evaluates the scheme against r, starting from an empty local map and
// the given (persistent) global state. It returns the populated local
// Fields on success, or the first directive error encountered.
func (s Scheme) Run(r *bits.Reader, g *GlobalState) (Fields, error) {
	ctx := &Context{R: r, Local: Fields{}, Global: g}
	for i, d := range s {
		if err := d(ctx); err != nil {
			return ctx.Local, fmt.Errorf("scheme: directive %d: %w", i, err)
		}
	}
	return ctx.Local, nil
}

// Kind identifies how a field directive reads its bits.
type Kind int

const (
	KindU Kind = iota
	KindS
	KindUE
	KindSE
	KindBool
)

// Field reads one value of the given fixed kind (UE, SE, or Bool — kinds
// that carry no width) and stores it at local_state[name].
func Field(name string, kind Kind) Directive {
	return func(ctx *Context) error {
		v, err := readKind(ctx.R, kind, 0)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		ctx.Local[name] = v
		return nil
	}
}

// FieldN reads a fixed-width u(n)/s(n) field and stores it at
// local_state[name].
func FieldN(name string, kind Kind, n int) Directive {
	return func(ctx *Context) error {
		v, err := readKind(ctx.R, kind, n)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		ctx.Local[name] = v
		return nil
	}
}

func readKind(r *bits.Reader, kind Kind, n int) (interface{}, error) {
	switch kind {
	case KindU:
		return r.ReadU(n)
	case KindS:
		return r.ReadS(n)
	case KindUE:
		return r.ReadUE()
	case KindSE:
		return r.ReadSE()
	case KindBool:
		return r.ReadBool()
	default:
		return nil, fmt.Errorf("unknown field kind %d", kind)
	}
}

// Cond is a pure predicate over the local state built so far.
type Cond func(f Fields) bool

// If runs body only when cond(local_state) holds.
func If(cond Cond, body ...Directive) Directive {
	return IfElse(cond, body, nil)
}

// IfElse runs then when cond holds, else otherwise.
func IfElse(cond Cond, then, otherwise []Directive) Directive {
	return func(ctx *Context) error {
		branch := otherwise
		if cond(ctx.Local) {
			branch = then
		}
		for _, d := range branch {
			if err := d(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// CountFn derives a repeat count from the local state built so far.
type CountFn func(f Fields) int

// For repeats body n(local_state) times. Within body, Field/FieldN
// directives that target `name` accumulate into local_state[name] as a
// []interface{} indexed by iteration, via the For-scoped loop variable
// helpers LoopField/LoopFieldN below rather than the bare Field directive.
func For(n CountFn, body func(i int) []Directive) Directive {
	return func(ctx *Context) error {
		count := n(ctx.Local)
		for i := 0; i < count; i++ {
			for _, d := range body(i) {
				if err := d(ctx); err != nil {
					return fmt.Errorf("for[%d]: %w", i, err)
				}
			}
		}
		return nil
	}
}

// LoopField reads one value of kind into local_state[name][i], appending to
// (or extending) a []interface{} slice stored under name.
func LoopField(name string, i int, kind Kind) Directive {
	return LoopFieldN(name, i, kind, 0)
}

// LoopFieldN is LoopField for fixed-width kinds.
func LoopFieldN(name string, i int, kind Kind, n int) Directive {
	return func(ctx *Context) error {
		v, err := readKind(ctx.R, kind, n)
		if err != nil {
			return fmt.Errorf("field %s[%d]: %w", name, i, err)
		}
		slice, _ := ctx.Local[name].([]interface{})
		for len(slice) <= i {
			slice = append(slice, nil)
		}
		slice[i] = v
		ctx.Local[name] = slice
		return nil
	}
}

// Calculate derives a value from existing local_state entries and stores it
// under name.
func Calculate(name string, fn func(f Fields) interface{}) Directive {
	return func(ctx *Context) error {
		ctx.Local[name] = fn(ctx.Local)
		return nil
	}
}

// Execute runs an arbitrary handler over the reader, local state, and
// global state; it may mutate all three. Used for scheme steps that don't
// fit the field/if/for vocabulary (scaling lists, HRD sub-parsing loops).
func Execute(fn func(ctx *Context) error) Directive {
	return fn
}

// KeyFn derives a global-state key (e.g. the stringified seq_parameter_set_id)
// from the local state at the end of a scheme run.
type KeyFn func(f Fields) string

// SaveAsGlobal copies local_state into global_state[namespace][key] at the
// point it runs (normally the last directive in a scheme).
func SaveAsGlobal(namespace string, key KeyFn) Directive {
	return func(ctx *Context) error {
		ctx.Global.Save(namespace, key(ctx.Local), ctx.Local)
		return nil
	}
}

// LoadGlobal merges a previously saved namespace/key entry into local_state
// under the given prefix (so e.g. a loaded SPS doesn't collide with the
// slice header's own field names), returning an error if absent.
func LoadGlobal(namespace string, key KeyFn, prefix string, notFound error) Directive {
	return func(ctx *Context) error {
		saved, ok := ctx.Global.Load(namespace, key(ctx.Local))
		if !ok {
			return notFound
		}
		for k, v := range saved {
			ctx.Local[prefix+k] = v
		}
		return nil
	}
}
