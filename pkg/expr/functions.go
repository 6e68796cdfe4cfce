package expr

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// CallContext carries the evaluation focus into a library function: the
// current context item, its position, the context size, and the opaque
// function context supplied by the caller at evaluation time.
type CallContext struct {
	Item     Item
	Position int
	Size     int
	Function any
}

// Function is a library function. Arguments arrive fully evaluated.
type Function func(cc *CallContext, args []Sequence) (Sequence, error)

var libraryIDs atomic.Uint64

// Library is a named-function table attached to a static context.
//
// A library's identity token participates in compiled-expression cache keys,
// so callers should register their functions once into a shared instance:
// constructing a fresh equivalent library per call defeats caching. A
// library must not be mutated once expressions have been compiled against it.
type Library struct {
	id    uint64
	funcs map[string]Function
}

// NewLibrary creates an empty library with a fresh identity token.
func NewLibrary() *Library {
	return &Library{
		id:    libraryIDs.Add(1),
		funcs: make(map[string]Function),
	}
}

// ID returns the library's stable identity token.
func (l *Library) ID() uint64 {
	return l.id
}

// Register adds or replaces a named function.
func (l *Library) Register(name string, fn Function) {
	l.funcs[name] = fn
}

// Lookup resolves a function by name.
func (l *Library) Lookup(name string) (Function, bool) {
	fn, ok := l.funcs[name]
	return fn, ok
}

var (
	defaultLibrary     *Library
	defaultLibraryOnce sync.Once
)

// DefaultLibrary returns the process-wide built-in function library. It is
// a singleton so that expressions compiled without an explicit library share
// one cache-key identity.
func DefaultLibrary() *Library {
	defaultLibraryOnce.Do(func() {
		defaultLibrary = NewLibrary()
		registerBuiltins(defaultLibrary)
	})
	return defaultLibrary
}

// NewLibraryWithBuiltins creates a fresh library pre-populated with the
// built-in functions, ready for caller additions.
func NewLibraryWithBuiltins() *Library {
	l := NewLibrary()
	registerBuiltins(l)
	return l
}

func registerBuiltins(l *Library) {
	l.Register("count", fnCount)
	l.Register("string", fnString)
	l.Register("number", fnNumber)
	l.Register("boolean", fnBoolean)
	l.Register("not", fnNot)
	l.Register("first", fnFirst)
	l.Register("subsequence", fnSubsequence)
	l.Register("concat", fnConcat)
	l.Register("contains", fnContains)
	l.Register("starts-with", fnStartsWith)
	l.Register("string-length", fnStringLength)
	l.Register("upper-case", fnUpperCase)
	l.Register("lower-case", fnLowerCase)
	l.Register("name", fnName)
	l.Register("position", fnPosition)
	l.Register("last", fnLast)
}

func requireArgs(name string, args []Sequence, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("wrong number of arguments to %s(): got %d", name, len(args))
	}
	return nil
}

func fnCount(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("count", args, 1, 1); err != nil {
		return nil, err
	}
	return Sequence{float64(len(args[0]))}, nil
}

func fnString(cc *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("string", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Sequence{ItemString(cc.Item)}, nil
	}
	return Sequence{SequenceString(args[0])}, nil
}

func fnNumber(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("number", args, 1, 1); err != nil {
		return nil, err
	}
	if len(args[0]) == 0 {
		return nil, fmt.Errorf("number() of empty sequence")
	}
	f, err := ItemNumber(args[0][0])
	if err != nil {
		return nil, err
	}
	return Sequence{f}, nil
}

func fnBoolean(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("boolean", args, 1, 1); err != nil {
		return nil, err
	}
	return Sequence{EffectiveBool(args[0])}, nil
}

func fnNot(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("not", args, 1, 1); err != nil {
		return nil, err
	}
	return Sequence{!EffectiveBool(args[0])}, nil
}

func fnFirst(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("first", args, 1, 1); err != nil {
		return nil, err
	}
	if len(args[0]) == 0 {
		return Sequence{}, nil
	}
	return Sequence{args[0][0]}, nil
}

func fnSubsequence(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("subsequence", args, 2, 3); err != nil {
		return nil, err
	}
	if len(args[1]) == 0 || (len(args) == 3 && len(args[2]) == 0) {
		return nil, fmt.Errorf("subsequence() start and length must not be empty")
	}
	start, err := ItemNumber(args[1][0])
	if err != nil {
		return nil, err
	}
	seq := args[0]
	length := float64(len(seq))
	if len(args) == 3 {
		length, err = ItemNumber(args[2][0])
		if err != nil {
			return nil, err
		}
	}
	// 1-based start, clamped to the sequence bounds.
	lo := int(start) - 1
	hi := lo + int(length)
	if lo < 0 {
		lo = 0
	}
	if hi > len(seq) {
		hi = len(seq)
	}
	if lo >= hi {
		return Sequence{}, nil
	}
	out := make(Sequence, hi-lo)
	copy(out, seq[lo:hi])
	return out, nil
}

func fnConcat(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("concat", args, 2, -1); err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(SequenceString(arg))
	}
	return Sequence{b.String()}, nil
}

func fnContains(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("contains", args, 2, 2); err != nil {
		return nil, err
	}
	return Sequence{strings.Contains(SequenceString(args[0]), SequenceString(args[1]))}, nil
}

func fnStartsWith(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("starts-with", args, 2, 2); err != nil {
		return nil, err
	}
	return Sequence{strings.HasPrefix(SequenceString(args[0]), SequenceString(args[1]))}, nil
}

func fnStringLength(cc *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("string-length", args, 0, 1); err != nil {
		return nil, err
	}
	s := ItemString(cc.Item)
	if len(args) == 1 {
		s = SequenceString(args[0])
	}
	return Sequence{float64(len(s))}, nil
}

func fnUpperCase(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("upper-case", args, 1, 1); err != nil {
		return nil, err
	}
	return Sequence{strings.ToUpper(SequenceString(args[0]))}, nil
}

func fnLowerCase(_ *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("lower-case", args, 1, 1); err != nil {
		return nil, err
	}
	return Sequence{strings.ToLower(SequenceString(args[0]))}, nil
}

func fnName(cc *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("name", args, 0, 1); err != nil {
		return nil, err
	}
	it := cc.Item
	if len(args) == 1 {
		if len(args[0]) == 0 {
			return Sequence{""}, nil
		}
		it = args[0][0]
	}
	if n, ok := it.(*Node); ok {
		return Sequence{n.Name}, nil
	}
	return Sequence{""}, nil
}

func fnPosition(cc *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("position", args, 0, 0); err != nil {
		return nil, err
	}
	return Sequence{float64(cc.Position)}, nil
}

func fnLast(cc *CallContext, args []Sequence) (Sequence, error) {
	if err := requireArgs("last", args, 0, 0); err != nil {
		return nil, err
	}
	return Sequence{float64(cc.Size)}, nil
}
