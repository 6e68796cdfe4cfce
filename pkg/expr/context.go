package expr

import (
	"errors"
	"fmt"
	"sort"
)

// ErrContextNotBound is returned when an expression is evaluated before
// SetContext has bound a context item sequence.
var ErrContextNotBound = errors.New("context item sequence is not bound")

// StaticContext is the compile-time environment for an expression: declared
// namespace bindings, declared variable slots, the attached function library
// and the base URI. It is baked into every compiled expression and treated
// as immutable after compilation, so compiled forms can be shared freely.
type StaticContext struct {
	namespaces map[string]string
	library    *Library
	baseURI    string
	slots      map[string]int
	slotNames  []string
}

// NewStaticContext creates a static context. A nil library attaches the
// process-wide default library; the namespace map is copied.
func NewStaticContext(namespaces map[string]string, library *Library, baseURI string) *StaticContext {
	sc := &StaticContext{
		namespaces: make(map[string]string, len(namespaces)),
		library:    library,
		baseURI:    baseURI,
		slots:      make(map[string]int),
	}
	for prefix, uri := range namespaces {
		sc.namespaces[prefix] = uri
	}
	if sc.library == nil {
		sc.library = DefaultLibrary()
	}
	return sc
}

// DeclareVariable declares a variable name, allocating a slot for its value.
// Only the name is known at compile time; values are bound per evaluation.
// Declaring the same name twice returns the existing slot.
func (sc *StaticContext) DeclareVariable(name string) int {
	if slot, ok := sc.slots[name]; ok {
		return slot
	}
	slot := len(sc.slotNames)
	sc.slots[name] = slot
	sc.slotNames = append(sc.slotNames, name)
	return slot
}

// SlotOf returns the slot for a declared variable name.
func (sc *StaticContext) SlotOf(name string) (int, bool) {
	slot, ok := sc.slots[name]
	return slot, ok
}

// SlotCount returns the number of declared variable slots.
func (sc *StaticContext) SlotCount() int {
	return len(sc.slotNames)
}

// VariableNames returns the declared variable names in a stable order.
func (sc *StaticContext) VariableNames() []string {
	names := make([]string, len(sc.slotNames))
	copy(names, sc.slotNames)
	sort.Strings(names)
	return names
}

// NamespaceURI resolves a declared prefix.
func (sc *StaticContext) NamespaceURI(prefix string) (string, bool) {
	uri, ok := sc.namespaces[prefix]
	return uri, ok
}

// Library returns the attached function library.
func (sc *StaticContext) Library() *Library {
	return sc.library
}

// BaseURI returns the static base URI, or "" when none was supplied.
func (sc *StaticContext) BaseURI() string {
	return sc.baseURI
}

// DynamicContext is the per-evaluation state: the context item sequence and
// position, variable values by slot, and an opaque caller-supplied function
// context handed through to library functions. It is owned by exactly one
// evaluation at a time and is never shared.
type DynamicContext struct {
	contextItems Sequence
	contextPos   int
	contextBound bool
	slots        []any
	static       *StaticContext

	// Function is an opaque value passed through to library functions.
	Function any
}

// SetContext binds the context item sequence and the 1-based position of
// the current context item. Any previous binding is replaced.
func (dc *DynamicContext) SetContext(items Sequence, position int) {
	dc.contextItems = items
	dc.contextPos = position
	dc.contextBound = true
}

// ContextBound reports whether SetContext has been called.
func (dc *DynamicContext) ContextBound() bool {
	return dc.contextBound
}

// Reset clears the context binding, every variable slot and the function
// context, returning the dynamic context to its freshly created state.
func (dc *DynamicContext) Reset() {
	dc.contextItems = nil
	dc.contextPos = 0
	dc.contextBound = false
	dc.Function = nil
	dc.ResetVariables()
}

// ResetVariables clears every variable slot.
func (dc *DynamicContext) ResetVariables() {
	for i := range dc.slots {
		dc.slots[i] = nil
	}
}

// SetVariable binds a value to a declared variable.
func (dc *DynamicContext) SetVariable(name string, value any) error {
	slot, ok := dc.static.SlotOf(name)
	if !ok {
		return fmt.Errorf("variable $%s is not declared", name)
	}
	dc.slots[slot] = value
	return nil
}

// evalState tracks the evaluation focus: the current context item, its
// position and the context size. Predicates narrow the focus; the dynamic
// context itself is untouched.
type evalState struct {
	dc   *DynamicContext
	item Item
	pos  int
	size int
}

func newEvalState(dc *DynamicContext) (*evalState, error) {
	if !dc.contextBound {
		return nil, ErrContextNotBound
	}
	st := &evalState{dc: dc, size: len(dc.contextItems), pos: dc.contextPos}
	if st.pos >= 1 && st.pos <= len(dc.contextItems) {
		st.item = dc.contextItems[st.pos-1]
	}
	return st, nil
}

func (st *evalState) callContext() *CallContext {
	return &CallContext{
		Item:     st.item,
		Position: st.pos,
		Size:     st.size,
		Function: st.dc.Function,
	}
}
