// Package debughost is the debugger host core: it discovers script classes
// loaded by a Nashorn target reached over JDWP, recovers their JavaScript
// source, manages breakable locations, drives the pause/resume/step state
// machine, evaluates expressions against a synthesized scope, and extracts
// object property descriptors from remote values. One attached target, one
// pause at a time -- see the module's SPEC_FULL.md for the full contract.
package debughost

import (
	"crypto/md5"
	"encoding/hex"
	"sync"

	"apex-build/internal/jdwp"
)

// Script is an immutable, registered unit of JavaScript source recovered
// from one or more VM classes (recompilation aliases multiple classes onto
// one Script when their recovered source hashes match).
type Script struct {
	ID            string
	URL           string
	Source        string
	ContentsHash  string
	LineIndex     []int // byte offset of the start of each line
	SourceMapURL  string
	SourceURL     string

	mu           sync.Mutex
	breakableLoc []*BreakableLocation
}

// NewScript builds a Script from recovered source text, computing its
// contents hash and line index eagerly (cheap relative to the JDWP calls
// that produced the source).
func NewScript(id, url, source string) *Script {
	s := &Script{
		ID:           id,
		URL:          url,
		Source:       source,
		ContentsHash: contentsHash(source),
	}
	s.LineIndex = buildLineIndex(source)
	s.SourceMapURL, s.SourceURL = parseSourceAnnotations(source)
	return s
}

func contentsHash(src string) string {
	sum := md5.Sum([]byte(src))
	return hex.EncodeToString(sum[:])
}

func buildLineIndex(src string) []int {
	idx := []int{0}
	for i, r := range src {
		if r == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// ScriptLocation is a (line, column) position in a Script's source, both
// 1-based per spec.md section 3.
type ScriptLocation struct {
	Line   int
	Column int
}

// BreakableLocation is a confirmed valid breakpoint target: a VM location
// paired with the script-relative position it corresponds to. Created when
// a script is registered; destroyed only with the script.
type BreakableLocation struct {
	ID             string
	Script         *Script
	VMLocation     jdwp.Location
	ScriptLocation ScriptLocation

	mu          sync.Mutex
	enabled     bool
	enabledOnce bool
	requestID   int32 // JDWP event-request id, valid while enabled
}

// Enabled reports whether a JDWP breakpoint is currently installed at this
// location.
func (b *BreakableLocation) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Breakpoint is the external, CDP-facing view of a BreakableLocation.
type Breakpoint struct {
	ID       string
	ScriptID string
	Location ScriptLocation
}

// ObjectID is a process-unique, pause-scoped identifier handed out for
// every complex value surfaced to the outside world. Meaningless once the
// pause that minted it resumes.
type ObjectID string

// PropertyKind classifies an ObjectPropertyDescriptor.
type PropertyKind int

const (
	PropertyData PropertyKind = iota
	PropertyAccessor
	PropertyGeneric
)

// ObjectPropertyDescriptor describes one named property of a remote object.
// Invariant: Kind == PropertyData implies Value != nil; Kind ==
// PropertyAccessor implies Getter != nil || Setter != nil.
type ObjectPropertyDescriptor struct {
	Kind         PropertyKind
	Configurable bool
	Enumerable   bool
	Writable     bool
	IsOwn        bool
	Value        *ValueNode
	Getter       *ValueNode
	Setter       *ValueNode
}

// ValueNodeKind discriminates the ValueNode tagged union.
type ValueNodeKind int

const (
	ValueSimple ValueNodeKind = iota
	ValueObject
	ValueArray
	ValueFunction
	ValueDate
	ValueRegExp
	ValueError
	ValueEmpty
)

// SimpleScalar is the set of primitive JavaScript value shapes a
// ValueSimple node can carry.
type SimpleScalar struct {
	IsUndefined bool
	IsNull      bool
	Bool        bool
	Number      float64
	String      string
	// Kind selects which field above is meaningful: "undefined", "null",
	// "boolean", "number" or "string".
	Kind string
}

// ValueNode is a marshaled, client-facing representation of a remote value.
type ValueNode struct {
	Kind ValueNodeKind

	Simple SimpleScalar

	ClassName string    // ObjectNode
	ID        ObjectID  // ObjectNode, ArrayNode, FunctionNode

	Length int // ArrayNode

	FunctionName   string // FunctionNode
	FunctionSource string // FunctionNode
}

// Scope is one link of a StackFrame's scope chain.
type ScopeType int

const (
	ScopeLocal ScopeType = iota
	ScopeClosure
	ScopeWith
	ScopeGlobal
)

type Scope struct {
	Type   ScopeType
	Object ObjectID
}

// StackFrame is a marshaled frame of a paused thread.
type StackFrame struct {
	ID                 string
	ThisValue          ValueNode
	ScopeChain         []Scope
	BreakableLocation  *BreakableLocation
	FunctionName       string

	host  *Host
	frame jdwp.FrameID
}
