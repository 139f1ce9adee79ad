package model

// Port is a named, optionally typed input or output of a Process.
type Port struct {
	Name Name
	Type DataType // Generic if unspecified in the document
}

// Process is a sum of Flow or Function (Design Notes §9: "a tagged sum of
// Flow { inputs, outputs, children, connections } and Function { inputs,
// output, impl_ref }"). Both variants implement this marker interface.
type Process interface {
	processName() Name
	isProcess()
}

// Function is a leaf process with an implementation reference. Pure unless
// Impure is set, in which case it may be host-routed (a "context function").
type Function struct {
	Name    Name
	Inputs  []Port
	Outputs []Port
	Docs    string
	Impure  bool
	Impl    ImplRef
}

func (f *Function) processName() Name { return f.Name }
func (*Function) isProcess()          {}

// Flow is a container process composed of sub-processes and connections.
type Flow struct {
	Name        Name
	Inputs      []Port
	Outputs     []Port
	Docs        string
	Version     string
	Authors     []string
	Processes   []*ProcessRef
	Connections []*ConnectionDef
}

func (f *Flow) processName() Name { return f.Name }
func (*Flow) isProcess()          {}

// ProcessName returns p's Name regardless of its concrete kind. Exported
// because processName/isProcess are marker methods kept unexported so no
// package outside model can add new Process implementations.
func ProcessName(p Process) Name { return p.processName() }

// ImplRefKind distinguishes the three ways a Function's implementation may
// be located.
type ImplRefKind int

const (
	// ImplLibrary names a `lib://` reference to a precompiled function.
	ImplLibrary ImplRefKind = iota
	// ImplContext names a `context://` reference to a host-provided function.
	ImplContext
	// ImplSource names a relative path to a WASM-compiled implementation.
	ImplSource
)

// ImplRef is a Function's implementation locator.
type ImplRef struct {
	Kind ImplRefKind
	URL  string
}

// ProcessRef is a reference to a sub-process at a specific site within a
// Flow: a source URL, an optional alias that replaces Name in the local
// scope, and any input initializers attached at this reference site.
type ProcessRef struct {
	Source       string
	Alias        Name // empty if no alias; the loader falls back to the referenced process's own Name
	Initializers map[Name]*Initializer

	// Resolved is filled in by the loader once the referenced Process has
	// been fetched, parsed, and recursively resolved.
	Resolved Process
	Route    Route

	// ID is a stable numeric id assigned by the loader's deterministic
	// pre-order walk (spec.md §4.C step 5), used downstream as a
	// reproducible ordering key independent of map iteration.
	ID int
}

// EffectiveName is Alias if set, else the Resolved process's own Name.
func (p *ProcessRef) EffectiveName() Name {
	if p.Alias != "" {
		return p.Alias
	}
	if p.Resolved != nil {
		return p.Resolved.processName()
	}
	return ""
}

// InitializerKind distinguishes Once (delivered before the first execution)
// from Always (re-delivered after every completed execution).
type InitializerKind int

const (
	Once InitializerKind = iota
	Always
)

// Initializer attaches a declarative value to an input at a specific
// sub-process reference site, not to the function definition itself.
type Initializer struct {
	Kind  InitializerKind
	Value any
}

// ConnectionDef is a connection as written in a definition document: a pair
// of routes local to the enclosing Flow's scope, with optional name,
// optional output selector on the source, and optional destination fan-out.
type ConnectionDef struct {
	Name string
	From Route
	To   []Route
}
