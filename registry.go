package jfif

import "fmt"

// Registry maps (marker, optional identifier) to a factory for a typed
// Segment. It replaces the reflection-driven registry spec.md §9 flags
// for redesign: registration draws the marker/identifier straight off
// an instance produced by the factory, with no runtime type
// introspection; HasLength is read from each instance the Reader
// constructs.
type Registry struct {
	noIdent map[Marker]newSegmentFunc
	byIdent map[Marker]map[string]newSegmentFunc
	frozen  bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		noIdent: make(map[Marker]newSegmentFunc),
		byIdent: make(map[Marker]map[string]newSegmentFunc),
	}
}

// RegisterOptions configures a single Register call.
type RegisterOptions struct {
	// Override allows replacing an existing mapping for the same key,
	// and allows a marker to carry both an identifier mapping and a
	// no-identifier mapping simultaneously (normally mutually exclusive;
	// see spec.md §9).
	Override bool
}

// Register adds newFn's segment kind to the registry, reading its key
// from a sample instance. Without Override, it
// fails on an exact duplicate key, and it fails if registering a
// no-identifier mapping for a marker that already has identifier
// mappings (or vice versa) -- a marker cannot host both kinds of
// mapping at once unless the caller opts in.
func (reg *Registry) Register(newFn newSegmentFunc, opts RegisterOptions) error {
	if reg.frozen {
		return newError(ErrTypeMismatch, "registry is frozen")
	}
	sample := newFn()
	key := sample.Key()

	if !key.HasIdentifier() {
		if !opts.Override {
			if _, exists := reg.noIdent[key.Marker]; exists {
				return newErrorf(ErrTypeMismatch, "marker %s already has a no-identifier mapping", key.Marker)
			}
			if idents, exists := reg.byIdent[key.Marker]; exists && len(idents) > 0 {
				return newErrorf(ErrTypeMismatch, "marker %s already has identifier mappings; cannot also register a no-identifier mapping without Override", key.Marker)
			}
		}
		reg.noIdent[key.Marker] = newFn
		return nil
	}

	if !opts.Override {
		if _, exists := reg.noIdent[key.Marker]; exists {
			return newErrorf(ErrTypeMismatch, "marker %s already has a no-identifier mapping; cannot also register an identifier mapping without Override", key.Marker)
		}
		if idents, exists := reg.byIdent[key.Marker]; exists {
			if _, exists := idents[key.Identifier]; exists {
				return newErrorf(ErrTypeMismatch, "marker %s identifier %q is already registered", key.Marker, key.Identifier)
			}
		}
	}
	idents, ok := reg.byIdent[key.Marker]
	if !ok {
		idents = make(map[string]newSegmentFunc)
		reg.byIdent[key.Marker] = idents
	}
	idents[key.Identifier] = newFn
	return nil
}

// LookupNoIdentifier returns the factory registered for marker with no
// identifier, if any.
func (reg *Registry) LookupNoIdentifier(marker Marker) (newSegmentFunc, bool) {
	fn, ok := reg.noIdent[marker]
	return fn, ok
}

// LookupIdentifier returns the factory registered for (marker, identifier).
func (reg *Registry) LookupIdentifier(marker Marker, identifier string) (newSegmentFunc, bool) {
	idents, ok := reg.byIdent[marker]
	if !ok {
		return nil, false
	}
	fn, ok := idents[identifier]
	return fn, ok
}

// HasIdentifier reports whether marker has at least one identifier mapping.
func (reg *Registry) HasIdentifier(marker Marker) bool {
	idents, ok := reg.byIdent[marker]
	return ok && len(idents) > 0
}

// Freeze prevents further mutation of the registry. Frozen registries
// may be shared freely across concurrent readers, per spec.md §5.
func (reg *Registry) Freeze() {
	reg.frozen = true
}

// Frozen reports whether Freeze has been called.
func (reg *Registry) Frozen() bool {
	return reg.frozen
}

// mustRegister panics on registration failure; used only to build the
// package-level default registry, where a failure is a programmer error.
func (reg *Registry) mustRegister(newFn newSegmentFunc) {
	if err := reg.Register(newFn, RegisterOptions{}); err != nil {
		panic(fmt.Sprintf("jfif: default registry: %v", err))
	}
}

// NewDefaultRegistry returns a frozen registry containing every
// built-in segment variant listed in spec.md §3.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.mustRegister(func() Segment { return &SOISegment{} })
	reg.mustRegister(func() Segment { return &EOISegment{} })
	reg.mustRegister(func() Segment { return &JFIFSegment{} })
	reg.mustRegister(func() Segment { return &JFXXSegment{} })
	reg.mustRegister(func() Segment { return &ExifSegment{} })
	reg.mustRegister(func() Segment { return &XMPSegment{} })
	reg.mustRegister(func() Segment { return &XMPExtendedSegment{} })
	reg.mustRegister(func() Segment { return &SOSSegment{} })
	reg.Freeze()
	return reg
}
