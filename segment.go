package jfif

import "context"

// Segment is the capability every concrete segment type provides:
// identity (Key, HasLength) plus the read/validate/write triad spec.md
// §4.D describes. This is the tagged-variant replacement for the
// class-hierarchy polymorphism spec.md §9 calls out: there is no base
// "SegmentWithLength"/"SegmentWithoutLength" type, only this one
// capability every concrete kind implements directly.
type Segment interface {
	// Key identifies this segment's marker and, if any, identifier.
	Key() SegmentKey
	// HasLength reports whether the on-wire encoding carries a 16-bit
	// length field after the marker (and, when an identifier is
	// present, after it too).
	HasLength() bool
	// readBody consumes exactly length.remaining bytes from r and
	// populates the segment's fields from them. It may skip residual
	// padding at the end of the declared length.
	readBody(ctx context.Context, r *byteReader, length segmentLength) error
	// validateAndComputeBodyLength returns the serialized body length,
	// in bytes, after any identifier. It fails if internal state is
	// inconsistent.
	validateAndComputeBodyLength() (int, error)
	// writeBody writes the body computed by validateAndComputeBodyLength.
	writeBody(ctx context.Context, w *byteWriter) error
}

// outOfBandWriter is implemented by segments that own a trailing
// out-of-band payload (only SOS, for the entropy-coded scan data).
type outOfBandWriter interface {
	writeOutOfBand(ctx context.Context, w *byteWriter) error
}

// newSegmentFunc constructs a zero-value instance of a concrete segment
// kind. The registry calls it both to produce fresh segments while
// reading and, once, to read a type's Key() at registration time.
type newSegmentFunc func() Segment
