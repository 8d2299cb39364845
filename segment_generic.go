package jfif

import "context"

// GenericSegment is the catch-all for any marker the registry has no
// factory for: a marker, an optional identifier discovered while
// reading, and an opaque body. It is a variant participating in the
// same Segment capability as every built-in type, not a base class
// built-ins inherit from, per spec.md §9.
type GenericSegment struct {
	key  SegmentKey
	Body []byte
}

// NewGenericSegment builds a generic segment for key with the given body.
func NewGenericSegment(key SegmentKey, body []byte) *GenericSegment {
	return &GenericSegment{key: key, Body: body}
}

func (s *GenericSegment) Key() SegmentKey { return s.key }
func (s *GenericSegment) HasLength() bool { return true }

func (s *GenericSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	s.Body = make([]byte, length.remaining)
	return r.readExact(ctx, s.Body)
}

func (s *GenericSegment) validateAndComputeBodyLength() (int, error) {
	return len(s.Body), nil
}

func (s *GenericSegment) writeBody(ctx context.Context, w *byteWriter) error {
	return w.writeBytes(ctx, s.Body)
}
