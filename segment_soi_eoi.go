package jfif

import "context"

// SOISegment is the Start-Of-Image marker: no length field, no body.
type SOISegment struct{}

func (s *SOISegment) Key() SegmentKey { return NewSegmentKey(MarkerSOI) }
func (s *SOISegment) HasLength() bool { return false }

func (s *SOISegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	return nil
}

func (s *SOISegment) validateAndComputeBodyLength() (int, error) { return 0, nil }

func (s *SOISegment) writeBody(ctx context.Context, w *byteWriter) error { return nil }

// EOISegment is the End-Of-Image marker: no length field, no body.
type EOISegment struct{}

func (s *EOISegment) Key() SegmentKey { return NewSegmentKey(MarkerEOI) }
func (s *EOISegment) HasLength() bool { return false }

func (s *EOISegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	return nil
}

func (s *EOISegment) validateAndComputeBodyLength() (int, error) { return 0, nil }

func (s *EOISegment) writeBody(ctx context.Context, w *byteWriter) error { return nil }
