package jfif

import "context"

// XMPSegment is the APP1 "http://ns.adobe.com/xap/1.0/" segment: a
// single UTF-8 XMP packet string (the base description when the
// document has been split with Extended-XMP).
type XMPSegment struct {
	Packet string
}

func (s *XMPSegment) Key() SegmentKey { return NewSegmentKeyIdent(MarkerAPP1, IdentXMP) }
func (s *XMPSegment) HasLength() bool { return true }

func (s *XMPSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	b := make([]byte, length.remaining)
	if err := r.readExact(ctx, b); err != nil {
		return err
	}
	s.Packet = string(b)
	return nil
}

func (s *XMPSegment) validateAndComputeBodyLength() (int, error) {
	if s.Packet == "" {
		return 0, newError(ErrShapeMismatch, "APP1 XMP: packet must not be empty")
	}
	return len(s.Packet), nil
}

func (s *XMPSegment) writeBody(ctx context.Context, w *byteWriter) error {
	return w.writeBytes(ctx, []byte(s.Packet))
}
