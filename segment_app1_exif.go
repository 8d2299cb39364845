package jfif

import "context"

// ExifSegment is the APP1 "Exif" segment: a single NUL pad byte on the
// wire (between the identifier and the payload), then an opaque EXIF
// byte buffer this package never interprets -- tag decoding is out of
// scope, per spec.md §1.
type ExifSegment struct {
	Payload []byte
}

func (s *ExifSegment) Key() SegmentKey { return NewSegmentKeyIdent(MarkerAPP1, IdentExif) }
func (s *ExifSegment) HasLength() bool { return true }

func (s *ExifSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	pad, err := r.readU8(ctx)
	if err != nil {
		return err
	}
	if pad != 0 {
		return newErrorf(ErrShapeMismatch, "APP1 Exif: expected NUL pad byte, got 0x%02X", pad)
	}
	length, err = length.sub1()
	if err != nil {
		return err
	}
	s.Payload = make([]byte, length.remaining)
	return r.readExact(ctx, s.Payload)
}

func (s *ExifSegment) validateAndComputeBodyLength() (int, error) {
	return 1 + len(s.Payload), nil
}

func (s *ExifSegment) writeBody(ctx context.Context, w *byteWriter) error {
	if err := w.writeU8(ctx, 0); err != nil {
		return err
	}
	return w.writeBytes(ctx, s.Payload)
}
