package jfif

import (
	"context"
	"io"
)

// Writer serializes Segment values to a byte stream, following
// spec.md §4.F.
type Writer struct {
	w *byteWriter
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: newByteWriter(w)}
}

// WriteOne writes a single segment: marker, optional length, optional
// identifier, body, and any trailing out-of-band payload.
func (wr *Writer) WriteOne(ctx context.Context, seg Segment) error {
	key := seg.Key()

	if !seg.HasLength() {
		if err := wr.w.writeU8(ctx, 0xFF); err != nil {
			return err
		}
		if err := wr.w.writeU8(ctx, uint8(key.Marker)); err != nil {
			return err
		}
		return wr.writeOutOfBand(ctx, seg)
	}

	bodyLen, err := seg.validateAndComputeBodyLength()
	if err != nil {
		return err
	}
	identLen := 0
	if key.HasIdentifier() {
		identLen = len(key.Identifier) + 1
	}
	total := 2 + identLen + bodyLen
	if total > 0xFFFF {
		return newErrorf(ErrOversizedSegment, "segment %s: total length %d exceeds 65535", key, total)
	}

	if err := wr.w.writeU8(ctx, 0xFF); err != nil {
		return err
	}
	if err := wr.w.writeU8(ctx, uint8(key.Marker)); err != nil {
		return err
	}
	if err := wr.w.writeU16BE(ctx, uint16(total)); err != nil {
		return err
	}
	if key.HasIdentifier() {
		if err := wr.w.writeASCIIStringNUL(ctx, key.Identifier); err != nil {
			return err
		}
	}
	if err := seg.writeBody(ctx, wr.w); err != nil {
		return err
	}
	return wr.writeOutOfBand(ctx, seg)
}

func (wr *Writer) writeOutOfBand(ctx context.Context, seg Segment) error {
	if oob, ok := seg.(outOfBandWriter); ok {
		return oob.writeOutOfBand(ctx, wr.w)
	}
	return nil
}

// Flush flushes any buffered output to the underlying writer. Callers
// must call Flush after their last WriteOne (file.go's WriteOne does
// this for them, writing a whole Metadata in one call).
func (wr *Writer) Flush() error {
	return wr.w.flush()
}
