package jfif

import (
	"bytes"
	"context"
)

// SOSComponent is one scan component descriptor within an SOS header.
type SOSComponent struct {
	ComponentID       uint8
	DCTableSelector   uint8
	ACTableSelector   uint8
}

// SOSSegment is the Start-Of-Scan segment. Beyond its own header, it
// owns the out-of-band entropy-coded payload that follows it on the
// wire until the next real marker, per spec.md §3/§6.
type SOSSegment struct {
	Components              []SOSComponent
	SpectralSelectionStart   uint8
	SpectralSelectionEnd     uint8
	SuccessiveApproxHigh     uint8
	SuccessiveApproxLow      uint8

	// OutOfBand is the entropy-coded payload, stored with its wire-level
	// byte stuffing and restart markers intact: only the terminating
	// 0xFF of the next real marker is excluded.
	OutOfBand []byte
}

func (s *SOSSegment) Key() SegmentKey { return NewSegmentKey(MarkerSOS) }
func (s *SOSSegment) HasLength() bool { return true }

func (s *SOSSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	count, err := r.readU8(ctx)
	if err != nil {
		return err
	}
	if length, err = length.sub1(); err != nil {
		return err
	}
	s.Components = make([]SOSComponent, count)
	for i := range s.Components {
		id, err := r.readU8(ctx)
		if err != nil {
			return err
		}
		packed, err := r.readU8(ctx)
		if err != nil {
			return err
		}
		if length, err = length.sub(2); err != nil {
			return err
		}
		s.Components[i] = SOSComponent{
			ComponentID:     id,
			DCTableSelector: packed >> 4,
			ACTableSelector: packed & 0x0F,
		}
	}

	if s.SpectralSelectionStart, err = r.readU8(ctx); err != nil {
		return err
	}
	if s.SpectralSelectionEnd, err = r.readU8(ctx); err != nil {
		return err
	}
	if length, err = length.sub(2); err != nil {
		return err
	}
	packedApprox, err := r.readU8(ctx)
	if err != nil {
		return err
	}
	if length, err = length.sub1(); err != nil {
		return err
	}
	s.SuccessiveApproxHigh = packedApprox >> 4
	s.SuccessiveApproxLow = packedApprox & 0x0F

	// Skip any residual padding still inside the declared length before
	// entering the marker-escape scan for the out-of-band payload.
	if err := r.skip(ctx, length.remaining); err != nil {
		return err
	}

	var dst bytes.Buffer
	_, _, err = r.scan(ctx, &dst, 0, 2, func(w []byte) bool {
		return w[0] == 0xFF && w[1] != 0x00 && !IsRestart(Marker(w[1]))
	}, false)
	if err != nil {
		return err
	}
	s.OutOfBand = dst.Bytes()
	return nil
}

func (s *SOSSegment) validateAndComputeBodyLength() (int, error) {
	if s.SuccessiveApproxHigh > 0x0F || s.SuccessiveApproxLow > 0x0F {
		return 0, newError(ErrShapeMismatch, "SOS: successive-approximation nibble overflows a 4-bit field")
	}
	for _, c := range s.Components {
		if c.DCTableSelector > 0x0F || c.ACTableSelector > 0x0F {
			return 0, newErrorf(ErrShapeMismatch, "SOS: component %d huffman selector overflows a 4-bit field", c.ComponentID)
		}
	}
	for i := 0; i+1 < len(s.OutOfBand); i++ {
		if s.OutOfBand[i] == 0xFF {
			next := s.OutOfBand[i+1]
			if next != 0x00 && !IsRestart(Marker(next)) {
				return 0, newErrorf(ErrShapeMismatch, "SOS: out-of-band payload contains an unescaped 0xFF 0x%02X that would collide with framing on write", next)
			}
		}
	}
	return 1 + 2*len(s.Components) + 2 + 1, nil
}

func (s *SOSSegment) writeBody(ctx context.Context, w *byteWriter) error {
	if err := w.writeU8(ctx, uint8(len(s.Components))); err != nil {
		return err
	}
	for _, c := range s.Components {
		if err := w.writeU8(ctx, c.ComponentID); err != nil {
			return err
		}
		if err := w.writeU8(ctx, c.DCTableSelector<<4|c.ACTableSelector); err != nil {
			return err
		}
	}
	if err := w.writeU8(ctx, s.SpectralSelectionStart); err != nil {
		return err
	}
	if err := w.writeU8(ctx, s.SpectralSelectionEnd); err != nil {
		return err
	}
	return w.writeU8(ctx, s.SuccessiveApproxHigh<<4|s.SuccessiveApproxLow)
}

func (s *SOSSegment) writeOutOfBand(ctx context.Context, w *byteWriter) error {
	return w.writeBytes(ctx, s.OutOfBand)
}
