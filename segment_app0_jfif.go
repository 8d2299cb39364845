package jfif

import "context"

// PixelDensityUnits is the JFIF APP0 density-unit enumeration.
type PixelDensityUnits uint8

const (
	PixelDensityNone    PixelDensityUnits = 0
	PixelDensityPerInch PixelDensityUnits = 1
	PixelDensityPerCM   PixelDensityUnits = 2
)

// JFIFSegment is the APP0 "JFIF" segment: version, pixel density, and an
// optional uncompressed RGB thumbnail.
type JFIFSegment struct {
	VersionMajor        uint8
	VersionMinor        uint8
	PixelDensityUnits   PixelDensityUnits
	HorizontalPixelDensity uint16
	VerticalPixelDensity   uint16
	ThumbnailWidth      uint8
	ThumbnailHeight     uint8
	ThumbnailRGB        []byte
}

func (s *JFIFSegment) Key() SegmentKey { return NewSegmentKeyIdent(MarkerAPP0, IdentJFIF) }
func (s *JFIFSegment) HasLength() bool { return true }

func (s *JFIFSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	var err error
	if s.VersionMajor, err = r.readU8(ctx); err != nil {
		return err
	}
	if s.VersionMinor, err = r.readU8(ctx); err != nil {
		return err
	}
	units, err := r.readU8(ctx)
	if err != nil {
		return err
	}
	s.PixelDensityUnits = PixelDensityUnits(units)
	if s.HorizontalPixelDensity, err = r.readU16BE(ctx); err != nil {
		return err
	}
	if s.VerticalPixelDensity, err = r.readU16BE(ctx); err != nil {
		return err
	}
	if s.ThumbnailWidth, err = r.readU8(ctx); err != nil {
		return err
	}
	if s.ThumbnailHeight, err = r.readU8(ctx); err != nil {
		return err
	}
	n := 3 * int(s.ThumbnailWidth) * int(s.ThumbnailHeight)
	if length, err = length.sub(9 + n); err != nil {
		return err
	}
	s.ThumbnailRGB = make([]byte, n)
	if err := r.readExact(ctx, s.ThumbnailRGB); err != nil {
		return err
	}
	return r.skip(ctx, length.remaining)
}

func (s *JFIFSegment) validateAndComputeBodyLength() (int, error) {
	want := 3 * int(s.ThumbnailWidth) * int(s.ThumbnailHeight)
	if len(s.ThumbnailRGB) != want {
		return 0, newErrorf(ErrShapeMismatch, "JFIF thumbnail: expected %d RGB bytes for %dx%d, got %d", want, s.ThumbnailWidth, s.ThumbnailHeight, len(s.ThumbnailRGB))
	}
	return 9 + len(s.ThumbnailRGB), nil
}

func (s *JFIFSegment) writeBody(ctx context.Context, w *byteWriter) error {
	if err := w.writeU8(ctx, s.VersionMajor); err != nil {
		return err
	}
	if err := w.writeU8(ctx, s.VersionMinor); err != nil {
		return err
	}
	if err := w.writeU8(ctx, uint8(s.PixelDensityUnits)); err != nil {
		return err
	}
	if err := w.writeU16BE(ctx, s.HorizontalPixelDensity); err != nil {
		return err
	}
	if err := w.writeU16BE(ctx, s.VerticalPixelDensity); err != nil {
		return err
	}
	if err := w.writeU8(ctx, s.ThumbnailWidth); err != nil {
		return err
	}
	if err := w.writeU8(ctx, s.ThumbnailHeight); err != nil {
		return err
	}
	return w.writeBytes(ctx, s.ThumbnailRGB)
}
