package jfif

import (
	"bytes"
	"context"
)

// JFXXFormat is the JFIF extension thumbnail-format tag.
type JFXXFormat uint8

const (
	JFXXFormatJPEG    JFXXFormat = 0x10
	JFXXFormatPalette JFXXFormat = 0x11
	JFXXFormatRGB     JFXXFormat = 0x13
)

// JFXXThumbnail is the tagged variant spec.md §9 prescribes in place of
// three nullable fields: exactly one of JFXXThumbnailJPEG,
// JFXXThumbnailPalette, or JFXXThumbnailRGB, matching the segment's
// format tag.
type JFXXThumbnail interface {
	jfxxFormat() JFXXFormat
}

// JFXXThumbnailJPEG is a nested SOI-...-EOI JPEG stream. Data holds the
// bytes strictly between the nested SOI and the nested EOI.
type JFXXThumbnailJPEG struct {
	Data []byte
}

func (JFXXThumbnailJPEG) jfxxFormat() JFXXFormat { return JFXXFormatJPEG }

// JFXXThumbnailPalette is a 1-byte-per-pixel palettized thumbnail.
type JFXXThumbnailPalette struct {
	Width, Height uint8
	Palette       [768]byte
	Indices       []byte
}

func (JFXXThumbnailPalette) jfxxFormat() JFXXFormat { return JFXXFormatPalette }

// JFXXThumbnailRGB is an uncompressed 3-byte-per-pixel RGB thumbnail.
type JFXXThumbnailRGB struct {
	Width, Height uint8
	RGB           []byte
}

func (JFXXThumbnailRGB) jfxxFormat() JFXXFormat { return JFXXFormatRGB }

// JFXXSegment is the APP0 "JFXX" JFIF extension segment.
type JFXXSegment struct {
	Thumbnail JFXXThumbnail
}

func (s *JFXXSegment) Key() SegmentKey { return NewSegmentKeyIdent(MarkerAPP0, IdentJFXX) }
func (s *JFXXSegment) HasLength() bool { return true }

var jfxxSOI = [2]byte{0xFF, 0xD8}

func (s *JFXXSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	tag, err := r.readU8(ctx)
	if err != nil {
		return err
	}
	length, err = length.sub1()
	if err != nil {
		return err
	}

	switch JFXXFormat(tag) {
	case JFXXFormatJPEG:
		var soi [2]byte
		if err := r.readExact(ctx, soi[:]); err != nil {
			return err
		}
		if length, err = length.sub(2); err != nil {
			return err
		}
		if soi != jfxxSOI {
			return newErrorf(ErrShapeMismatch, "JFXX JPEG thumbnail: expected nested SOI, got %x", soi)
		}
		var dst bytes.Buffer
		res, _, err := r.scan(ctx, &dst, length.remaining, 2, func(w []byte) bool {
			return w[0] == 0xFF && w[1] == 0xD9
		}, true)
		if err != nil {
			return err
		}
		if !res.isPositiveMatch {
			return newError(ErrLengthUnderrun, "JFXX JPEG thumbnail: EOI not found within declared segment length")
		}
		if length, err = length.sub(res.bytesRead + 2); err != nil {
			return err
		}
		s.Thumbnail = JFXXThumbnailJPEG{Data: dst.Bytes()}
		return r.skip(ctx, length.remaining)

	case JFXXFormatPalette:
		var t JFXXThumbnailPalette
		if t.Width, err = r.readU8(ctx); err != nil {
			return err
		}
		if t.Height, err = r.readU8(ctx); err != nil {
			return err
		}
		if err := r.readExact(ctx, t.Palette[:]); err != nil {
			return err
		}
		if length, err = length.sub(2 + 768); err != nil {
			return err
		}
		t.Indices = make([]byte, int(t.Width)*int(t.Height))
		if length, err = length.sub(len(t.Indices)); err != nil {
			return err
		}
		if err := r.readExact(ctx, t.Indices); err != nil {
			return err
		}
		s.Thumbnail = t
		return r.skip(ctx, length.remaining)

	case JFXXFormatRGB:
		var t JFXXThumbnailRGB
		if t.Width, err = r.readU8(ctx); err != nil {
			return err
		}
		if t.Height, err = r.readU8(ctx); err != nil {
			return err
		}
		t.RGB = make([]byte, 3*int(t.Width)*int(t.Height))
		if length, err = length.sub(2 + len(t.RGB)); err != nil {
			return err
		}
		if err := r.readExact(ctx, t.RGB); err != nil {
			return err
		}
		s.Thumbnail = t
		return r.skip(ctx, length.remaining)

	default:
		return newErrorf(ErrUnrecognizedVariant, "JFXX: unknown thumbnail format tag 0x%02X", tag)
	}
}

func (s *JFXXSegment) validateAndComputeBodyLength() (int, error) {
	switch t := s.Thumbnail.(type) {
	case JFXXThumbnailJPEG:
		return 1 + 2 + len(t.Data) + 2, nil
	case JFXXThumbnailPalette:
		want := int(t.Width) * int(t.Height)
		if len(t.Indices) != want {
			return 0, newErrorf(ErrShapeMismatch, "JFXX palette thumbnail: expected %d index bytes for %dx%d, got %d", want, t.Width, t.Height, len(t.Indices))
		}
		return 1 + 2 + 768 + len(t.Indices), nil
	case JFXXThumbnailRGB:
		want := 3 * int(t.Width) * int(t.Height)
		if len(t.RGB) != want {
			return 0, newErrorf(ErrShapeMismatch, "JFXX RGB thumbnail: expected %d RGB bytes for %dx%d, got %d", want, t.Width, t.Height, len(t.RGB))
		}
		return 1 + 2 + len(t.RGB), nil
	default:
		return 0, newError(ErrUnrecognizedVariant, "JFXX: no thumbnail set")
	}
}

func (s *JFXXSegment) writeBody(ctx context.Context, w *byteWriter) error {
	switch t := s.Thumbnail.(type) {
	case JFXXThumbnailJPEG:
		if err := w.writeU8(ctx, uint8(JFXXFormatJPEG)); err != nil {
			return err
		}
		if err := w.writeBytes(ctx, jfxxSOI[:]); err != nil {
			return err
		}
		if err := w.writeBytes(ctx, t.Data); err != nil {
			return err
		}
		return w.writeBytes(ctx, []byte{0xFF, 0xD9})
	case JFXXThumbnailPalette:
		if err := w.writeU8(ctx, uint8(JFXXFormatPalette)); err != nil {
			return err
		}
		if err := w.writeU8(ctx, t.Width); err != nil {
			return err
		}
		if err := w.writeU8(ctx, t.Height); err != nil {
			return err
		}
		if err := w.writeBytes(ctx, t.Palette[:]); err != nil {
			return err
		}
		return w.writeBytes(ctx, t.Indices)
	case JFXXThumbnailRGB:
		if err := w.writeU8(ctx, uint8(JFXXFormatRGB)); err != nil {
			return err
		}
		if err := w.writeU8(ctx, t.Width); err != nil {
			return err
		}
		if err := w.writeU8(ctx, t.Height); err != nil {
			return err
		}
		return w.writeBytes(ctx, t.RGB)
	default:
		return newError(ErrUnrecognizedVariant, "JFXX: no thumbnail set")
	}
}
