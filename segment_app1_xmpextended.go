package jfif

import (
	"context"
	"strings"
)

// XMPExtendedSegment is one portion of an Adobe Extended-XMP document:
// the APP1 "http://ns.adobe.com/xmp/extension/" segment. Several of
// these, sharing a Fingerprint and sorted by StartingOffset, together
// carry a base XMP document's overflow content; see xmp.go.
type XMPExtendedSegment struct {
	// Fingerprint is the 32-character uppercase-hex MD5 digest over the
	// full concatenated extended document shared by all of its portions.
	Fingerprint string
	// FullLength is the byte length of the full concatenated extended document.
	FullLength uint32
	// StartingOffset is this portion's offset within the full document.
	StartingOffset uint32
	// Portion is this segment's slice of the full document.
	Portion []byte
}

func (s *XMPExtendedSegment) Key() SegmentKey {
	return NewSegmentKeyIdent(MarkerAPP1, IdentXMPExtended)
}
func (s *XMPExtendedSegment) HasLength() bool { return true }

const xmpExtendedFingerprintLen = 32

func (s *XMPExtendedSegment) readBody(ctx context.Context, r *byteReader, length segmentLength) error {
	fp, n, err := r.readASCIIString(ctx, xmpExtendedFingerprintLen, NULTrimTrailing)
	if err != nil {
		return err
	}
	if length, err = length.sub(n); err != nil {
		return err
	}
	if !isHex32(fp) {
		return newErrorf(ErrBadExtendedXMP, "Extended-XMP: %q is not 32 ASCII hex digits", fp)
	}
	s.Fingerprint = strings.ToUpper(fp)

	if s.FullLength, err = r.readU32BE(ctx); err != nil {
		return err
	}
	if length, err = length.sub(4); err != nil {
		return err
	}
	if s.StartingOffset, err = r.readU32BE(ctx); err != nil {
		return err
	}
	if length, err = length.sub(4); err != nil {
		return err
	}
	s.Portion = make([]byte, length.remaining)
	return r.readExact(ctx, s.Portion)
}

func isHex32(s string) bool {
	if len(s) != xmpExtendedFingerprintLen {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func (s *XMPExtendedSegment) validateAndComputeBodyLength() (int, error) {
	if !isHex32(s.Fingerprint) {
		return 0, newErrorf(ErrBadExtendedXMP, "Extended-XMP: fingerprint %q is not 32 hex digits", s.Fingerprint)
	}
	return xmpExtendedFingerprintLen + 4 + 4 + len(s.Portion), nil
}

func (s *XMPExtendedSegment) writeBody(ctx context.Context, w *byteWriter) error {
	if err := w.writeBytes(ctx, []byte(strings.ToUpper(s.Fingerprint))); err != nil {
		return err
	}
	if err := w.writeU32BE(ctx, s.FullLength); err != nil {
		return err
	}
	if err := w.writeU32BE(ctx, s.StartingOffset); err != nil {
		return err
	}
	return w.writeBytes(ctx, s.Portion)
}
