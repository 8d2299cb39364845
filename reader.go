package jfif

import (
	"context"
	"io"
)

// Reader reads JFIF marker segments from a byte stream, one at a time,
// consulting a Registry to construct typed Segment values.
type Reader struct {
	registry *Registry
	r        *byteReader
}

// NewReader wraps r and registry into a Reader. registry is typically
// shared and frozen (see Registry.Freeze); per spec.md §5, a frozen
// registry may be used concurrently by multiple Readers, but a single
// Reader must not be driven from more than one goroutine at a time.
func NewReader(r io.Reader, registry *Registry) *Reader {
	return &Reader{registry: registry, r: newByteReader(r)}
}

// ProbeForStartOfImage peeks at the next two buffered bytes without
// consuming them and reports whether they are 0xFF 0xD8 (SOI), reading
// from the underlying reader as needed to fill the buffer. If the
// stream ends before two bytes are available, it reports false without
// consuming anything.
func (rd *Reader) ProbeForStartOfImage(ctx context.Context) (bool, error) {
	b0, b1, ok, err := rd.r.peek2(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return b0 == 0xFF && b1 == byte(MarkerSOI), nil
}

// readMarker reads the 0xFF indicator byte (skipping any number of
// 0xFF fill bytes that precede the real marker byte) and returns the
// marker.
func (rd *Reader) readMarker(ctx context.Context) (Marker, error) {
	b, err := rd.r.readU8(ctx)
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, newErrorf(ErrMarkerIndicator, "expected 0xFF marker indicator, got 0x%02X", b)
	}
	for {
		m, err := rd.r.readU8(ctx)
		if err != nil {
			return 0, err
		}
		if m != 0xFF {
			return Marker(m), nil
		}
	}
}

// ReadOne reads exactly one marker segment, following spec.md §4.E:
// look the marker up with no identifier first; if that type declares no
// length field, it's done. Otherwise read the length, and if no type
// was found yet, look for an identifier-namespaced mapping (reading the
// identifier out of the body if the marker supports one at all),
// falling back to GenericSegment when nothing matches.
func (rd *Reader) ReadOne(ctx context.Context) (Segment, error) {
	marker, err := rd.readMarker(ctx)
	if err != nil {
		return nil, err
	}

	var seg Segment
	if newFn, ok := rd.registry.LookupNoIdentifier(marker); ok {
		seg = newFn()
		if !seg.HasLength() {
			return seg, nil
		}
	}

	total, err := rd.r.readU16BE(ctx)
	if err != nil {
		return nil, err
	}
	length, err := newSegmentLength(marker, int(total), int(total)-2)
	if err != nil {
		return nil, err
	}

	if seg == nil {
		if rd.registry.HasIdentifier(marker) {
			identifier, n, err := rd.r.readASCIIString(ctx, length.remaining, NULStop)
			if err != nil {
				return nil, err
			}
			if length, err = length.sub(n); err != nil {
				return nil, err
			}
			if newFn, ok := rd.registry.LookupIdentifier(marker, identifier); ok {
				seg = newFn()
			} else {
				seg = NewGenericSegment(NewSegmentKeyIdent(marker, identifier), nil)
			}
		} else {
			seg = NewGenericSegment(NewSegmentKey(marker), nil)
		}
	}

	if err := seg.readBody(ctx, rd.r, length); err != nil {
		return nil, err
	}
	return seg, nil
}
