package jfif

import (
	"context"
	"io"
)

// readImage reads a single JFIF-framed image's worth of segments using
// rd: it probes for a leading SOI, then reads segments in sequence,
// appending each to a fresh Metadata, until EOI is consumed. If the
// stream does not begin with SOI, it returns (nil, nil) without
// consuming anything. rd's underlying buffered reader is reused as-is,
// which matters for ReadAll: a fresh bufio.Reader per image would
// silently drop whatever it had already read ahead into its buffer
// past the image just decoded.
func readImage(ctx context.Context, rd *Reader) (*Metadata, error) {
	isSOI, err := rd.ProbeForStartOfImage(ctx)
	if err != nil {
		return nil, err
	}
	if !isSOI {
		return nil, nil
	}

	md := NewMetadata()
	eoi := NewSegmentKey(MarkerEOI)
	for {
		seg, err := rd.ReadOne(ctx)
		if err != nil {
			return nil, err
		}
		md.Append(seg)
		if seg.Key().Equal(eoi) {
			return md, nil
		}
	}
}

// ReadOne reads a single JFIF-framed image's worth of segments from r.
// If the stream does not begin with SOI, it returns (nil, nil) without
// consuming anything.
func ReadOne(ctx context.Context, r io.Reader, registry *Registry) (*Metadata, error) {
	return readImage(ctx, NewReader(r, registry))
}

// ReadAll reads every consecutive JFIF image found in r, stopping
// cleanly once the remaining input does not begin with SOI, including
// when fewer than two bytes remain. An error while reading an image, or
// a probe failure other than reaching end of stream, is returned
// together with the images read before it.
func ReadAll(ctx context.Context, r io.Reader, registry *Registry) ([]*Metadata, error) {
	rd := NewReader(r, registry)
	var out []*Metadata
	for {
		md, err := readImage(ctx, rd)
		if err != nil {
			return out, err
		}
		if md == nil {
			return out, nil
		}
		out = append(out, md)
	}
}

// WriteOne serializes every segment in md to w, in order, flushing once
// all segments have been written.
func WriteOne(ctx context.Context, w io.Writer, md *Metadata) error {
	wr := NewWriter(w)
	for _, seg := range md.Segments() {
		if err := wr.WriteOne(ctx, seg); err != nil {
			return err
		}
	}
	return wr.Flush()
}
