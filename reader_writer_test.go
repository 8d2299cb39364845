package jfif

import (
	"bytes"
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

func decodeHex(c *qt.C, s string) []byte {
	s = removeSpaces(s)
	b := make([]byte, len(s)/2)
	for i := range b {
		hi := hexNibble(s[2*i])
		lo := hexNibble(s[2*i+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func removeSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func hexNibble(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	}
	return 0
}

func readAllSegments(c *qt.C, registry *Registry, in []byte) []Segment {
	rd := NewReader(bytes.NewReader(in), registry)
	var out []Segment
	for {
		seg, err := rd.ReadOne(context.Background())
		c.Assert(err, qt.IsNil)
		out = append(out, seg)
		if seg.Key().Equal(NewSegmentKey(MarkerEOI)) {
			return out
		}
	}
}

func writeAllSegments(c *qt.C, segs []Segment) []byte {
	var buf bytes.Buffer
	wr := NewWriter(&buf)
	for _, seg := range segs {
		c.Assert(wr.WriteOne(context.Background(), seg), qt.IsNil)
	}
	c.Assert(wr.Flush(), qt.IsNil)
	return buf.Bytes()
}

// S1: a minimal SOI/EOI file round-trips byte for byte.
func TestS1MinimalFile(t *testing.T) {
	c := qt.New(t)
	registry := NewDefaultRegistry()
	in := decodeHex(c, "FF D8 FF D9")

	segs := readAllSegments(c, registry, in)
	c.Assert(len(segs), qt.Equals, 2)
	c.Assert(segs[0].Key().Equal(NewSegmentKey(MarkerSOI)), qt.IsTrue)
	c.Assert(segs[1].Key().Equal(NewSegmentKey(MarkerEOI)), qt.IsTrue)

	out := writeAllSegments(c, segs)
	c.Assert(out, qt.DeepEquals, in)
}

// S2: a JFIF APP0 segment round-trips and its fields decode correctly.
func TestS2JFIFRoundTrip(t *testing.T) {
	c := qt.New(t)
	registry := NewDefaultRegistry()
	in := decodeHex(c, "FF D8 FF E0 00 16 4A 46 49 46 00 07 08 01 12 34 56 78 01 02 01 02 03 04 05 06 FF D9")

	segs := readAllSegments(c, registry, in)
	c.Assert(len(segs), qt.Equals, 3)

	jfif, ok := segs[1].(*JFIFSegment)
	c.Assert(ok, qt.IsTrue)
	want := &JFIFSegment{
		VersionMajor:           7,
		VersionMinor:           8,
		PixelDensityUnits:      PixelDensityPerInch,
		HorizontalPixelDensity: 0x1234,
		VerticalPixelDensity:   0x5678,
		ThumbnailWidth:         1,
		ThumbnailHeight:        2,
		ThumbnailRGB:           []byte{1, 2, 3, 4, 5, 6},
	}
	if diff := cmp.Diff(want, jfif); diff != "" {
		t.Fatalf("JFIFSegment mismatch (-want +got):\n%s", diff)
	}

	out := writeAllSegments(c, segs)
	c.Assert(out, qt.DeepEquals, in)
}

// S3: back-to-back streams. ReadAll yields two images; a single ReadOne
// consumes exactly the first block.
func TestS3BackToBackStreams(t *testing.T) {
	c := qt.New(t)
	registry := NewDefaultRegistry()
	block1 := decodeHex(c, "FF D8 FF E0 00 16 4A 46 49 46 00 07 08 01 12 34 56 78 01 02 01 02 03 04 05 06 FF D9")
	block2 := decodeHex(c, "FF D8 FF E0 00 16 4A 46 49 46 00 01 02 01 12 34 56 78 01 02 01 02 03 04 05 06 FF D9")
	in := append(append([]byte{}, block1...), block2...)

	all, err := ReadAll(context.Background(), bytes.NewReader(in), registry)
	c.Assert(err, qt.IsNil)
	c.Assert(len(all), qt.Equals, 2)

	rd := NewReader(bytes.NewReader(in), registry)
	md, err := readImage(context.Background(), rd)
	c.Assert(err, qt.IsNil)
	c.Assert(md.Len(), qt.Equals, 3)
	c.Assert(rd.r.pos, qt.Equals, int64(len(block1)))
}

// S4: SOS out-of-band payload recovers verbatim and reserializes immediately
// after the segment body.
func TestS4SOSRoundTrip(t *testing.T) {
	c := qt.New(t)
	registry := NewDefaultRegistry()
	// SOS header: 1 component {id=1,dc=0,ac=0}, ss=0, se=63, ah=0, al=0,
	// body length = 2(len)+1(count)+2(component)+2(ss/se)+1(approx) = 8
	in := decodeHex(c, "FF D8 FF DA 00 08 01 01 00 00 3F 00 01 02 FF 00 03 FF D0 04 FF D9")

	rd := NewReader(bytes.NewReader(in), registry)
	soi, err := rd.ReadOne(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(soi.Key().Equal(NewSegmentKey(MarkerSOI)), qt.IsTrue)

	sosSeg, err := rd.ReadOne(context.Background())
	c.Assert(err, qt.IsNil)
	sos, ok := sosSeg.(*SOSSegment)
	c.Assert(ok, qt.IsTrue)
	c.Assert(sos.Components, qt.DeepEquals, []SOSComponent{{ComponentID: 1, DCTableSelector: 0, ACTableSelector: 0}})
	c.Assert(sos.SpectralSelectionStart, qt.Equals, uint8(0))
	c.Assert(sos.SpectralSelectionEnd, qt.Equals, uint8(63))
	c.Assert(sos.OutOfBand, qt.DeepEquals, []byte{0x01, 0x02, 0xFF, 0x00, 0x03, 0xFF, 0xD0, 0x04})

	eoiSeg, err := rd.ReadOne(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(eoiSeg.Key().Equal(NewSegmentKey(MarkerEOI)), qt.IsTrue)

	out := writeAllSegments(c, []Segment{soi, sos, eoiSeg})
	c.Assert(out, qt.DeepEquals, in)
}

// A segment whose declared length is 2 reads zero body bytes and validates.
func TestBoundaryZeroLengthBody(t *testing.T) {
	c := qt.New(t)
	registry := NewDefaultRegistry()
	in := decodeHex(c, "FF D8 FF EC 00 02 FF D9")

	segs := readAllSegments(c, registry, in)
	c.Assert(len(segs), qt.Equals, 3)
	generic, ok := segs[1].(*GenericSegment)
	c.Assert(ok, qt.IsTrue)
	c.Assert(generic.Body, qt.HasLen, 0)
	bodyLen, err := generic.validateAndComputeBodyLength()
	c.Assert(err, qt.IsNil)
	c.Assert(bodyLen, qt.Equals, 0)
}

// ensure_buffered(2) returning false at the current position yields
// probe_for_start_of_image() -> false, yields read_one -> none, without
// consuming bytes.
func TestProbeForStartOfImageShortBuffer(t *testing.T) {
	c := qt.New(t)
	registry := NewDefaultRegistry()
	rd := NewReader(bytes.NewReader([]byte{0xFF}), registry)

	isSOI, err := rd.ProbeForStartOfImage(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(isSOI, qt.IsFalse)

	md, err := readImage(context.Background(), rd)
	c.Assert(err, qt.IsNil)
	c.Assert(md, qt.IsNil)
}
