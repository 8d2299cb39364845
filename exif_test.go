package jfif

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rwcarlsen/goexif/exif"
)

// S6: splitting/truncating across existing Exif segments, preserving
// surrounding non-Exif segments' positions.
func TestS6ExifSplitAndTruncate(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&ExifSegment{Payload: []byte{0, 0, 0}})
	md.Append(&ExifSegment{Payload: []byte{0}})
	md.Append(&ExifSegment{Payload: []byte{0, 0}})
	md.Append(&EOISegment{})

	SerializeExif(md, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}, 4)

	exifSegs := FindAll[*ExifSegment](md)
	c.Assert(len(exifSegs), qt.Equals, 2)
	c.Assert(exifSegs[0].Payload, qt.DeepEquals, []byte{0x11, 0x22, 0x33, 0x44})
	c.Assert(exifSegs[1].Payload, qt.DeepEquals, []byte{0x55, 0x66, 0x77})

	c.Assert(md.Segments()[0].Key().Equal(NewSegmentKey(MarkerSOI)), qt.IsTrue)
	c.Assert(md.Segments()[len(md.Segments())-1].Key().Equal(NewSegmentKey(MarkerEOI)), qt.IsTrue)
}

// A non-Exif segment sitting between two pre-existing Exif segments
// must not be skipped over: spec.md §4.I step 4 only reuses the
// segment immediately following the previous chunk's position, so a
// non-adjacent Exif segment is left stray (and, per step 6, removed
// once it falls after the last written chunk) rather than silently
// adopted and relocated around the segment between them.
func TestS6ExifNonAdjacentSegmentIsNotReused(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&ExifSegment{Payload: []byte{0xAA}})
	md.Append(&GenericSegment{key: NewSegmentKey(MarkerAPP2)})
	md.Append(&ExifSegment{Payload: []byte{0xBB}})
	md.Append(&EOISegment{})

	SerializeExif(md, []byte{0x11, 0x22, 0x33, 0x44}, 2)

	segs := md.Segments()
	c.Assert(len(segs), qt.Equals, 5)
	c.Assert(segs[0].Key().Equal(NewSegmentKey(MarkerSOI)), qt.IsTrue)

	exifSegs := FindAll[*ExifSegment](md)
	c.Assert(len(exifSegs), qt.Equals, 2)
	c.Assert(exifSegs[0].Payload, qt.DeepEquals, []byte{0x11, 0x22})
	c.Assert(exifSegs[1].Payload, qt.DeepEquals, []byte{0x33, 0x44})

	// The APP2 filler segment kept its place immediately after the two
	// Exif chunks, and the old second Exif segment was removed rather
	// than reused in place.
	c.Assert(segs[3].Key().Equal(NewSegmentKey(MarkerAPP2)), qt.IsTrue)
	c.Assert(segs[4].Key().Equal(NewSegmentKey(MarkerEOI)), qt.IsTrue)
}

func TestExifDeserializeConcatenatesInOrder(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&ExifSegment{Payload: []byte{1, 2}})
	md.Append(&ExifSegment{})
	md.Append(&ExifSegment{Payload: []byte{3, 4}})
	md.Append(&EOISegment{})

	payload, found := DeserializeExif(md)
	c.Assert(found, qt.IsTrue)
	c.Assert(payload, qt.DeepEquals, []byte{1, 2, 3, 4})
}

func TestExifDeserializeNoneWhenAbsent(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})

	_, found := DeserializeExif(md)
	c.Assert(found, qt.IsFalse)
}

func TestExifSerializeEmptyRemovesAll(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&ExifSegment{Payload: []byte{1}})
	md.Append(&EOISegment{})

	SerializeExif(md, nil, 0)
	c.Assert(FindAll[*ExifSegment](md), qt.HasLen, 0)
}

// An APP1 Exif buffer of exactly MaxExifBytesPerSegment serializes into
// a single segment; one byte more splits into two.
func TestExifBoundaryMaxBytesPerSegment(t *testing.T) {
	c := qt.New(t)

	exact := make([]byte, MaxExifBytesPerSegment)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})
	SerializeExif(md, exact, 0)
	c.Assert(FindAll[*ExifSegment](md), qt.HasLen, 1)

	oneMore := make([]byte, MaxExifBytesPerSegment+1)
	md2 := NewMetadata()
	md2.Append(&SOISegment{})
	md2.Append(&EOISegment{})
	SerializeExif(md2, oneMore, 0)
	c.Assert(FindAll[*ExifSegment](md2), qt.HasLen, 2)
}

// Cross-validates our split/join against a real EXIF/TIFF decoder: a
// minimal valid little-endian TIFF header with an empty IFD0, wrapped
// in the "Exif\x00\x00" identifier goexif expects, decodes cleanly
// both before and after passing through SerializeExif/DeserializeExif.
func TestExifCrossValidateWithGoexif(t *testing.T) {
	c := qt.New(t)

	tiff := []byte{
		'I', 'I', 0x2A, 0x00, // byte order + magic, little-endian
		0x08, 0x00, 0x00, 0x00, // offset of IFD0
		0x00, 0x00, // IFD0 entry count: 0
		0x00, 0x00, 0x00, 0x00, // next IFD offset: none
	}

	_, err := exif.Decode(bytes.NewReader(append([]byte("Exif\x00\x00"), tiff...)))
	c.Assert(err, qt.IsNil)

	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})
	SerializeExif(md, tiff, 0)

	roundTripped, found := DeserializeExif(md)
	c.Assert(found, qt.IsTrue)
	c.Assert(roundTripped, qt.DeepEquals, tiff)

	_, err = exif.Decode(bytes.NewReader(append([]byte("Exif\x00\x00"), roundTripped...)))
	c.Assert(err, qt.IsNil)
}

func TestExifRoundTrip(t *testing.T) {
	c := qt.New(t)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})
	SerializeExif(md, payload, 100)

	out, found := DeserializeExif(md)
	c.Assert(found, qt.IsTrue)
	c.Assert(out, qt.DeepEquals, payload)
}
