package jfif

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func buildTestMetadata() *Metadata {
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&JFIFSegment{VersionMajor: 1, VersionMinor: 2})
	md.Append(&ExifSegment{Payload: []byte{1, 2, 3}})
	md.Append(&EOISegment{})
	return md
}

func TestMetadataFindAndRemove(t *testing.T) {
	c := qt.New(t)
	md := buildTestMetadata()

	jfif, idx, err := FindFirst[*JFIFSegment](md)
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, 1)
	c.Assert(jfif.VersionMajor, qt.Equals, uint8(1))

	exifKey := NewSegmentKeyIdent(MarkerAPP1, IdentExif)
	c.Assert(md.RemoveAll(exifKey), qt.Equals, 1)
	c.Assert(md.FindFirstIndex(exifKey), qt.Equals, -1)
}

func TestMetadataGetIndexAfterEmptyKeys(t *testing.T) {
	c := qt.New(t)
	md := buildTestMetadata()

	// get_index_after(M, ∅) == 0 only holds when SOI isn't present; SOI
	// is always implicitly included, so here it lands right after it.
	c.Assert(md.GetIndexAfter(nil), qt.Equals, 1)

	empty := NewMetadata()
	c.Assert(empty.GetIndexAfter(nil), qt.Equals, 0)

	unknown := NewSegmentKeyIdent(MarkerAPP2, "nope")
	c.Assert(md.GetIndexAfter([]SegmentKey{unknown}), qt.Equals, 1)
}

func TestMetadataGetIndexAfterBounds(t *testing.T) {
	c := qt.New(t)
	md := buildTestMetadata()
	jfifKey := NewSegmentKeyIdent(MarkerAPP0, IdentJFIF)

	idx := md.GetIndexAfter([]SegmentKey{jfifKey})
	c.Assert(idx >= 0 && idx <= md.Len(), qt.IsTrue)
	for i := idx; i < md.Len(); i++ {
		c.Assert(md.Segments()[i].Key().Equal(jfifKey), qt.IsFalse)
	}
}

func TestMetadataGetOrCreate(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})

	seg, created, idx := GetOrCreate[*JFIFSegment](md, true, nil, func() *JFIFSegment { return &JFIFSegment{} })
	c.Assert(created, qt.IsTrue)
	c.Assert(idx, qt.Equals, 1)
	c.Assert(seg, qt.Not(qt.IsNil))

	again, created2, idx2 := GetOrCreate[*JFIFSegment](md, true, nil, func() *JFIFSegment { return &JFIFSegment{} })
	c.Assert(created2, qt.IsFalse)
	c.Assert(idx2, qt.Equals, idx)
	c.Assert(again, qt.Equals, seg)
}

func TestMetadataRemoveFirst(t *testing.T) {
	c := qt.New(t)
	md := buildTestMetadata()
	soiKey := NewSegmentKey(MarkerSOI)

	c.Assert(md.RemoveFirst(soiKey), qt.IsTrue)
	c.Assert(md.FindFirstIndex(soiKey), qt.Equals, -1)
	c.Assert(md.RemoveFirst(soiKey), qt.IsFalse)
}
