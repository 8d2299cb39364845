package jfif

import (
	"sort"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestXMPDeserializeNoneWhenAbsent(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})

	_, found, err := DeserializeXMP(md, true)
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.IsFalse)
}

func TestXMPSerializeEmptyRemovesSegments(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&XMPSegment{Packet: "<x:xmpmeta/>"})
	md.Append(&EOISegment{})

	c.Assert(SerializeXMP(md, "", 0), qt.IsNil)
	c.Assert(FindAll[*XMPSegment](md), qt.HasLen, 0)
}

func TestXMPSerializeRejectsBadRoot(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	err := SerializeXMP(md, `<notxmpmeta/>`, 0)
	c.Assert(err, qt.Not(qt.IsNil))
}

func simpleXMPDoc(attrValue string) string {
	return `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
		`<rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/" dc:title="` + attrValue + `"/>` +
		`</rdf:RDF></x:xmpmeta>`
}

func TestXMPSerializeSmallDocFitsWithoutExtension(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})

	doc := simpleXMPDoc("hello")
	c.Assert(SerializeXMP(md, doc, 0), qt.IsNil)
	c.Assert(FindAll[*XMPSegment](md), qt.HasLen, 1)
	c.Assert(FindAll[*XMPExtendedSegment](md), qt.HasLen, 0)
}

// S5: an oversize document with a tiny max_base_utf8_bytes forces a
// split. Every extended group is internally consistent: offsets start
// at 0, are contiguous, sum to full_length, and the concatenation's
// MD5 matches the fingerprint.
func TestS5ExtendedXMPSplitAndMerge(t *testing.T) {
	c := qt.New(t)
	md := NewMetadata()
	md.Append(&SOISegment{})
	md.Append(&EOISegment{})

	big := strings.Repeat("A", 64000)
	doc := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
		`<rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/" dc:a="` + big + `" dc:b="` + big + `" dc:c="` + big + `"/>` +
		`</rdf:RDF></x:xmpmeta>`

	c.Assert(SerializeXMP(md, doc, 256), qt.IsNil)

	baseSegs := FindAll[*XMPSegment](md)
	c.Assert(baseSegs, qt.HasLen, 1)
	fp, ok := fingerprintOf(baseSegs[0].Packet)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(fp), qt.Equals, 32)

	extSegs := FindAll[*XMPExtendedSegment](md)
	c.Assert(len(extSegs) > 0, qt.IsTrue)
	for _, s := range extSegs {
		c.Assert(s.Fingerprint, qt.Equals, fp)
	}

	sorted := append([]*XMPExtendedSegment(nil), extSegs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartingOffset < sorted[j].StartingOffset })
	cum := uint32(0)
	for _, s := range sorted {
		c.Assert(s.StartingOffset, qt.Equals, cum)
		cum += uint32(len(s.Portion))
	}
	c.Assert(cum, qt.Equals, sorted[0].FullLength)

	// Deserializing reproduces the document's semantic content: all
	// three attributes present, merged back onto the base description.
	merged, found, err := DeserializeXMP(md, true)
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.IsTrue)
	c.Assert(len(merged) > 0, qt.IsTrue)
	c.Assert(strings.Count(merged, big), qt.Equals, 3)
	c.Assert(strings.Contains(merged, "HasExtendedXMP"), qt.IsFalse)
}

// fingerprintOf pulls the xmpNote:HasExtendedXMP attribute value out of
// a UTF-8 base packet.
func fingerprintOf(packet string) (string, bool) {
	const attr = `HasExtendedXMP="`
	idx := strings.Index(packet, attr)
	if idx < 0 {
		return "", false
	}
	rest := packet[idx+len(attr):]
	end := strings.IndexByte(rest, '"')
	if end != 32 {
		return "", false
	}
	return rest[:32], true
}
