package jfif

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"regexp"
	"sort"
	"strings"
)

const (
	nsXMPMeta      = "adobe:ns:meta/"
	nsRDF          = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsXMPNote      = "http://ns.adobe.com/xmp/note/"
	nsXMPImg       = "http://ns.adobe.com/xap/1.0/g/img/"
	nsCameraRaw    = "http://ns.adobe.com/camera-raw-settings/1.0/"
	nsPhotoshop    = "http://ns.adobe.com/photoshop/1.0/"
	xmpToolkitName = "go-jfif 1.0"
)

var xpacketRE = regexp.MustCompile(`(?s)<\?xpacket begin=[^?]*\?>(.*)<\?xpacket end=[^?]*\?>`)

func stripXPacket(s string) string {
	if m := xpacketRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

func rdfRootOf(root *XMLElement) *XMLElement {
	if root.Name.Space == nsRDF && root.Name.Local == "RDF" {
		return root
	}
	if child, ok := root.FirstChild(nsRDF, "RDF"); ok {
		return child
	}
	return nil
}

// assembleExtendedPortions sorts segs by StartingOffset and verifies
// the coverage invariant from spec.md §4.J.1 step 3: the first offset
// is 0, every later offset equals the running sum of prior lengths,
// and the total equals every portion's declared FullLength.
func assembleExtendedPortions(segs []*XMPExtendedSegment) ([]byte, error) {
	sorted := append([]*XMPExtendedSegment(nil), segs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartingOffset < sorted[j].StartingOffset })

	fullLength := sorted[0].FullLength
	buf := make([]byte, 0, fullLength)
	cum := uint32(0)
	for _, s := range sorted {
		if s.FullLength != fullLength {
			return nil, newError(ErrBadExtendedXMP, "extended XMP portions disagree on full_length")
		}
		if s.StartingOffset != cum {
			return nil, newErrorf(ErrBadExtendedXMP, "extended XMP portions are not contiguous: expected offset %d, got %d", cum, s.StartingOffset)
		}
		buf = append(buf, s.Portion...)
		cum += uint32(len(s.Portion))
	}
	if cum != fullLength {
		return nil, newErrorf(ErrBadExtendedXMP, "extended XMP portions sum to %d bytes, want %d", cum, fullLength)
	}
	return buf, nil
}

// DeserializeXMP implements spec.md §4.J.1. It returns found=false if
// there is no APP1 XMP segment, or if its stripped packet is empty.
// The returned packet is a UTF-8 string, matching the wire encoding
// XMPSegment.Packet is stored in.
func DeserializeXMP(md *Metadata, throwOnInvalidSamples bool) (packet string, found bool, err error) {
	baseSeg, _, ferr := FindFirst[*XMPSegment](md)
	if ferr != nil {
		return "", false, ferr
	}
	if baseSeg == nil {
		return "", false, nil
	}
	baseBody := stripXPacket(baseSeg.Packet)
	if baseBody == "" {
		return "", false, nil
	}

	groups := map[string][]*XMPExtendedSegment{}
	for _, s := range FindAll[*XMPExtendedSegment](md) {
		groups[s.Fingerprint] = append(groups[s.Fingerprint], s)
	}

	extendedDocs := map[string]string{}
	for fp, segs := range groups {
		buf, aerr := assembleExtendedPortions(segs)
		if aerr == nil {
			sum := md5.Sum(buf)
			if strings.ToUpper(hex.EncodeToString(sum[:])) != fp {
				aerr = newErrorf(ErrBadExtendedXMP, "extended XMP group %s: MD5 mismatch", fp)
			}
		}
		if aerr != nil {
			if throwOnInvalidSamples {
				return "", false, aerr
			}
			continue
		}
		extendedDocs[fp] = stripXPacket(string(buf))
	}

	baseRoot, perr := ParseXML([]byte(baseBody))
	if perr != nil {
		return "", false, wrapError(ErrBadXMPRoot, "parsing base XMP packet", perr)
	}
	if len(extendedDocs) == 0 {
		out, serr := baseRoot.SerializeUTF8()
		return string(out), true, serr
	}

	rdf := rdfRootOf(baseRoot)
	if rdf == nil {
		return "", false, newError(ErrBadXMPRoot, "base XMP packet has no rdf:RDF element")
	}
	for _, desc := range rdf.SelectChildren(nsRDF, "Description") {
		fp, ok := desc.Attr(nsXMPNote, "HasExtendedXMP")
		if !ok {
			continue
		}
		extBody, ok := extendedDocs[strings.ToUpper(fp)]
		if !ok {
			continue
		}
		extRoot, perr := ParseXML([]byte(extBody))
		if perr != nil {
			if throwOnInvalidSamples {
				return "", false, wrapError(ErrBadExtendedXMP, "parsing extended XMP document", perr)
			}
			continue
		}
		extRDF := rdfRootOf(extRoot)
		if extRDF == nil {
			continue
		}
		extDescs := extRDF.SelectChildren(nsRDF, "Description")
		if len(extDescs) == 0 {
			continue
		}
		extDesc := extDescs[0]
		for _, a := range append([]xml.Attr(nil), extDesc.Attrs...) {
			if _, isNS := namespacePrefixOf(a.Name); isNS {
				continue
			}
			desc.SetAttr(a.Name.Space, a.Name.Local, a.Value)
		}
		for _, c := range append([]*XMLElement(nil), extDesc.Children...) {
			desc.AppendChild(c.Clone())
		}
		desc.RemoveAttr(nsXMPNote, "HasExtendedXMP")
	}
	baseRoot.OptimizeNamespaces()
	out, serr := baseRoot.SerializeUTF8()
	return string(out), true, serr
}

const (
	defaultMaxBaseUTF8Bytes    = 0xFFFF - 2 - (len(IdentXMP) + 1) - 2
	defaultMaxPortionUTF8Bytes = 0xFFFF - 2 - (len(IdentXMPExtended) + 1) - 32 - 8 - 2
)

// getOrCreateExtendedDesc returns the extended-document description
// element paired with base description desc, creating the skeleton
// extended document (and the placeholder HasExtendedXMP attribute on
// desc) on first use.
func getOrCreateExtendedDesc(desc *XMLElement, registry map[*XMLElement]*XMLElement) *XMLElement {
	if extDesc, ok := registry[desc]; ok {
		return extDesc
	}
	extRoot := &XMLElement{Name: xml.Name{Space: nsXMPMeta, Local: "xmpmeta"}}
	extRoot.SetAttr(nsXMPMeta, "xmptk", xmpToolkitName)
	extRoot.EnsureNamespaceDeclared("x", nsXMPMeta)
	extRDF := &XMLElement{Name: xml.Name{Space: nsRDF, Local: "RDF"}}
	extRDF.EnsureNamespaceDeclared("rdf", nsRDF)
	extRoot.AppendChild(extRDF)
	extDesc := &XMLElement{Name: xml.Name{Space: nsRDF, Local: "Description"}}
	extRDF.AppendChild(extDesc)

	registry[desc] = extDesc
	desc.EnsureNamespaceDeclared("xmpNote", nsXMPNote)
	desc.SetAttr(nsXMPNote, "HasExtendedXMP", strings.Repeat("0", 32))
	return extDesc
}

// namespacePrefixesOf returns every namespace URI to prefix mapping
// visible anywhere in the document containing e. Used to resolve the
// prefix a moved subtree needs re-declared on its new tree, since
// encoding/xml has already resolved every Name to a URI but discarded
// the prefix string that bound it.
func namespacePrefixesOf(e *XMLElement) map[string]string {
	root := e
	for root.parent != nil {
		root = root.parent
	}
	return collectPrefixes(root)
}

// declareNamespacesFor ensures every namespace e's own name or any
// attribute/descendant name relies on (skipping xmlns declarations
// themselves) is declared in scope on dest, resolving each URI's
// prefix from uriToPrefix. A single XMP element commonly carries a
// whole subtree of differently-namespaced attributes and children
// (an rdf:Bag of rdf:li, Thumbnails entries in their own namespace),
// so this walks e's subtree rather than checking only e.Name.
func declareNamespacesFor(e *XMLElement, dest *XMLElement, uriToPrefix map[string]string) {
	seen := map[string]bool{}
	var walk func(*XMLElement)
	walk = func(n *XMLElement) {
		if n.Name.Space != "" {
			seen[n.Name.Space] = true
		}
		for _, a := range n.Attrs {
			if _, isNS := namespacePrefixOf(a.Name); isNS {
				continue
			}
			if a.Name.Space != "" {
				seen[a.Name.Space] = true
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	for uri := range seen {
		if prefix, ok := uriToPrefix[uri]; ok {
			dest.EnsureNamespaceDeclared(prefix, uri)
		}
	}
}

// moveAllMatching moves every direct child of every rdf:Description
// under rdf whose (namespace, local name) matches (local == "" matches
// any local name in ns) into that description's extended document.
func moveAllMatching(rdf *XMLElement, ns, local string, registry map[*XMLElement]*XMLElement) bool {
	moved := false
	uriToPrefix := namespacePrefixesOf(rdf)
	for _, desc := range rdf.SelectChildren(nsRDF, "Description") {
		snapshot := append([]*XMLElement(nil), desc.Children...)
		for _, c := range snapshot {
			if c.Name.Space != ns || (local != "" && c.Name.Local != local) {
				continue
			}
			extDesc := getOrCreateExtendedDesc(desc, registry)
			declareNamespacesFor(c, extDesc, uriToPrefix)
			extDesc.AppendChild(c)
			moved = true
		}
	}
	return moved
}

// moveLargest finds the single largest non-namespace-declaration
// attribute or child element across every rdf:Description under rdf
// -- attributes and elements compete on equal footing, "size" being
// serialized UTF-8 byte length (approximated for attributes by their
// value length, which dominates for the bulky base64-ish payloads
// this matters for) -- and moves it to that description's extended
// document. It reports false once nothing is left to move.
func moveLargest(rdf *XMLElement, registry map[*XMLElement]*XMLElement) (bool, error) {
	type candidate struct {
		desc    *XMLElement
		isAttr  bool
		attrIdx int
		child   *XMLElement
		size    int
	}
	var best *candidate
	for _, desc := range rdf.SelectChildren(nsRDF, "Description") {
		for i, a := range desc.Attrs {
			if _, isNS := namespacePrefixOf(a.Name); isNS {
				continue
			}
			if a.Name.Space == nsXMPNote && a.Name.Local == "HasExtendedXMP" {
				continue
			}
			size := len(a.Value)
			if best == nil || size > best.size {
				best = &candidate{desc: desc, isAttr: true, attrIdx: i, size: size}
			}
		}
		for _, c := range desc.Children {
			size, err := c.ByteLen()
			if err != nil {
				return false, err
			}
			if best == nil || size > best.size {
				best = &candidate{desc: desc, isAttr: false, child: c, size: size}
			}
		}
	}
	if best == nil {
		return false, nil
	}
	extDesc := getOrCreateExtendedDesc(best.desc, registry)
	uriToPrefix := namespacePrefixesOf(rdf)
	if best.isAttr {
		a := best.desc.Attrs[best.attrIdx]
		if prefix, ok := uriToPrefix[a.Name.Space]; ok {
			extDesc.EnsureNamespaceDeclared(prefix, a.Name.Space)
		}
		extDesc.SetAttr(a.Name.Space, a.Name.Local, a.Value)
		best.desc.Attrs = append(best.desc.Attrs[:best.attrIdx], best.desc.Attrs[best.attrIdx+1:]...)
	} else {
		declareNamespacesFor(best.child, extDesc, uriToPrefix)
		extDesc.AppendChild(best.child)
	}
	return true, nil
}

// SerializeXMP implements spec.md §4.J.2. An empty xmpString removes
// every XMP and Extended-XMP segment. maxBaseUTF8Bytes <= 0 selects
// the library-computed default.
func SerializeXMP(md *Metadata, xmpString string, maxBaseUTF8Bytes int) error {
	md.RemoveAll(NewSegmentKeyIdent(MarkerAPP1, IdentXMPExtended))

	if xmpString == "" {
		md.RemoveAll(NewSegmentKeyIdent(MarkerAPP1, IdentXMP))
		return nil
	}

	if maxBaseUTF8Bytes <= 0 {
		maxBaseUTF8Bytes = defaultMaxBaseUTF8Bytes
	}

	root, err := ParseXML([]byte(xmpString))
	if err != nil {
		return wrapError(ErrBadXMPRoot, "parsing input XMP document", err)
	}
	if root.Name.Space != nsXMPMeta || root.Name.Local != "xmpmeta" || len(root.Children) != 1 {
		return newError(ErrBadXMPRoot, "XMP document root must be x:xmpmeta with exactly one rdf:RDF child")
	}
	rdf := root.Children[0]
	if rdf.Name.Space != nsRDF || rdf.Name.Local != "RDF" {
		return newError(ErrBadXMPRoot, "XMP document root must be x:xmpmeta with exactly one rdf:RDF child")
	}

	root.EnsureNamespaceDeclared("x", nsXMPMeta)
	root.EnsureNamespaceDeclared("rdf", nsRDF)
	root.SetAttr(nsXMPMeta, "xmptk", xmpToolkitName)
	for _, desc := range rdf.SelectChildren(nsRDF, "Description") {
		desc.RemoveAttr(nsXMPNote, "HasExtendedXMP")
	}
	root.OptimizeNamespaces()

	registry := map[*XMLElement]*XMLElement{}
	fits := func() (bool, error) {
		size, err := root.ByteLen()
		if err != nil {
			return false, err
		}
		return size <= maxBaseUTF8Bytes, nil
	}

	for _, step := range []struct {
		ns, local string
	}{
		{nsXMPImg, "Thumbnails"},
		{nsCameraRaw, ""},
		{nsPhotoshop, "History"},
	} {
		ok, err := fits()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if moveAllMatching(rdf, step.ns, step.local, registry) {
			root.OptimizeNamespaces()
		}
	}
	for {
		ok, err := fits()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		moved, err := moveLargest(rdf, registry)
		if err != nil {
			return err
		}
		if !moved {
			break
		}
		root.OptimizeNamespaces()
	}

	extendedBytes := map[string][]byte{}
	for desc, extDesc := range registry {
		extRoot := extDesc.Parent().Parent()
		data, err := extRoot.SerializeUTF8()
		if err != nil {
			return err
		}
		sum := md5.Sum(data)
		fp := strings.ToUpper(hex.EncodeToString(sum[:]))
		desc.SetAttr(nsXMPNote, "HasExtendedXMP", fp)
		extendedBytes[fp] = data
	}

	basePacket, err := root.SerializeUTF8()
	if err != nil {
		return err
	}
	xmpSeg, _, _ := GetOrCreate[*XMPSegment](md, false,
		[]SegmentKey{
			NewSegmentKeyIdent(MarkerAPP0, IdentJFIF),
			NewSegmentKeyIdent(MarkerAPP0, IdentJFXX),
			exifAppKey,
			NewSegmentKey(MarkerSOI),
		},
		func() *XMPSegment { return &XMPSegment{} })
	xmpSeg.Packet = string(basePacket)

	xmpKey := NewSegmentKeyIdent(MarkerAPP1, IdentXMP)
	xmpExtendedKey := NewSegmentKeyIdent(MarkerAPP1, IdentXMPExtended)
	precedingKeys := []SegmentKey{xmpKey, xmpExtendedKey}
	for fp, data := range extendedBytes {
		fullLength := uint32(len(data))
		offset := uint32(0)
		portionCap := defaultMaxPortionUTF8Bytes
		for len(data) > 0 {
			n := portionCap
			if n > len(data) {
				n = len(data)
			}
			seg := &XMPExtendedSegment{
				Fingerprint:    fp,
				FullLength:     fullLength,
				StartingOffset: offset,
				Portion:        data[:n],
			}
			md.Insert(seg, precedingKeys)
			data = data[n:]
			offset += uint32(n)
		}
	}
	return nil
}
