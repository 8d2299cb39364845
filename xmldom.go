package jfif

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// XMLElement is a small, mutable XML element tree tailored to the
// XMP packet shapes this package reads and writes: attribute-bearing
// elements with either nested children or a single run of character
// data, never both at structural significance. It is parsed with
// encoding/xml's token-level Decoder rather than xml.Unmarshal, and
// serialized by a hand-written writer, because XMP serialization needs
// control over namespace prefixes and declaration placement that the
// struct-tag API does not expose.
type XMLElement struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*XMLElement
	Text     string

	parent *XMLElement
}

// ParseXML parses a single well-formed XML document (no DOCTYPE,
// comments and processing instructions are skipped) into its root
// element.
func ParseXML(data []byte) (*XMLElement, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root, cur *XMLElement
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapError(ErrBadXMPRoot, "parsing XML", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &XMLElement{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...), parent: cur}
			if cur != nil {
				cur.Children = append(cur.Children, el)
			} else {
				root = el
			}
			cur = el
		case xml.EndElement:
			if cur != nil {
				cur = cur.parent
			}
		case xml.CharData:
			if cur != nil {
				cur.Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, newError(ErrBadXMPRoot, "XML document has no root element")
	}
	return root, nil
}

// Parent returns e's parent element, or nil for a root.
func (e *XMLElement) Parent() *XMLElement { return e.parent }

// SelectChildren returns e's direct children matching (ns, local), in
// document order.
func (e *XMLElement) SelectChildren(ns, local string) []*XMLElement {
	var out []*XMLElement
	for _, c := range e.Children {
		if c.Name.Space == ns && c.Name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns e's first direct child matching (ns, local).
func (e *XMLElement) FirstChild(ns, local string) (*XMLElement, bool) {
	for _, c := range e.Children {
		if c.Name.Space == ns && c.Name.Local == local {
			return c, true
		}
	}
	return nil, false
}

// Attr returns the value of the attribute (ns, local) on e.
func (e *XMLElement) Attr(ns, local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Space == ns && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets the attribute (ns, local) on e to value, replacing any
// existing attribute with that name.
func (e *XMLElement) SetAttr(ns, local, value string) {
	for i, a := range e.Attrs {
		if a.Name.Space == ns && a.Name.Local == local {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Space: ns, Local: local}, Value: value})
}

// RemoveAttr removes the attribute (ns, local) from e, if present.
func (e *XMLElement) RemoveAttr(ns, local string) {
	for i, a := range e.Attrs {
		if a.Name.Space == ns && a.Name.Local == local {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// AppendChild appends child to e's children and reparents it,
// detaching it from any previous parent first. This is the mechanism
// for moving a node across documents: encoding/xml has already
// resolved every Name to its namespace URI rather than a source
// document's prefix, so a moved subtree needs no renaming. Serializing
// it still needs an xmlns declaration for each namespace it uses to be
// present in the new tree (see qualifiedName); AppendChild does not
// add any.
func (e *XMLElement) AppendChild(child *XMLElement) {
	child.detach()
	child.parent = e
	e.Children = append(e.Children, child)
}

// Clone returns a deep copy of e, detached from any document.
func (e *XMLElement) Clone() *XMLElement {
	clone := &XMLElement{
		Name:  e.Name,
		Attrs: append([]xml.Attr(nil), e.Attrs...),
		Text:  e.Text,
	}
	for _, c := range e.Children {
		child := c.Clone()
		child.parent = clone
		clone.Children = append(clone.Children, child)
	}
	return clone
}

func (e *XMLElement) detach() {
	if e.parent == nil {
		return
	}
	siblings := e.parent.Children
	for i, s := range siblings {
		if s == e {
			e.parent.Children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	e.parent = nil
}

// EnsureNamespaceDeclared walks up from e looking for an xmlns
// declaration (default or prefixed) that already binds uri; if none is
// found anywhere in the ancestor chain, it adds an xmlns:prefix
// attribute for uri directly on e.
func (e *XMLElement) EnsureNamespaceDeclared(prefix, uri string) {
	for n := e; n != nil; n = n.parent {
		for _, a := range n.Attrs {
			if a.Value != uri {
				continue
			}
			if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
				return
			}
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Space: "xmlns", Local: prefix}, Value: uri})
}

// OptimizeNamespaces removes xmlns declarations anywhere in the
// subtree rooted at e that rebind a URI already visible from an
// ancestor under the same prefix, collapsing duplicate declarations
// introduced by repeated node moves.
func (e *XMLElement) OptimizeNamespaces() {
	e.optimizeNamespaces(map[string]string{})
}

func (e *XMLElement) optimizeNamespaces(visible map[string]string) {
	var kept []xml.Attr
	local := make(map[string]string, len(visible))
	for k, v := range visible {
		local[k] = v
	}
	for _, a := range e.Attrs {
		prefix, isNS := namespacePrefixOf(a.Name)
		if !isNS {
			kept = append(kept, a)
			continue
		}
		if local[prefix] == a.Value {
			continue // redundant with an ancestor's declaration
		}
		local[prefix] = a.Value
		kept = append(kept, a)
	}
	e.Attrs = kept
	for _, c := range e.Children {
		c.optimizeNamespaces(local)
	}
}

func namespacePrefixOf(name xml.Name) (prefix string, isNS bool) {
	if name.Space == "xmlns" {
		return name.Local, true
	}
	if name.Space == "" && name.Local == "xmlns" {
		return "", true
	}
	return "", false
}

// ByteLen returns the length in bytes of e serialized as UTF-8.
func (e *XMLElement) ByteLen() (int, error) {
	b, err := e.SerializeUTF8()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// SerializeUTF8 renders e (and its subtree) as a UTF-8 encoded XML
// fragment, with no XML declaration and no added indentation.
func (e *XMLElement) SerializeUTF8() ([]byte, error) {
	var buf bytes.Buffer
	prefixes := collectPrefixes(e)
	if err := writeElement(&buf, e, prefixes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// collectPrefixes walks the subtree gathering every xmlns declaration
// present on it into a uri-to-prefix map suitable for qualifiedName.
// It assumes, as XMP packets in practice do, that a given prefix is
// not rebound to a different URI at different depths of the same
// subtree.
func collectPrefixes(e *XMLElement) map[string]string {
	out := map[string]string{}
	var walk func(*XMLElement)
	walk = func(n *XMLElement) {
		for _, a := range n.Attrs {
			if prefix, isNS := namespacePrefixOf(a.Name); isNS {
				out[a.Value] = prefix
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return out
}

func writeElement(buf *bytes.Buffer, e *XMLElement, uriToPrefix map[string]string) error {
	tag, err := qualifiedName(e.Name, uriToPrefix)
	if err != nil {
		return err
	}
	buf.WriteByte('<')
	buf.WriteString(tag)

	attrs := append([]xml.Attr(nil), e.Attrs...)
	sort.SliceStable(attrs, func(i, j int) bool {
		_, iNS := namespacePrefixOf(attrs[i].Name)
		_, jNS := namespacePrefixOf(attrs[j].Name)
		return iNS && !jNS
	})
	for _, a := range attrs {
		var aTag string
		if prefix, isNS := namespacePrefixOf(a.Name); isNS {
			if prefix == "" {
				aTag = "xmlns"
			} else {
				aTag = "xmlns:" + prefix
			}
		} else {
			aTag, err = qualifiedName(a.Name, uriToPrefix)
			if err != nil {
				return err
			}
		}
		buf.WriteByte(' ')
		buf.WriteString(aTag)
		buf.WriteString(`="`)
		xml.EscapeText(buf, []byte(a.Value))
		buf.WriteByte('"')
	}

	if len(e.Children) == 0 && e.Text == "" {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')
	if e.Text != "" {
		if err := xml.EscapeText(buf, []byte(e.Text)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := writeElement(buf, c, uriToPrefix); err != nil {
			return err
		}
	}
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteByte('>')
	return nil
}

func qualifiedName(name xml.Name, uriToPrefix map[string]string) (string, error) {
	if name.Space == "" {
		return name.Local, nil
	}
	prefix, ok := uriToPrefix[name.Space]
	if !ok {
		return "", newErrorf(ErrBadXMPRoot, "namespace %s has no declared prefix in scope", name.Space)
	}
	if prefix == "" {
		return name.Local, nil
	}
	return fmt.Sprintf("%s:%s", prefix, name.Local), nil
}
