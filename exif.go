package jfif

// MaxExifBytesPerSegment is the largest EXIF payload chunk that fits in
// a single APP1 "Exif" segment: 0xFFFF (the largest representable
// segment length) minus the 2-byte length field itself, minus the
// "Exif\0" identifier (5 bytes) and the body's single pad byte.
const MaxExifBytesPerSegment = 0xFFFF - 2 - 6

var exifAppKey = NewSegmentKeyIdent(MarkerAPP1, IdentExif)

// DeserializeExif concatenates the payloads of every APP1 "Exif"
// segment in md, in order, skipping any with an empty payload. It
// reports found=false if no Exif segment is present at all.
func DeserializeExif(md *Metadata) (payload []byte, found bool) {
	segs := FindAll[*ExifSegment](md)
	if len(segs) == 0 {
		return nil, false
	}
	for _, s := range segs {
		if len(s.Payload) > 0 {
			payload = append(payload, s.Payload...)
		}
	}
	return payload, true
}

// SerializeExif writes payload into md's APP1 "Exif" segments, chunked
// to at most maxBytesPerSegment bytes each (MaxExifBytesPerSegment if
// maxBytesPerSegment <= 0), per spec.md §4.I steps 2-6. Chunk 0
// locates or creates the Exif segment positioned after {JFIF APP0,
// JFXX APP0, SOI}. Each later chunk reuses the segment immediately
// following the previous chunk's position only if that segment is
// itself an Exif segment; otherwise a new one is inserted right
// there -- a non-Exif segment sitting between two pre-existing Exif
// segments is never skipped over to reach the second one. Any Exif
// segment left after the last chunk's position is removed. An empty
// payload removes every existing Exif segment.
func SerializeExif(md *Metadata, payload []byte, maxBytesPerSegment int) {
	if maxBytesPerSegment <= 0 {
		maxBytesPerSegment = MaxExifBytesPerSegment
	}

	chunks := chunkBytes(payload, maxBytesPerSegment)
	if len(chunks) == 0 {
		md.RemoveAll(exifAppKey)
		return
	}

	firstPrecedingKeys := []SegmentKey{
		NewSegmentKeyIdent(MarkerAPP0, IdentJFIF),
		NewSegmentKeyIdent(MarkerAPP0, IdentJFXX),
		NewSegmentKey(MarkerSOI),
	}
	seg, _, pos := GetOrCreate[*ExifSegment](md, true, firstPrecedingKeys, func() *ExifSegment { return &ExifSegment{} })
	seg.Payload = chunks[0]

	for _, chunk := range chunks[1:] {
		nextIdx := pos + 1
		if nextIdx < md.Len() {
			if next, ok := md.Segments()[nextIdx].(*ExifSegment); ok {
				next.Payload = chunk
				pos = nextIdx
				continue
			}
		}
		md.insertAt(nextIdx, &ExifSegment{Payload: chunk})
		pos = nextIdx
	}

	for i := md.Len() - 1; i > pos; i-- {
		if md.Segments()[i].Key().Equal(exifAppKey) {
			md.removeAt(i)
		}
	}
}

func chunkBytes(b []byte, size int) [][]byte {
	if len(b) == 0 {
		return nil
	}
	var out [][]byte
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}
