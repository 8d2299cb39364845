package jfif

// Metadata is an ordered, mutable sequence of segments. There is no
// uniqueness constraint on keys; order is meaningful and is the
// caller-visible authoritative order, per spec.md §5.
type Metadata struct {
	segments []Segment
}

// NewMetadata returns an empty Metadata.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// Segments returns the segment list in order. The returned slice
// aliases Metadata's internal storage; callers must not retain it
// across further mutation of m.
func (m *Metadata) Segments() []Segment {
	return m.segments
}

// Len returns the number of segments.
func (m *Metadata) Len() int {
	return len(m.segments)
}

// Append adds seg to the end of the list.
func (m *Metadata) Append(seg Segment) {
	m.segments = append(m.segments, seg)
}

// FindAll returns every segment, in position order, whose key equals
// T's key. T must be a concrete Segment type whose Key() method does
// not depend on instance state -- true of every built-in segment type
// (GenericSegment excepted; use FindAllByKey for it).
func FindAll[T Segment](m *Metadata) []T {
	var zero T
	key := zero.Key()
	var out []T
	for _, seg := range m.segments {
		if seg.Key().Equal(key) {
			t, ok := seg.(T)
			if ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// FindAllByKey returns every segment, in position order, whose key
// equals key.
func (m *Metadata) FindAllByKey(key SegmentKey) []Segment {
	var out []Segment
	for _, seg := range m.segments {
		if seg.Key().Equal(key) {
			out = append(out, seg)
		}
	}
	return out
}

// FindFirst returns the first segment whose key equals T's key, and
// its index. It fails with ErrTypeMismatch if a segment is found at
// that key whose runtime type is not T.
func FindFirst[T Segment](m *Metadata) (T, int, error) {
	var zero T
	key := zero.Key()
	for i, seg := range m.segments {
		if seg.Key().Equal(key) {
			t, ok := seg.(T)
			if !ok {
				return zero, -1, newErrorf(ErrTypeMismatch, "segment at key %s is not of the expected type", key)
			}
			return t, i, nil
		}
	}
	return zero, -1, nil
}

// FindFirstIndex returns the index of the first segment matching key,
// or -1 if none matches.
func (m *Metadata) FindFirstIndex(key SegmentKey) int {
	for i, seg := range m.segments {
		if seg.Key().Equal(key) {
			return i
		}
	}
	return -1
}

// GetIndexAfter scans from the end of the list for the first (in
// reverse, i.e. last-occurring) segment whose key is in keys, and
// returns one past its index; if none is found, returns 0. SOI is
// always implicitly included in keys, so any insertion computed from
// this index lands after a present SOI.
func (m *Metadata) GetIndexAfter(keys []SegmentKey) int {
	soi := NewSegmentKey(MarkerSOI)
	for i := len(m.segments) - 1; i >= 0; i-- {
		k := m.segments[i].Key()
		if k.Equal(soi) {
			return i + 1
		}
		for _, want := range keys {
			if k.Equal(want) {
				return i + 1
			}
		}
	}
	return 0
}

// Insert inserts seg at the position computed by GetIndexAfter(precedingKeys).
func (m *Metadata) Insert(seg Segment, precedingKeys []SegmentKey) {
	idx := m.GetIndexAfter(precedingKeys)
	m.insertAt(idx, seg)
}

func (m *Metadata) insertAt(idx int, seg Segment) {
	m.segments = append(m.segments, nil)
	copy(m.segments[idx+1:], m.segments[idx:])
	m.segments[idx] = seg
}

func (m *Metadata) removeAt(idx int) {
	m.segments = append(m.segments[:idx], m.segments[idx+1:]...)
}

// GetOrCreate returns the first segment matching T's key, creating and
// inserting one (via newFn) if absent. If the segment is present and
// reposition is true: when its current index is strictly before the
// target insertion index, it is removed and reinserted immediately
// before that target (accounting for the shift the removal causes);
// if it is already at or after the target, it is left alone.
func GetOrCreate[T Segment](m *Metadata, reposition bool, precedingKeys []SegmentKey, newFn func() T) (seg T, created bool, index int) {
	if t, i, err := FindFirst[T](m); err == nil && i >= 0 {
		if !reposition {
			return t, false, i
		}
		target := m.GetIndexAfter(precedingKeys)
		if i < target {
			m.removeAt(i)
			newIdx := target - 1
			m.insertAt(newIdx, t)
			return t, false, newIdx
		}
		return t, false, i
	}
	t := newFn()
	idx := m.GetIndexAfter(precedingKeys)
	m.insertAt(idx, t)
	return t, true, idx
}

// RemoveAll removes every segment matching key and returns how many were removed.
func (m *Metadata) RemoveAll(key SegmentKey) int {
	out := m.segments[:0]
	count := 0
	for _, seg := range m.segments {
		if seg.Key().Equal(key) {
			count++
			continue
		}
		out = append(out, seg)
	}
	m.segments = out
	return count
}

// RemoveFirst removes the first segment matching key and reports
// whether one was removed.
func (m *Metadata) RemoveFirst(key SegmentKey) bool {
	idx := m.FindFirstIndex(key)
	if idx < 0 {
		return false
	}
	m.removeAt(idx)
	return true
}
