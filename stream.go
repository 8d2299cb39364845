package jfif

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
)

// NULBehavior selects how readASCIIString treats a NUL terminator,
// matching spec.md §6's byte-stream adapter contract.
type NULBehavior int

const (
	// NULStop reads up to maxBytes, stopping (and consuming) at the first NUL.
	NULStop NULBehavior = iota
	// NULTrimTrailing reads exactly maxBytes and trims trailing NUL bytes from the result.
	NULTrimTrailing
)

// byteReader is the concrete byte-stream adapter the framing engine
// reads from. It wraps a bufio.Reader so marker probing (peeking two
// bytes without consuming them) and scanning are cheap, following the
// teacher's streamReader in spirit: a thin struct around the stdlib
// reader primitives, with every method returning its errors rather
// than panicking.
type byteReader struct {
	r   *bufio.Reader
	buf [8]byte
	pos int64
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: bufio.NewReaderSize(r, 4096)}
}

// checkCtx is called at each suspension point; every blocking method on
// byteReader calls it first so cancellation is observed promptly and
// consistently, per spec.md §5.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (s *byteReader) readExact(ctx context.Context, buf []byte) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	n, err := io.ReadFull(s.r, buf)
	s.pos += int64(n)
	return err
}

func (s *byteReader) readU8(ctx context.Context) (uint8, error) {
	if err := s.readExact(ctx, s.buf[:1]); err != nil {
		return 0, err
	}
	return s.buf[0], nil
}

func (s *byteReader) readU16BE(ctx context.Context) (uint16, error) {
	if err := s.readExact(ctx, s.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(s.buf[:2]), nil
}

func (s *byteReader) readU32BE(ctx context.Context) (uint32, error) {
	if err := s.readExact(ctx, s.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(s.buf[:4]), nil
}

// skip discards n bytes without requiring the underlying reader to
// support seeking; the framing engine never needs to skip backwards.
func (s *byteReader) skip(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := checkCtx(ctx); err != nil {
		return err
	}
	written, err := io.CopyN(io.Discard, s.r, int64(n))
	s.pos += written
	return err
}

// readASCIIString implements the NULStop/NULTrimTrailing contract of
// spec.md §6, returning the decoded string and the number of bytes
// consumed from the stream (which, for NULStop, includes the
// terminating NUL).
func (s *byteReader) readASCIIString(ctx context.Context, maxBytes int, behavior NULBehavior) (string, int, error) {
	if err := checkCtx(ctx); err != nil {
		return "", 0, err
	}
	switch behavior {
	case NULStop:
		var b []byte
		consumed := 0
		for consumed < maxBytes {
			c, err := s.r.ReadByte()
			if err != nil {
				return "", consumed, err
			}
			consumed++
			s.pos++
			if c == 0 {
				return string(b), consumed, nil
			}
			b = append(b, c)
		}
		return string(b), consumed, nil
	case NULTrimTrailing:
		buf := make([]byte, maxBytes)
		if err := s.readExact(ctx, buf); err != nil {
			return "", 0, err
		}
		i := len(buf)
		for i > 0 && buf[i-1] == 0 {
			i--
		}
		return string(buf[:i]), maxBytes, nil
	default:
		return "", 0, newErrorf(ErrUnrecognizedVariant, "unknown NUL behavior %d", behavior)
	}
}

// ensureBuffered reports whether at least n bytes can be peeked without
// consuming them, reading from the underlying reader as needed. It
// reports false, with no error, when the stream ends (or n exceeds the
// buffer size) before n bytes are available.
func (s *byteReader) ensureBuffered(ctx context.Context, n int) (bool, error) {
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	b, err := s.r.Peek(n)
	if err != nil {
		if err == io.EOF || err == bufio.ErrBufferFull {
			return len(b) >= n, nil
		}
		return false, err
	}
	return true, nil
}

// peek2 returns the next two buffered bytes without consuming them, or
// ok=false if fewer than two bytes are available. It backs
// Reader.ProbeForStartOfImage.
func (s *byteReader) peek2(ctx context.Context) (b0, b1 byte, ok bool, err error) {
	buffered, err := s.ensureBuffered(ctx, 2)
	if err != nil {
		return 0, 0, false, err
	}
	if !buffered {
		return 0, 0, false, nil
	}
	b, err := s.r.Peek(2)
	if err != nil {
		return 0, 0, false, err
	}
	return b[0], b[1], true, nil
}

// scanResult reports the outcome of scan.
type scanResult struct {
	isPositiveMatch bool
	bytesRead       int
}

// scan streams bytes into dst, one at a time, until a windowLen-byte
// lookahead (examined with Peek, never consumed speculatively) matches
// predicate. On a match, the window itself is left in the stream
// un-consumed unless consumeMatch is set, in which case it is read off;
// either way a copy of the matched window is returned. bytesRead counts only the bytes copied into dst,
// excluding the matched window, matching spec.md §6. maxBytes <= 0
// means unbounded (required for the SOS out-of-band scan, which runs
// past its segment's own declared length into the raw stream until a
// real marker appears).
func (s *byteReader) scan(ctx context.Context, dst *bytes.Buffer, maxBytes int, windowLen int, predicate func(window []byte) bool, consumeMatch bool) (scanResult, []byte, error) {
	read := 0
	for maxBytes <= 0 || read < maxBytes {
		if err := checkCtx(ctx); err != nil {
			return scanResult{}, nil, err
		}
		window, err := s.r.Peek(windowLen)
		if err != nil {
			return scanResult{}, nil, err
		}
		if predicate(window) {
			matched := append([]byte(nil), window...)
			if consumeMatch {
				if _, err := io.CopyN(io.Discard, s.r, int64(windowLen)); err != nil {
					return scanResult{}, nil, err
				}
				s.pos += int64(windowLen)
			}
			return scanResult{isPositiveMatch: true, bytesRead: dst.Len()}, matched, nil
		}
		c, err := s.r.ReadByte()
		if err != nil {
			return scanResult{}, nil, err
		}
		s.pos++
		read++
		dst.WriteByte(c)
	}
	return scanResult{isPositiveMatch: false, bytesRead: dst.Len()}, nil, nil
}

// byteWriter is the concrete byte-stream adapter the framing engine
// writes to.
type byteWriter struct {
	w   *bufio.Writer
	buf [8]byte
}

func newByteWriter(w io.Writer) *byteWriter {
	return &byteWriter{w: bufio.NewWriterSize(w, 4096)}
}

func (s *byteWriter) writeU8(ctx context.Context, v uint8) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return s.w.WriteByte(v)
}

func (s *byteWriter) writeU16BE(ctx context.Context, v uint16) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(s.buf[:2], v)
	_, err := s.w.Write(s.buf[:2])
	return err
}

func (s *byteWriter) writeU32BE(ctx context.Context, v uint32) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(s.buf[:4], v)
	_, err := s.w.Write(s.buf[:4])
	return err
}

func (s *byteWriter) writeBytes(ctx context.Context, b []byte) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	_, err := s.w.Write(b)
	return err
}

func (s *byteWriter) writeASCIIStringNUL(ctx context.Context, str string) error {
	if err := s.writeBytes(ctx, []byte(str)); err != nil {
		return err
	}
	return s.writeU8(ctx, 0)
}

func (s *byteWriter) flush() error {
	return s.w.Flush()
}
