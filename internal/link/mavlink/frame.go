package mavlink

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bluenviron/gomavlib/v3/pkg/frame"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

const (
	stxV1 = 0xfe
	stxV2 = 0xfd

	headerLenV1    = 6
	headerLenV2    = 10
	checksumLen    = 2
	signatureLen   = 13
	flagSigned     = 0x01
	maxPayloadLen  = 255
	maxBufferedLen = 4 * (headerLenV2 + maxPayloadLen + checksumLen + signatureLen)
)

// ErrInvalidFrame is reported for a frame that fails to decode, usually a
// checksum mismatch.
var ErrInvalidFrame = errors.New("invalid frame")

// Parser extracts frames from a byte stream. Bytes may arrive in any
// fragmentation; anything between frames is skipped. The parser only finds
// frame boundaries, decoding and checksum verification are done by gomavlib.
// Frames of messages outside Dialect are skipped.
//
// Usage:
//
//	p.Push(data)
//	for p.Next() {
//		if err := p.Error(); err != nil {
//			// bad frame
//			continue
//		}
//		f := p.Current()
//	}
type Parser struct {
	buf []byte

	current frame.Frame
	err     error

	skipped int
}

// Push appends raw bytes to the parser's buffer.
func (p *Parser) Push(data []byte) {
	p.buf = append(p.buf, data...)

	// a stream of junk without any start byte must not grow forever
	if len(p.buf) > maxBufferedLen {
		p.buf = p.buf[len(p.buf)-maxBufferedLen:]
	}
}

// Next advances to the next frame or parse error. It returns false when the
// buffered bytes do not hold another complete frame.
func (p *Parser) Next() bool {
	p.current, p.err = nil, nil

	for {
		start := startIndex(p.buf)
		if start < 0 {
			p.buf = p.buf[:0]
			return false
		}
		p.buf = p.buf[start:]

		total, ok := frameLen(p.buf)
		if !ok || len(p.buf) < total {
			return false
		}

		f, err := decodeFrame(p.buf[:total])
		if err != nil {
			// resync from the byte after this start marker
			p.buf = p.buf[1:]
			p.err = fmt.Errorf("%w: %w", ErrInvalidFrame, err)
			return true
		}
		p.buf = p.buf[total:]

		if _, raw := f.GetMessage().(*message.MessageRaw); raw {
			p.skipped++
			continue
		}

		p.current = f
		return true
	}
}

func startIndex(b []byte) int {
	for i, c := range b {
		if c == stxV1 || c == stxV2 {
			return i
		}
	}
	return -1
}

// frameLen returns the wire length of the frame starting at b[0], or false
// when the header is not complete yet.
func frameLen(b []byte) (int, bool) {
	if len(b) < 3 {
		return 0, false
	}

	payloadLen := int(b[1])
	if b[0] == stxV1 {
		return headerLenV1 + payloadLen + checksumLen, true
	}

	total := headerLenV2 + payloadLen + checksumLen
	if b[2]&flagSigned != 0 {
		total += signatureLen
	}
	return total, true
}

func decodeFrame(data []byte) (frame.Frame, error) {
	r := &frame.Reader{
		ByteReader: bytes.NewReader(data),
		DialectRW:  dialectRW,
	}
	if err := r.Initialize(); err != nil {
		return nil, err
	}
	return r.Read()
}

// Current returns the frame produced by the last successful Next.
func (p *Parser) Current() frame.Frame {
	return p.current
}

// Error returns the parse error produced by the last Next, if any.
func (p *Parser) Error() error {
	return p.err
}

// Skipped returns the number of frames dropped for a message outside Dialect.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Buffered returns the number of bytes waiting for more data.
func (p *Parser) Buffered() int {
	return len(p.buf)
}
