package novaquerywire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// A frame is a big-endian uint32 payload length followed by a JSON payload.
const (
	headerLen    = 4
	MaxFrameSize = 8 << 20
)

var (
	ErrFrameTooLarge = errors.New("novaquerywire: frame too large")
	ErrEmptyFrame    = errors.New("novaquerywire: empty frame")
)

func checkLen(n int) error {
	switch {
	case n == 0:
		return ErrEmptyFrame
	case n > MaxFrameSize:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, n, MaxFrameSize)
	}
	return nil
}

// Codec reads and writes frames on one stream. The payload buffer is
// reused between messages, so a Codec must not be shared by concurrent
// readers or concurrent writers.
type Codec struct {
	r   *bufio.Reader
	w   *bufio.Writer
	in  bytes.Buffer
	out bytes.Buffer
}

func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{r: bufio.NewReader(rw), w: bufio.NewWriter(rw)}
}

// Read decodes the next frame into v. io.EOF is returned as is when the
// stream ends between frames.
func (c *Codec) Read(v any) error {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return err
	}
	n := int(binary.BigEndian.Uint32(hdr[:]))
	if err := checkLen(n); err != nil {
		return err
	}

	c.in.Reset()
	if _, err := io.CopyN(&c.in, c.r, int64(n)); err != nil {
		return fmt.Errorf("novaquerywire: truncated frame: %w", err)
	}
	if err := json.Unmarshal(c.in.Bytes(), v); err != nil {
		return fmt.Errorf("novaquerywire: decode: %w", err)
	}
	return nil
}

// Write encodes v as one frame and flushes it.
func (c *Codec) Write(v any) error {
	c.out.Reset()
	c.out.Write(make([]byte, headerLen))
	if err := json.NewEncoder(&c.out).Encode(v); err != nil {
		return fmt.Errorf("novaquerywire: encode: %w", err)
	}

	frame := c.out.Bytes()
	n := len(frame) - headerLen
	if err := checkLen(n); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(frame[:headerLen], uint32(n))

	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	return c.w.Flush()
}
