package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encoder handles encoding of live protocol messages
type Encoder struct {
	w io.Writer
}

// NewEncoder creates a new encoder
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteUvarint writes an unsigned varint
func (e *Encoder) WriteUvarint(v uint64) error {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	_, err := e.w.Write(buf[:n])
	return err
}

// WriteString writes a length-prefixed string
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

// WriteBytes writes raw bytes
func (e *Encoder) WriteBytes(b []byte) error {
	_, err := e.w.Write(b)
	return err
}

// maxString bounds a decoded string so a corrupt length cannot allocate
// without limit.
const maxString = 16 << 20

// Decoder handles decoding of live protocol messages
type Decoder struct {
	r io.Reader
}

// NewDecoder creates a new decoder
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// ReadUvarint reads an unsigned varint
func (d *Decoder) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(d)
}

// ReadByte implements io.ByteReader
func (d *Decoder) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(d.r, b[:])
	return b[0], err
}

// ReadString reads a length-prefixed string
func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if length > maxString {
		return "", fmt.Errorf("string of %d bytes exceeds limit", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// EncodeUpdate encodes a document frame.
func EncodeUpdate(u Update) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteBytes([]byte{byte(FrameDocument)})
	e.WriteString(u.Page)
	e.WriteUvarint(u.Version)
	e.WriteString(u.Hash)
	e.WriteString(u.Document)
	e.WriteString(u.Error)
	e.WriteUvarint(uint64(len(u.Diagnostics)))
	for _, d := range u.Diagnostics {
		e.WriteString(d)
	}
	e.WriteString(u.Preview)
	return buf.Bytes()
}

// DecodeUpdate decodes a document frame.
func DecodeUpdate(data []byte) (*Update, error) {
	if len(data) == 0 || data[0] != byte(FrameDocument) {
		return nil, errors.New("not a document frame")
	}
	d := NewDecoder(bytes.NewReader(data[1:]))
	u := &Update{}
	var err error
	if u.Page, err = d.ReadString(); err != nil {
		return nil, fmt.Errorf("page: %w", err)
	}
	if u.Version, err = d.ReadUvarint(); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	if u.Hash, err = d.ReadString(); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	if u.Document, err = d.ReadString(); err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	if u.Error, err = d.ReadString(); err != nil {
		return nil, fmt.Errorf("error: %w", err)
	}
	n, err := d.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	for i := uint64(0); i < n; i++ {
		s, err := d.ReadString()
		if err != nil {
			return nil, fmt.Errorf("diagnostic %d: %w", i, err)
		}
		u.Diagnostics = append(u.Diagnostics, s)
	}
	if u.Preview, err = d.ReadString(); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	return u, nil
}

// EncodeSelect encodes a node selection frame.
func EncodeSelect(key string) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteBytes([]byte{byte(FrameSelect)})
	e.WriteString(key)
	return buf.Bytes()
}

// EncodeControl encodes a control frame with optional numeric arguments.
func EncodeControl(msg string, args ...uint64) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteBytes([]byte{byte(FrameControl)})
	e.WriteString(msg)
	for _, a := range args {
		e.WriteUvarint(a)
	}
	return buf.Bytes()
}
