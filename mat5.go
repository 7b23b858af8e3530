// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// MAT 5 data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miDOUBLE     = 9
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16
	miUTF16      = 17
)

// MAT 5 array classes.
const (
	mxSTRUCT = 2
	mxCHAR   = 4
)

const mat5HeaderSize = 128

// mat5Decoder decodes the channel table from a classic MAT-file
// header. In strict mode it understands the plain v5/v6 layout only;
// compat mode additionally inflates the compressed elements and accepts
// the UTF character encodings introduced by the newer v7 sub-version.
type mat5Decoder struct {
	compat bool
}

// NewMat5Decoder returns the strict MAT 5/6 header decoder.
func NewMat5Decoder() HeaderDecoder { return mat5Decoder{} }

// NewMat5CompatDecoder returns the MAT 7 compatibility header decoder.
func NewMat5CompatDecoder() HeaderDecoder { return mat5Decoder{compat: true} }

func (d mat5Decoder) Name() string {
	if d.compat {
		return "mat5compat"
	}
	return "mat5"
}

// DecodeHeader reads the 'H' struct variable and returns the name and
// signalType character fields of its 'channels' struct array.
func (d mat5Decoder) DecodeHeader(path string) ([]string, []string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mat5: %w", err)
	}

	p, err := newMat5Parser(b, d.compat)
	if err != nil {
		return nil, nil, err
	}
	root, err := p.findStruct("H")
	if err != nil {
		return nil, nil, err
	}
	if len(root.elems) == 0 {
		return nil, nil, fmt.Errorf("mat5: variable H is an empty struct")
	}

	channels, ok := root.elems[0]["channels"]
	if !ok {
		return nil, nil, fmt.Errorf("mat5: variable H has no channels field")
	}
	if channels.class != mxSTRUCT {
		return nil, nil, fmt.Errorf("mat5: channels field is not a struct array")
	}

	names := make([]string, 0, len(channels.elems))
	types := make([]string, 0, len(channels.elems))
	for i, elem := range channels.elems {
		name, ok := elem["name"]
		if !ok || name.class != mxCHAR {
			return nil, nil, fmt.Errorf("mat5: channel %d has no name", i)
		}
		typ, ok := elem["signalType"]
		if !ok || typ.class != mxCHAR {
			return nil, nil, fmt.Errorf("mat5: channel %d has no signalType", i)
		}
		names = append(names, name.chars)
		types = append(types, typ.chars)
	}
	return names, types, nil
}

// mat5Matrix is a parsed miMATRIX element. Only the pieces the header
// decoder needs are materialized; payloads of other classes are
// skipped.
type mat5Matrix struct {
	class uint8
	dims  []int
	name  string
	chars string                   // mxCHAR payload
	elems []map[string]*mat5Matrix // mxSTRUCT fields per array element
}

type mat5Parser struct {
	order  binary.ByteOrder
	compat bool
	body   []byte // everything after the 128-byte descriptive header
}

func newMat5Parser(b []byte, compat bool) (*mat5Parser, error) {
	if len(b) < mat5HeaderSize {
		return nil, fmt.Errorf("mat5: file too short for a MAT header (%d bytes)", len(b))
	}
	// The endian indicator holds the characters "MI" written as a
	// 16-bit integer; reading "IM" means the writer was little-endian.
	var order binary.ByteOrder
	switch string(b[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("mat5: bad endian indicator %q", b[126:128])
	}
	return &mat5Parser{order: order, compat: compat, body: b[mat5HeaderSize:]}, nil
}

type mat5Element struct {
	typ  uint32
	data []byte
}

// readElement decodes one tagged data element starting at off and
// returns the offset of the next element, handling both the normal and
// the packed small-element tag layouts.
func (p *mat5Parser) readElement(b []byte, off int) (mat5Element, int, error) {
	if off+8 > len(b) {
		return mat5Element{}, 0, fmt.Errorf("mat5: truncated element tag at offset %d", off)
	}
	first := p.order.Uint32(b[off:])
	if first>>16 != 0 {
		// Small data element: size in the high half-word, up to four
		// data bytes packed into the second tag word.
		size := int(first >> 16)
		if size > 4 {
			return mat5Element{}, 0, fmt.Errorf("mat5: small element with %d bytes at offset %d", size, off)
		}
		return mat5Element{typ: first & 0xFFFF, data: b[off+4 : off+4+size]}, off + 8, nil
	}

	size := int(p.order.Uint32(b[off+4:]))
	start := off + 8
	if start+size > len(b) {
		return mat5Element{}, 0, fmt.Errorf("mat5: element of %d bytes overruns file at offset %d", size, off)
	}
	next := start + size
	if pad := next % 8; pad != 0 {
		next += 8 - pad
	}
	if next > len(b) {
		next = len(b)
	}
	return mat5Element{typ: first, data: b[start : start+size]}, next, nil
}

// findStruct walks the top-level elements until it finds a struct
// variable with the given name.
func (p *mat5Parser) findStruct(name string) (*mat5Matrix, error) {
	off := 0
	for off < len(p.body) {
		el, next, err := p.readElement(p.body, off)
		if err != nil {
			return nil, err
		}
		off = next

		switch el.typ {
		case miCOMPRESSED:
			if !p.compat {
				return nil, fmt.Errorf("mat5: compressed element requires the compatibility decoder")
			}
			inner, err := p.inflate(el.data)
			if err != nil {
				return nil, err
			}
			m, err := p.matrixIn(inner, name)
			if err != nil {
				return nil, err
			}
			if m != nil {
				return m, nil
			}
		case miMATRIX:
			m, err := p.parseMatrix(el.data)
			if err != nil {
				return nil, err
			}
			if m.name == name && m.class == mxSTRUCT {
				return m, nil
			}
		default:
			// Unrelated top-level variable, skip.
		}
	}
	return nil, fmt.Errorf("mat5: no struct variable %q", name)
}

// matrixIn scans a decompressed element stream for the named struct.
func (p *mat5Parser) matrixIn(b []byte, name string) (*mat5Matrix, error) {
	off := 0
	for off < len(b) {
		el, next, err := p.readElement(b, off)
		if err != nil {
			return nil, err
		}
		off = next
		if el.typ != miMATRIX {
			continue
		}
		m, err := p.parseMatrix(el.data)
		if err != nil {
			return nil, err
		}
		if m.name == name && m.class == mxSTRUCT {
			return m, nil
		}
	}
	return nil, nil
}

func (p *mat5Parser) inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("mat5: error opening compressed element: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("mat5: error inflating compressed element: %w", err)
	}
	return out, nil
}

func (p *mat5Parser) parseMatrix(b []byte) (*mat5Matrix, error) {
	flags, off, err := p.readElement(b, 0)
	if err != nil {
		return nil, err
	}
	if flags.typ != miUINT32 || len(flags.data) < 4 {
		return nil, fmt.Errorf("mat5: malformed array flags element")
	}
	m := &mat5Matrix{class: uint8(p.order.Uint32(flags.data) & 0xFF)}

	dims, off, err := p.readElement(b, off)
	if err != nil {
		return nil, err
	}
	if dims.typ != miINT32 {
		return nil, fmt.Errorf("mat5: malformed dimensions element (type %d)", dims.typ)
	}
	for i := 0; i+4 <= len(dims.data); i += 4 {
		m.dims = append(m.dims, int(int32(p.order.Uint32(dims.data[i:]))))
	}

	nameEl, off, err := p.readElement(b, off)
	if err != nil {
		return nil, err
	}
	m.name = strings.TrimRight(string(nameEl.data), "\x00")

	switch m.class {
	case mxCHAR:
		data, _, err := p.readElement(b, off)
		if err != nil {
			return nil, err
		}
		m.chars, err = p.decodeChars(data)
		if err != nil {
			return nil, err
		}
	case mxSTRUCT:
		if err := p.parseStructFields(m, b, off); err != nil {
			return nil, err
		}
	default:
		// Numeric, cell or sparse payloads are not needed for the
		// channel table; leave them unparsed.
	}
	return m, nil
}

// parseStructFields reads the field-name table and then one miMATRIX
// per field per array element, element-major.
func (p *mat5Parser) parseStructFields(m *mat5Matrix, b []byte, off int) error {
	lenEl, off, err := p.readElement(b, off)
	if err != nil {
		return err
	}
	if lenEl.typ != miINT32 || len(lenEl.data) < 4 {
		return fmt.Errorf("mat5: malformed field name length element")
	}
	fieldLen := int(int32(p.order.Uint32(lenEl.data)))
	if fieldLen <= 0 {
		return fmt.Errorf("mat5: invalid field name length %d", fieldLen)
	}

	namesEl, off, err := p.readElement(b, off)
	if err != nil {
		return err
	}
	var fields []string
	for i := 0; i+fieldLen <= len(namesEl.data); i += fieldLen {
		fields = append(fields, strings.TrimRight(string(namesEl.data[i:i+fieldLen]), "\x00"))
	}

	count := 1
	for _, d := range m.dims {
		count *= d
	}
	for e := 0; e < count; e++ {
		elem := make(map[string]*mat5Matrix, len(fields))
		for _, field := range fields {
			sub, next, err := p.readElement(b, off)
			if err != nil {
				return err
			}
			off = next
			if sub.typ != miMATRIX {
				return fmt.Errorf("mat5: field %q of element %d is not a matrix (type %d)", field, e, sub.typ)
			}
			fm, err := p.parseMatrix(sub.data)
			if err != nil {
				return err
			}
			elem[field] = fm
		}
		m.elems = append(m.elems, elem)
	}
	return nil
}

// decodeChars converts a character data element to a string, trimming
// the NUL and space padding MATLAB writes into fixed-width char arrays.
func (p *mat5Parser) decodeChars(el mat5Element) (string, error) {
	switch el.typ {
	case miUTF8:
		if !p.compat {
			return "", fmt.Errorf("mat5: UTF-8 characters require the compatibility decoder")
		}
		return strings.TrimRight(string(el.data), "\x00 "), nil
	case miUTF16:
		if !p.compat {
			return "", fmt.Errorf("mat5: UTF-16 characters require the compatibility decoder")
		}
		fallthrough
	case miUINT16, miINT16:
		var sb strings.Builder
		for i := 0; i+2 <= len(el.data); i += 2 {
			sb.WriteRune(rune(p.order.Uint16(el.data[i:])))
		}
		return strings.TrimRight(sb.String(), "\x00 "), nil
	case miINT8, miUINT8:
		return strings.TrimRight(string(el.data), "\x00 "), nil
	default:
		return "", fmt.Errorf("mat5: unsupported character data type %d", el.typ)
	}
}
