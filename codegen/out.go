package codegen

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Line is one assembled instruction: its offset, its bytes and its text
type Line struct {
	Offset int
	Bytes  []byte
	Asm    string
}

type fixup struct {
	pos   int // offset of the rel8 byte
	label string
}

// Out accumulates machine code. Every instruction starts with Mark so the
// result can be listed, and short jumps are patched once labels are known.
type Out struct {
	buf    bytes.Buffer
	marks  []Line
	labels map[string]int
	fixups []fixup
}

// NewOut returns an empty writer
func NewOut() *Out {
	return &Out{labels: make(map[string]int)}
}

// Len returns the number of bytes written so far
func (o *Out) Len() int {
	return o.buf.Len()
}

// Mark starts a new instruction at the current offset
func (o *Out) Mark(format string, args ...interface{}) {
	o.marks = append(o.marks, Line{Offset: o.Len(), Asm: fmt.Sprintf(format, args...)})
}

func (o *Out) Write(b byte) int {
	o.buf.WriteByte(b)
	return 1
}

func (o *Out) WriteBytes(bs []byte) int {
	o.buf.Write(bs)
	return len(bs)
}

// Write4u writes a little-endian 32-bit value
func (o *Out) Write4u(v uint32) int {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return o.WriteBytes(b[:])
}

// Write8u writes a little-endian 64-bit value
func (o *Out) Write8u(v uint64) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return o.WriteBytes(b[:])
}

// Label binds name to the current offset
func (o *Out) Label(name string) error {
	if _, ok := o.labels[name]; ok {
		return errors.Errorf("label %s defined twice", name)
	}
	o.labels[name] = o.Len()
	return nil
}

// Rel8 writes a placeholder for an 8-bit displacement to label, relative
// to the end of the displacement byte.
func (o *Out) Rel8(label string) int {
	o.fixups = append(o.fixups, fixup{pos: o.Len(), label: label})
	return o.Write(0)
}

// Bytes patches all pending jumps and returns the code
func (o *Out) Bytes() ([]byte, error) {
	code := o.buf.Bytes()
	for _, f := range o.fixups {
		target, ok := o.labels[f.label]
		if !ok {
			return nil, errors.Errorf("undefined label %s", f.label)
		}
		rel := target - (f.pos + 1)
		if rel < -128 || rel > 127 {
			return nil, errors.Errorf("jump to %s out of rel8 range: %d", f.label, rel)
		}
		code[f.pos] = byte(int8(rel))
	}
	o.fixups = nil
	out := make([]byte, len(code))
	copy(out, code)
	return out, nil
}

// Lines splits code into the instructions recorded with Mark
func (o *Out) Lines(code []byte) []Line {
	lines := make([]Line, len(o.marks))
	for i, m := range o.marks {
		end := len(code)
		if i+1 < len(o.marks) {
			end = o.marks[i+1].Offset
		}
		lines[i] = Line{Offset: m.Offset, Bytes: code[m.Offset:end], Asm: m.Asm}
	}
	return lines
}
