// Package encoder turns a derived geometry into the byte images of the FAT32
// on-disk structures. Nothing here performs I/O.
//
// Every structure is described by an explicit field table (name, offset, width)
// and serialized field by field in little-endian order, so the output never
// depends on how the host lays out Go structs.
package encoder

import (
	"encoding/binary"
	"sort"

	"github.com/noxer/bytewriter"
	"github.com/pkg/errors"
)

// SectorSize is the size of every encoded sector image.
const SectorSize = 512

// Field is one entry of a structure's layout table. Value must be a fixed-size
// value accepted by binary.Write whose encoded width equals Size.
type Field struct {
	Name   string
	Offset int
	Size   int
	Value  interface{}
}

// Structure is a named, fixed-size byte layout. Bytes not covered by any field
// are zero.
type Structure struct {
	Name   string
	Size   int
	Fields []Field
}

// Encode serializes the structure. It fails if a field is out of bounds,
// overlaps another field, or its value does not have the declared width.
func (s Structure) Encode() ([]byte, error) {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Offset < fields[j].Offset })

	out := make([]byte, s.Size)
	end := 0
	for _, f := range fields {
		if f.Offset < end {
			return nil, errors.Errorf("%s.%s: offset %d overlaps previous field ending at %d", s.Name, f.Name, f.Offset, end)
		}
		if f.Offset+f.Size > s.Size {
			return nil, errors.Errorf("%s.%s: [%d,%d) exceeds structure size %d", s.Name, f.Name, f.Offset, f.Offset+f.Size, s.Size)
		}
		if n := binary.Size(f.Value); n != f.Size {
			return nil, errors.Errorf("%s.%s: value encodes to %d bytes, want %d", s.Name, f.Name, n, f.Size)
		}

		w := bytewriter.New(out[f.Offset : f.Offset+f.Size])
		if err := binary.Write(w, binary.LittleEndian, f.Value); err != nil {
			return nil, errors.Wrapf(err, "%s.%s", s.Name, f.Name)
		}
		end = f.Offset + f.Size
	}
	return out, nil
}

// Lookup returns the field called name.
func (s Structure) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func zeros(n int) []byte {
	return make([]byte, n)
}
