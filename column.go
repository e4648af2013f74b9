package framestore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/golang/snappy"
)

func init() {
	// concrete types allowed inside object-kind cells
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(false)
	gob.Register(time.Time{})
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

type (
	// DataColumn describes one on-disk column: its logical kind, physical
	// encoding and the frame columns it covers. A descriptor covering more
	// than one frame column is a block, packed into a single BLOB per row.
	DataColumn struct {
		Name  string
		CName string
		Kind  ColumnKind
		Pos   int

		// Itemsize is the fixed byte width for string values. Widens to the
		// max observed value on write, never shrinks.
		Itemsize int

		Timezone string

		// Meta is "category" for categorical columns, else empty.
		Meta     string
		Metadata *Array
		Ordered  bool

		// Values lists the frame column names this descriptor covers, in
		// on-disk order.
		Values []string

		Dtype string
	}

	// IndexColumn marks a column as the table's indexable row-key axis.
	IndexColumn struct {
		DataColumn
		Axis int

		// owner is a non-owning handle to the Table this axis belongs to,
		// valid only while the owning store is open. Used for IsIndexed.
		owner *Table
	}
)

func (c *DataColumn) isBlock() bool {
	return len(c.Values) > 1
}

func (c *DataColumn) atomSQL() string {
	if c.isBlock() {
		return "BLOB"
	}
	return c.Kind.sqlType()
}

// maybeSetSize widens the string byte width if the hint exceeds the
// currently inferred width. No-op for non-string kinds.
func (c *DataColumn) maybeSetSize(minItemsize int) {
	if c.Kind != KindString {
		return
	}
	if minItemsize > c.Itemsize {
		c.Itemsize = minItemsize
	}
}

// validateCol rejects appends whose string data would not fit the
// existing on-disk width. There is no automatic widening of an existing
// column.
func (c *DataColumn) validateCol(itemsize int) error {
	if c.Kind != KindString {
		return nil
	}
	if itemsize > c.Itemsize {
		return fmt.Errorf("trying to store a string with len [%d] in [%s] column but this column has a limit of [%d]: %w",
			itemsize, c.CName, c.Itemsize, ErrStringTooLong)
	}
	return nil
}

// validateAgainst checks column-for-column compatibility on append.
func (c *DataColumn) validateAgainst(existing *DataColumn) error {
	if c.Name != existing.Name || c.CName != existing.CName {
		return fmt.Errorf("column name [%s] does not match existing [%s]: %w", c.Name, existing.Name, ErrSchemaMismatch)
	}
	if c.Kind != existing.Kind {
		return fmt.Errorf("invalid combination of [%s] on appending data [%s] vs current table [%s]: %w",
			c.Name, c.Kind, existing.Kind, ErrSchemaMismatch)
	}
	if len(c.Values) != len(existing.Values) {
		return fmt.Errorf("cannot match existing table structure for [%s] on appending data: %w", c.Name, ErrSchemaMismatch)
	}
	for i := range c.Values {
		if c.Values[i] != existing.Values[i] {
			return fmt.Errorf("cannot match existing table structure for [%s] on appending data: %w", c.Values[i], ErrSchemaMismatch)
		}
	}
	return nil
}

// setCategories records category metadata, validating the precondition
// that metadata is unique and ascending (the sorted-search disambiguation
// in searchCategory depends on it).
func (c *DataColumn) setCategories(cats *Array, ordered bool) error {
	n := cats.Len()
	for i := 1; i < n; i++ {
		cmp := compareValues(cats.ValueAt(i-1), cats.ValueAt(i))
		if cmp >= 0 {
			return fmt.Errorf("category metadata for [%s] must be unique and sorted ascending", c.Name)
		}
	}
	c.Meta = "category"
	c.Metadata = cats
	c.Ordered = ordered
	return nil
}

// searchCategory returns the code for value v via sorted search over the
// category metadata. A result of 0 where v is not actually the first
// category means "absent, would sort before everything", which must map
// to -1 rather than matching the first category.
func (c *DataColumn) searchCategory(v any) int64 {
	n := c.Metadata.Len()
	pos := sort.Search(n, func(i int) bool {
		return compareValues(c.Metadata.ValueAt(i), v) >= 0
	})
	if pos == 0 {
		if n == 0 || compareValues(c.Metadata.ValueAt(0), v) != 0 {
			return -1
		}
		return 0
	}
	if pos < n && compareValues(c.Metadata.ValueAt(pos), v) == 0 {
		return int64(pos)
	}
	return -1
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return -1
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case int64:
		y, ok := b.(int64)
		if !ok {
			if f, isF := b.(float64); isF {
				y = int64(f)
				ok = true
			}
		}
		if !ok {
			return -1
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case float64:
		y, ok := b.(float64)
		if !ok {
			return -1
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return -1
}

// sqlValue produces the driver value for row i of a frame column stored
// as an individually addressable SQL column.
func (c *DataColumn) sqlValue(a *Array, i int, nanRep string, compress bool) (any, error) {
	switch c.Kind {
	case KindInteger, KindDate:
		return a.Ints[i], nil
	case KindDatetime64, KindTimedelta64:
		return a.Ints[i], nil
	case KindFloat:
		if math.IsNaN(a.Floats[i]) {
			return nil, nil
		}
		return a.Floats[i], nil
	case KindBool:
		if a.Bools[i] {
			return int64(1), nil
		}
		return int64(0), nil
	case KindString:
		s := a.Strs[i]
		if s == "" {
			return nanRep, nil
		}
		return s, nil
	case KindCategory:
		return a.Cat.Codes[i], nil
	case KindComplex:
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(real(a.Complexes[i])))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(imag(a.Complexes[i])))
		return buf, nil
	case KindObject:
		return encodeObject(a.Objs[i], compress)
	}
	return nil, fmt.Errorf("cannot serialize kind %s for column [%s]", c.Kind, c.Name)
}

// convert turns the raw scanned values for this column back into the
// richly-typed in-memory representation.
func (c *DataColumn) convert(raw []any, nanRep string, compress bool) (Array, error) {
	n := len(raw)
	switch c.Kind {
	case KindInteger, KindDate:
		out := Array{Kind: c.Kind, Ints: make([]int64, n)}
		for i, v := range raw {
			iv, err := rawInt(v, c)
			if err != nil {
				return Array{}, err
			}
			out.Ints[i] = iv
		}
		return out, nil
	case KindDatetime64:
		out := Array{Kind: KindDatetime64, Ints: make([]int64, n), TZ: c.Timezone}
		for i, v := range raw {
			if v == nil {
				out.Ints[i] = NaTNanos
				continue
			}
			iv, err := rawInt(v, c)
			if err != nil {
				return Array{}, err
			}
			out.Ints[i] = iv
		}
		return out, nil
	case KindTimedelta64:
		out := Array{Kind: KindTimedelta64, Ints: make([]int64, n)}
		for i, v := range raw {
			if v == nil {
				out.Ints[i] = NaTNanos
				continue
			}
			iv, err := rawInt(v, c)
			if err != nil {
				return Array{}, err
			}
			out.Ints[i] = iv
		}
		return out, nil
	case KindFloat:
		out := Array{Kind: KindFloat, Floats: make([]float64, n)}
		for i, v := range raw {
			switch x := v.(type) {
			case nil:
				out.Floats[i] = math.NaN()
			case float64:
				out.Floats[i] = x
			case int64:
				out.Floats[i] = float64(x)
			default:
				return Array{}, fmt.Errorf("cannot convert %T to float column [%s]", v, c.Name)
			}
		}
		return out, nil
	case KindBool:
		out := Array{Kind: KindBool, Bools: make([]bool, n)}
		for i, v := range raw {
			iv, err := rawInt(v, c)
			if err != nil {
				return Array{}, err
			}
			out.Bools[i] = iv != 0
		}
		return out, nil
	case KindString:
		out := Array{Kind: KindString, Strs: make([]string, n)}
		for i, v := range raw {
			s, ok := v.(string)
			if !ok {
				if b, isB := v.([]byte); isB {
					s = string(b)
				} else if v == nil {
					s = nanRep
				} else {
					return Array{}, fmt.Errorf("cannot convert %T to string column [%s]", v, c.Name)
				}
			}
			if s == nanRep {
				s = ""
			}
			out.Strs[i] = s
		}
		return out, nil
	case KindCategory:
		codes := make([]int64, n)
		for i, v := range raw {
			if v == nil {
				codes[i] = -1
				continue
			}
			iv, err := rawInt(v, c)
			if err != nil {
				return Array{}, err
			}
			if iv < 0 || iv >= int64(c.Metadata.Len()) {
				iv = -1
			}
			codes[i] = iv
		}
		return Array{Kind: KindCategory, Cat: &Categorical{Codes: codes, Categories: c.Metadata, Ordered: c.Ordered}}, nil
	case KindComplex:
		out := Array{Kind: KindComplex, Complexes: make([]complex128, n)}
		for i, v := range raw {
			b, ok := v.([]byte)
			if !ok || len(b) != 16 {
				return Array{}, fmt.Errorf("cannot convert %T to complex column [%s]", v, c.Name)
			}
			re := math.Float64frombits(binary.LittleEndian.Uint64(b))
			im := math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))
			out.Complexes[i] = complex(re, im)
		}
		return out, nil
	case KindObject:
		out := Array{Kind: KindObject, Objs: make([]any, n)}
		for i, v := range raw {
			if v == nil {
				continue
			}
			b, ok := v.([]byte)
			if !ok {
				return Array{}, fmt.Errorf("cannot convert %T to object column [%s]", v, c.Name)
			}
			obj, err := decodeObject(b, compress)
			if err != nil {
				return Array{}, err
			}
			out.Objs[i] = obj
		}
		return out, nil
	}
	return Array{}, fmt.Errorf("unhandled kind %s for column [%s]", c.Kind, c.Name)
}

func rawInt(v any, c *DataColumn) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %T to %s column [%s]", v, c.Kind, c.Name)
}

type objectCell struct{ V any }

func encodeObject(v any, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(objectCell{V: v}); err != nil {
		return nil, fmt.Errorf("error in gob.Encode: %w", err)
	}
	if !compress {
		return append([]byte{0}, buf.Bytes()...), nil
	}
	return append([]byte{1}, snappy.Encode(nil, buf.Bytes())...), nil
}

func decodeObject(b []byte, compress bool) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	payload := b[1:]
	if b[0] == 1 {
		var err error
		payload, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("error in snappy.Decode: %w", err)
		}
	}
	var cell objectCell
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&cell); err != nil {
		return nil, fmt.Errorf("error in gob.Decode: %w", err)
	}
	return cell.V, nil
}

// encodeBlockRow packs row i of the block's frame columns into one
// fixed-width blob.
func (c *DataColumn) encodeBlockRow(cols []*Array, i int, nanRep string) ([]byte, error) {
	width := c.Kind.fixedWidth()
	if c.Kind == KindString {
		width = c.Itemsize
	}
	buf := make([]byte, 0, width*len(cols))
	for _, a := range cols {
		switch c.Kind {
		case KindInteger, KindDatetime64, KindTimedelta64, KindDate:
			var cell [8]byte
			binary.LittleEndian.PutUint64(cell[:], uint64(a.Ints[i]))
			buf = append(buf, cell[:]...)
		case KindFloat:
			var cell [8]byte
			binary.LittleEndian.PutUint64(cell[:], math.Float64bits(a.Floats[i]))
			buf = append(buf, cell[:]...)
		case KindBool:
			if a.Bools[i] {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case KindComplex:
			var cell [16]byte
			binary.LittleEndian.PutUint64(cell[:], math.Float64bits(real(a.Complexes[i])))
			binary.LittleEndian.PutUint64(cell[8:], math.Float64bits(imag(a.Complexes[i])))
			buf = append(buf, cell[:]...)
		case KindString:
			s := a.Strs[i]
			if s == "" {
				s = nanRep
			}
			if len(s) > width {
				return nil, fmt.Errorf("trying to store a string with len [%d] in [%s] column but this column has a limit of [%d]: %w",
					len(s), c.CName, width, ErrStringTooLong)
			}
			cell := make([]byte, width)
			copy(cell, s)
			buf = append(buf, cell...)
		default:
			return nil, fmt.Errorf("kind %s cannot be packed into a block", c.Kind)
		}
	}
	return buf, nil
}

// decodeBlockRows unpacks the per-row blobs of a block descriptor back
// into one Array per covered frame column.
func (c *DataColumn) decodeBlockRows(raw []any, nanRep string) ([]Array, error) {
	ncols := len(c.Values)
	width := c.Kind.fixedWidth()
	if c.Kind == KindString {
		width = c.Itemsize
	}
	out := make([]Array, ncols)
	for j := range out {
		out[j] = Array{Kind: c.Kind}
	}
	for i, v := range raw {
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to %s block [%s] (row %d)", v, c.Kind, c.CName, i)
		}
		if len(b) != width*ncols {
			return nil, fmt.Errorf("block [%s] row %d has %d bytes, want %d", c.CName, i, len(b), width*ncols)
		}
		for j := 0; j < ncols; j++ {
			cell := b[j*width : (j+1)*width]
			a := &out[j]
			switch c.Kind {
			case KindInteger, KindDatetime64, KindTimedelta64, KindDate:
				a.Ints = append(a.Ints, int64(binary.LittleEndian.Uint64(cell)))
			case KindFloat:
				a.Floats = append(a.Floats, math.Float64frombits(binary.LittleEndian.Uint64(cell)))
			case KindBool:
				a.Bools = append(a.Bools, cell[0] != 0)
			case KindComplex:
				re := math.Float64frombits(binary.LittleEndian.Uint64(cell))
				im := math.Float64frombits(binary.LittleEndian.Uint64(cell[8:]))
				a.Complexes = append(a.Complexes, complex(re, im))
			case KindString:
				s := string(bytes.TrimRight(cell, "\x00"))
				if s == nanRep {
					s = ""
				}
				a.Strs = append(a.Strs, s)
			}
		}
	}
	return out, nil
}

// IsIndexed reports whether a secondary lookup structure exists on disk
// for this axis column. Only meaningful while the owning table is open.
func (ic *IndexColumn) IsIndexed() bool {
	if ic.owner == nil {
		return false
	}
	return ic.owner.hasIndexOn(ic.CName)
}
