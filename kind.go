package framestore

import (
	"fmt"
)

// ColumnKind is the closed set of logical column types the store can
// persist. It is a tagged enum rather than free-form strings so that the
// conversion and atom switches stay exhaustive.
type ColumnKind int

const (
	KindInteger ColumnKind = iota
	KindFloat
	KindBool
	KindString
	KindDatetime64
	KindTimedelta64
	KindComplex
	KindCategory
	KindObject
	KindDate
)

var kindNames = map[ColumnKind]string{
	KindInteger:     "integer",
	KindFloat:       "float",
	KindBool:        "bool",
	KindString:      "string",
	KindDatetime64:  "datetime64",
	KindTimedelta64: "timedelta64",
	KindComplex:     "complex",
	KindCategory:    "category",
	KindObject:      "object",
	KindDate:        "date",
}

func (k ColumnKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ColumnKind(%d)", int(k))
}

func ParseKind(s string) (ColumnKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unrecognized column kind %q", s)
}

func (k ColumnKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ColumnKind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// sqlType returns the physical SQLite column affinity for a kind stored
// as an individually addressable column (index or data column).
func (k ColumnKind) sqlType() string {
	switch k {
	case KindInteger, KindBool, KindDatetime64, KindTimedelta64, KindDate, KindCategory:
		// category stores integer codes, datetimes/timedeltas int64 ns,
		// dates int64 days since epoch
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindString:
		return "TEXT"
	case KindComplex, KindObject:
		return "BLOB"
	}
	panic(fmt.Sprintf("unhandled kind %v", k))
}

// fixedWidth returns the per-value byte width used when the kind is packed
// into a multi-column block blob. String widths are per-descriptor
// (itemsize), so -1 here.
func (k ColumnKind) fixedWidth() int {
	switch k {
	case KindInteger, KindFloat, KindDatetime64, KindTimedelta64, KindDate:
		return 8
	case KindBool:
		return 1
	case KindComplex:
		return 16
	case KindString, KindCategory, KindObject:
		return -1
	}
	panic(fmt.Sprintf("unhandled kind %v", k))
}

// blockable reports whether columns of this kind may be bundled into an
// opaque multi-column block. Categories and objects always serialize as
// standalone data columns.
func (k ColumnKind) blockable() bool {
	switch k {
	case KindCategory, KindObject:
		return false
	}
	return true
}
