package framestore

import (
	"encoding/json"
	"fmt"
)

// formatVersion is written into every group's attrs. Groups with an
// older (or missing) version predate condition pushdown and get the
// warn-and-ignore treatment on select with a where clause.
const formatVersion = "1.0"

const (
	groupTypeFixed = "fixed_frame"
	groupTypeTable = "appendable_frame"
)

type (
	indexColRef struct {
		Axis  int    `json:"axis"`
		CName string `json:"cname"`
	}

	// colAttrs is the persisted per-column schema: {name}_kind,
	// {name}_dtype, {name}_meta and the physical sizing, keyed by cname in
	// groupAttrs.Columns.
	colAttrs struct {
		Name     string     `json:"name"`
		Kind     ColumnKind `json:"kind"`
		Dtype    string     `json:"dtype,omitempty"`
		Meta     string     `json:"meta,omitempty"`
		Itemsize int        `json:"itemsize,omitempty"`
		Timezone string     `json:"tz,omitempty"`
		Ordered  bool       `json:"ordered,omitempty"`
		Metadata *arrayJSON `json:"metadata,omitempty"`
		Values   []string   `json:"values,omitempty"`
		Pos      int        `json:"pos"`
	}

	// groupAttrs is the full persisted schema for one group. Must
	// round-trip exactly.
	groupAttrs struct {
		TableType    string                    `json:"table_type"`
		Version      string                    `json:"version"`
		Encoding     string                    `json:"encoding,omitempty"`
		Errors       string                    `json:"errors,omitempty"`
		NanRep       string                    `json:"nan_rep,omitempty"`
		Levels       []string                  `json:"levels,omitempty"`
		IndexName    string                    `json:"index_name,omitempty"`
		IndexCols    []indexColRef             `json:"index_cols,omitempty"`
		ValuesCols   []string                  `json:"values_cols,omitempty"`
		NonIndexAxes []nonIndexAxis            `json:"non_index_axes,omitempty"`
		DataColumns  []string                  `json:"data_columns,omitempty"`
		NRows        int64                     `json:"nrows"`
		Info         map[string]map[string]any `json:"info,omitempty"`
		Columns      map[string]colAttrs       `json:"columns,omitempty"`
	}

	// arrayJSON is the JSON form of an Array (category metadata, fixed
	// index payloads live in gob instead).
	arrayJSON struct {
		Kind ColumnKind `json:"kind"`
		Vals []any      `json:"vals"`
		TZ   string     `json:"tz,omitempty"`
	}
)

func arrayToJSON(a *Array) *arrayJSON {
	if a == nil {
		return nil
	}
	out := &arrayJSON{Kind: a.Kind, TZ: a.TZ}
	n := a.Len()
	out.Vals = make([]any, n)
	for i := 0; i < n; i++ {
		out.Vals[i] = a.ValueAt(i)
	}
	return out
}

func arrayFromJSON(aj *arrayJSON) (*Array, error) {
	if aj == nil {
		return nil, nil
	}
	out := &Array{Kind: aj.Kind, TZ: aj.TZ}
	for _, v := range aj.Vals {
		switch aj.Kind {
		case KindInteger, KindDatetime64, KindTimedelta64, KindDate:
			f, ok := v.(float64)
			if !ok {
				if i, isI := v.(int64); isI {
					out.Ints = append(out.Ints, i)
					continue
				}
				return nil, fmt.Errorf("bad %s metadata value %T", aj.Kind, v)
			}
			out.Ints = append(out.Ints, int64(f))
		case KindFloat:
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("bad float metadata value %T", v)
			}
			out.Floats = append(out.Floats, f)
		case KindString:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("bad string metadata value %T", v)
			}
			out.Strs = append(out.Strs, s)
		case KindBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("bad bool metadata value %T", v)
			}
			out.Bools = append(out.Bools, b)
		default:
			return nil, fmt.Errorf("kind %s cannot be used as metadata", aj.Kind)
		}
	}
	return out, nil
}

func marshalAttrs(a groupAttrs) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}

func unmarshalAttrs(s string) (groupAttrs, error) {
	var a groupAttrs
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return a, fmt.Errorf("error in json.Unmarshal: %w", err)
	}
	return a, nil
}

func colToAttrs(c *DataColumn) colAttrs {
	return colAttrs{
		Name:     c.Name,
		Kind:     c.Kind,
		Dtype:    c.Dtype,
		Meta:     c.Meta,
		Itemsize: c.Itemsize,
		Timezone: c.Timezone,
		Ordered:  c.Ordered,
		Metadata: arrayToJSON(c.Metadata),
		Values:   c.Values,
		Pos:      c.Pos,
	}
}

func colFromAttrs(cname string, ca colAttrs) (*DataColumn, error) {
	meta, err := arrayFromJSON(ca.Metadata)
	if err != nil {
		return nil, err
	}
	return &DataColumn{
		Name:     ca.Name,
		CName:    cname,
		Kind:     ca.Kind,
		Dtype:    ca.Dtype,
		Meta:     ca.Meta,
		Itemsize: ca.Itemsize,
		Timezone: ca.Timezone,
		Ordered:  ca.Ordered,
		Metadata: meta,
		Values:   ca.Values,
		Pos:      ca.Pos,
	}, nil
}
