package framestore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/golang/snappy"
)

// The fixed format stores the whole frame as one opaque payload in the
// catalog row. Fast and compact, but it cannot be appended to or
// queried, only read back whole (or by positional slice).

func (s *Store) writeFixed(ctx context.Context, key string, f *Frame, opts *PutOptions) error {
	key = normalizeKey(key)
	g, err := s.getGroup(ctx, key)
	if err != nil {
		return err
	}
	if g != nil {
		// drop whatever lived here before, including a physical table
		if _, err := s.Remove(ctx, key, nil, nil, nil); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("error in gob.Encode: %w", err)
	}
	payload := buf.Bytes()
	if s.cfg.Compression {
		payload = append([]byte{1}, snappy.Encode(nil, payload)...)
	} else {
		payload = append([]byte{0}, payload...)
	}

	attrs := groupAttrs{
		TableType: "fixed",
		Version:   formatVersion,
		Encoding:  opts.Encoding,
		Errors:    opts.Errors,
		IndexName: f.IndexName,
		NRows:     int64(f.NRows()),
	}
	if f.IndexName != "" {
		attrs.Levels = []string{f.IndexName}
	}
	marshaled, err := marshalAttrs(attrs)
	if err != nil {
		return err
	}
	return s.upsertGroup(ctx, &groupRow{
		path:      key,
		groupType: groupTypeFixed,
		attrs:     marshaled,
		payload:   payload,
	})
}

func (s *Store) readFixed(g *groupRow, opts *SelectOptions) (*Frame, error) {
	if len(g.payload) == 0 {
		return nil, fmt.Errorf("empty payload for fixed-format object %s", g.path)
	}
	payload := g.payload[1:]
	if g.payload[0] == 1 {
		var err error
		payload, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("error in snappy.Decode: %w", err)
		}
	}
	var f Frame
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&f); err != nil {
		return nil, fmt.Errorf("error in gob.Decode: %w", err)
	}

	out := &f
	if opts.Start != nil || opts.Stop != nil {
		start, stop := int64(0), int64(out.NRows())
		if opts.Start != nil && *opts.Start > start {
			start = *opts.Start
		}
		if opts.Stop != nil && *opts.Stop < stop {
			stop = *opts.Stop
		}
		if stop < start {
			stop = start
		}
		idx := make([]int64, 0, stop-start)
		for i := start; i < stop; i++ {
			idx = append(idx, i)
		}
		out = out.TakeRows(idx)
	}
	if len(opts.Columns) > 0 {
		return out.SelectColumns(opts.Columns)
	}
	return out, nil
}
