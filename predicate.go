package framestore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxSelectors is the most distinct values an equality test may expand to
// as a native condition. Anything larger is deferred to a post-read
// filter.
const maxSelectors = 31

type (
	// TermValue holds one converted comparison value.
	TermValue struct {
		Value     any
		Converted any
		Kind      ColumnKind
	}

	// FilterTriple is a deferred predicate applied as a post-read mask:
	// keep rows whose column value is in Values (or not in, if Invert).
	FilterTriple struct {
		Col    string
		Values []any
		Invert bool
	}

	conditionResult struct {
		condition string
	}

	filterResult struct {
		triples []FilterTriple
		joint   bool
	}

	// CompiledExpr is the outcome of compiling a where clause: a native
	// condition pushed into the row read, deferred filters, or both.
	CompiledExpr struct {
		Condition   string
		Filters     []FilterTriple
		jointFilter bool
	}
)

// compileWhere parses and compiles a where clause against a table's
// queryables. Accepts a single expression string or a list of term
// strings joined with &.
func compileWhere(where any, queryables map[string]*DataColumn, scope map[string]any, encoding string) (*CompiledExpr, error) {
	var exprStr string
	switch w := where.(type) {
	case string:
		exprStr = w
	case []string:
		parts := make([]string, len(w))
		for i, s := range w {
			parts[i] = "(" + s + ")"
		}
		exprStr = strings.Join(parts, " & ")
	default:
		return nil, fmt.Errorf("where must be passed as a string or list of strings, got %T", where)
	}

	tree, err := parseWhere(exprStr, queryables, scope)
	if err != nil {
		return nil, err
	}

	cond, err := pruneCondition(tree, queryables, encoding)
	if err != nil {
		return nil, err
	}
	filt, err := pruneFilter(tree, queryables)
	if err != nil {
		return nil, err
	}

	out := &CompiledExpr{}
	if cond != nil {
		out.Condition = cond.condition
	}
	if filt != nil {
		out.Filters = filt.triples
		out.jointFilter = filt.joint
	}
	if cond == nil && filt == nil {
		return nil, fmt.Errorf("cannot process expression [%s], it is not a valid condition or filter", exprStr)
	}
	return out, nil
}

// pruneCondition reduces the tree to a single native condition string, or
// nil if the branch belongs to the filter family.
func pruneCondition(node exprNode, q map[string]*DataColumn, encoding string) (*conditionResult, error) {
	switch n := node.(type) {
	case cmpNode:
		return evaluateCondition(n, q, encoding)
	case logicNode:
		left, err := pruneCondition(n.l, q, encoding)
		if err != nil {
			return nil, err
		}
		right, err := pruneCondition(n.r, q, encoding)
		if err != nil {
			return nil, err
		}
		// when only one side compiled, it wins outright
		if left == nil {
			return right, nil
		}
		if right == nil {
			return left, nil
		}
		sqlOp := "AND"
		if n.op == "|" {
			sqlOp = "OR"
		}
		return &conditionResult{condition: fmt.Sprintf("(%s %s %s)", left.condition, sqlOp, right.condition)}, nil
	case notNode:
		operand, err := pruneCondition(n.operand, q, encoding)
		if err != nil {
			return nil, err
		}
		if operand != nil {
			// a compiled condition string cannot be safely negated post-hoc
			return nil, ErrInvertCondition
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected node %T in where expression", node)
}

// pruneFilter reduces the tree to deferred filter triples, or nil if the
// branch compiled to a native condition.
func pruneFilter(node exprNode, q map[string]*DataColumn) (*filterResult, error) {
	switch n := node.(type) {
	case cmpNode:
		return evaluateFilter(n, q)
	case logicNode:
		left, err := pruneFilter(n.l, q)
		if err != nil {
			return nil, err
		}
		right, err := pruneFilter(n.r, q)
		if err != nil {
			return nil, err
		}
		if left == nil {
			return right, nil
		}
		if right == nil {
			return left, nil
		}
		// two filter-family children collapse into a joint filter, which
		// can only be applied if the caller knows how (it usually cannot)
		return &filterResult{triples: append(append([]FilterTriple(nil), left.triples...), right.triples...), joint: true}, nil
	case notNode:
		operand, err := pruneFilter(n.operand, q)
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		for i := range operand.triples {
			operand.triples[i].Invert = !operand.triples[i].Invert
		}
		return operand, nil
	}
	return nil, fmt.Errorf("unexpected node %T in where expression", node)
}

func evaluateCondition(n cmpNode, q map[string]*DataColumn, encoding string) (*conditionResult, error) {
	if len(n.rhs) == 0 {
		return nil, fmt.Errorf("cannot compare [%s %s] against an empty list", n.col, n.op)
	}
	col := q[n.col]
	if col == nil {
		// metadata-only name, not a physically stored column
		return nil, nil
	}

	switch n.op {
	case "==", "!=":
		if len(n.rhs) > maxSelectors {
			// too many values for a native expression, defer to a filter
			return nil, nil
		}
		parts := make([]string, 0, len(n.rhs))
		for _, v := range n.rhs {
			tv, err := convertValue(col, v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, generate(col, n.op, tv))
		}
		return &conditionResult{condition: "(" + strings.Join(parts, " OR ") + ")"}, nil
	default:
		// ordering comparisons only use the first value
		tv, err := convertValue(col, n.rhs[0])
		if err != nil {
			return nil, err
		}
		return &conditionResult{condition: generate(col, n.op, tv)}, nil
	}
}

func evaluateFilter(n cmpNode, q map[string]*DataColumn) (*filterResult, error) {
	if len(n.rhs) == 0 {
		return nil, fmt.Errorf("cannot compare [%s %s] against an empty list", n.col, n.op)
	}
	col, ok := q[n.col]
	if !ok {
		return nil, fmt.Errorf("query term [%s] is not valid: %w", n.col, ErrUndefinedName)
	}

	if col != nil {
		// physically stored: only an oversized equality set falls back here
		if (n.op == "==" || n.op == "!=") && len(n.rhs) > maxSelectors {
			return &filterResult{triples: []FilterTriple{{Col: n.col, Values: n.rhs, Invert: n.op == "!="}}}, nil
		}
		return nil, nil
	}

	if n.op == "==" || n.op == "!=" {
		return &filterResult{triples: []FilterTriple{{Col: n.col, Values: n.rhs, Invert: n.op == "!="}}}, nil
	}
	return nil, fmt.Errorf("[%s %s ...]: %w", n.col, n.op, ErrNonTableFilter)
}

// generate renders one comparison against the native engine syntax.
func generate(col *DataColumn, op string, tv TermValue) string {
	sqlOp := op
	if op == "==" {
		sqlOp = "="
	}
	return fmt.Sprintf("(%q %s %s)", col.CName, sqlOp, tv.toString())
}

var boolFalsy = map[string]bool{
	"false": true, "f": true, "no": true, "n": true,
	"none": true, "0": true, "[]": true, "{}": true, "": true,
}

// convertValue coerces a comparison value to the column's kind, producing
// the engine-side representation.
func convertValue(col *DataColumn, v any) (TermValue, error) {
	if col.Meta == "category" {
		code := col.searchCategory(normCategoryValue(v))
		return TermValue{Value: code, Converted: code, Kind: KindInteger}, nil
	}

	switch col.Kind {
	case KindDatetime64:
		ns, err := toNanos(v)
		if err != nil {
			return TermValue{}, fmt.Errorf("cannot compare %v of type %T to %s column [%s]", v, v, col.Kind, col.Name)
		}
		return TermValue{Value: v, Converted: ns, Kind: KindDatetime64}, nil
	case KindDate:
		days, err := toDays(v)
		if err != nil {
			return TermValue{}, fmt.Errorf("cannot compare %v of type %T to %s column [%s]", v, v, col.Kind, col.Name)
		}
		return TermValue{Value: v, Converted: days, Kind: KindDate}, nil
	case KindTimedelta64:
		var ns int64
		switch x := v.(type) {
		case time.Duration:
			ns = int64(x)
		case int64:
			ns = x * int64(time.Second)
		case int:
			ns = int64(x) * int64(time.Second)
		case float64:
			ns = int64(x * float64(time.Second))
		case string:
			d, err := time.ParseDuration(x)
			if err != nil {
				return TermValue{}, fmt.Errorf("cannot compare %q to timedelta64 column [%s]", x, col.Name)
			}
			ns = int64(d)
		default:
			return TermValue{}, fmt.Errorf("cannot compare %v of type %T to timedelta64 column [%s]", v, v, col.Name)
		}
		return TermValue{Value: v, Converted: ns, Kind: KindTimedelta64}, nil
	case KindInteger:
		switch x := v.(type) {
		case int64:
			return TermValue{Value: x, Converted: x, Kind: KindInteger}, nil
		case int:
			return TermValue{Value: v, Converted: int64(x), Kind: KindInteger}, nil
		case float64:
			return TermValue{Value: v, Converted: int64(x), Kind: KindInteger}, nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return TermValue{}, fmt.Errorf("cannot compare %q to integer column [%s]", x, col.Name)
			}
			return TermValue{Value: v, Converted: int64(f), Kind: KindInteger}, nil
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return TermValue{Value: x, Converted: x, Kind: KindFloat}, nil
		case int64:
			return TermValue{Value: v, Converted: float64(x), Kind: KindFloat}, nil
		case int:
			return TermValue{Value: v, Converted: float64(x), Kind: KindFloat}, nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return TermValue{}, fmt.Errorf("cannot compare %q to float column [%s]", x, col.Name)
			}
			return TermValue{Value: v, Converted: f, Kind: KindFloat}, nil
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return TermValue{Value: x, Converted: x, Kind: KindBool}, nil
		case string:
			b := !boolFalsy[strings.ToLower(strings.TrimSpace(x))]
			return TermValue{Value: v, Converted: b, Kind: KindBool}, nil
		default:
			return TermValue{Value: v, Converted: v != nil, Kind: KindBool}, nil
		}
	case KindString:
		return TermValue{Value: v, Converted: fmt.Sprintf("%v", v), Kind: KindString}, nil
	}
	return TermValue{}, fmt.Errorf("cannot compare %v of type %T to %s column [%s]", v, v, col.Kind, col.Name)
}

func normCategoryValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	}
	return v
}

func toNanos(v any) (int64, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().UnixNano(), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC().UnixNano(), nil
			}
		}
		return 0, fmt.Errorf("cannot parse %q as a datetime", x)
	}
	return 0, fmt.Errorf("unsupported datetime value type %T", v)
}

// toDays coerces a comparison value to whole days since the epoch, the
// storage unit for date columns.
func toDays(v any) (int64, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Unix() / 86400, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		if t, err := time.Parse("2006-01-02", x); err == nil {
			return t.UTC().Unix() / 86400, nil
		}
		return 0, fmt.Errorf("cannot parse %q as a date", x)
	}
	return 0, fmt.Errorf("unsupported date value type %T", v)
}

// toString renders the converted value as a native engine literal.
func (tv TermValue) toString() string {
	switch c := tv.Converted.(type) {
	case string:
		return "'" + strings.ReplaceAll(c, "'", "''") + "'"
	case bool:
		if c {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		if math.IsNaN(c) {
			return "NULL"
		}
		return strconv.FormatFloat(c, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", tv.Converted)
}
