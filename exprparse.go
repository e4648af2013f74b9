package framestore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type (
	exprNode interface{ exprNode() }

	// cmpNode is a resolved comparison leaf: a queryable column name on
	// the left, conformed right-hand values.
	cmpNode struct {
		op  string
		col string
		rhs []any
	}

	logicNode struct {
		op   string // & or |
		l, r exprNode
	}

	notNode struct {
		operand exprNode
	}

	exprParser struct {
		tokens     []exprToken
		pos        int
		queryables map[string]*DataColumn
		scope      map[string]any
	}
)

func (cmpNode) exprNode()   {}
func (logicNode) exprNode() {}
func (notNode) exprNode()   {}

// parseWhere parses a where string into a comparison tree. Left-hand
// names must resolve against the table's queryables; right-hand names
// resolve against scope, falling back to their literal text.
func parseWhere(where string, queryables map[string]*DataColumn, scope map[string]any) (exprNode, error) {
	toks, err := newExprLexer(where).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: toks, queryables: queryables, scope: scope}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d in where expression", p.cur().Value, p.cur().Pos)
	}
	return node, nil
}

func (p *exprParser) cur() exprToken {
	return p.tokens[p.pos]
}

func (p *exprParser) advance() exprToken {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *exprParser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == tokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicNode{op: "|", l: left, r: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == tokenAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logicNode{op: "&", l: left, r: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (exprNode, error) {
	switch p.cur().Type {
	case tokenNot:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, nil
	case tokenLParen:
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().Type != tokenRParen {
			return nil, fmt.Errorf("expected ) at position %d in where expression", p.cur().Pos)
		}
		p.advance()
		return node, nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (exprNode, error) {
	lhs := p.cur()
	if lhs.Type != tokenIdent {
		return nil, fmt.Errorf("expected a column name at position %d in where expression, got %q", lhs.Pos, lhs.Value)
	}
	p.advance()

	if _, ok := p.queryables[lhs.Value]; !ok {
		return nil, fmt.Errorf("name %q is not defined, queryable names are %v: %w",
			lhs.Value, sortedNames(p.queryables), ErrUndefinedName)
	}

	opTok := p.advance()
	var op string
	switch opTok.Type {
	case tokenEQ:
		op = "=="
	case tokenNEQ:
		op = "!="
	case tokenGT:
		op = ">"
	case tokenGTE:
		op = ">="
	case tokenLT:
		op = "<"
	case tokenLTE:
		op = "<="
	default:
		return nil, fmt.Errorf("expected a comparison operator at position %d in where expression, got %q", opTok.Pos, opTok.Value)
	}

	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return cmpNode{op: op, col: lhs.Value, rhs: conform(rhs)}, nil
}

func (p *exprParser) parseOperand() (any, error) {
	tok := p.advance()
	switch tok.Type {
	case tokenNumber:
		return parseNumber(tok.Value)
	case tokenString:
		return tok.Value, nil
	case tokenLBracket:
		var items []any
		for {
			if p.cur().Type == tokenRBracket {
				p.advance()
				return items, nil
			}
			item, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.cur().Type == tokenComma {
				p.advance()
			}
		}
	case tokenIdent:
		return p.resolveOperand(tok.Value)
	}
	return nil, fmt.Errorf("unexpected %q at position %d in where expression", tok.Value, tok.Pos)
}

// resolveOperand resolves a right-hand identifier: booleans, the scope
// map (with optional [n] subscript), then fallback to the literal name.
func (p *exprParser) resolveOperand(name string) (any, error) {
	switch strings.ToLower(name) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	resolved, inScope := p.scope[name]
	if !inScope {
		resolved = name
	}

	if p.cur().Type == tokenLBracket {
		p.advance()
		idxTok := p.advance()
		if idxTok.Type != tokenNumber {
			return nil, fmt.Errorf("cannot subscript %q with %q", name, idxTok.Value)
		}
		if p.cur().Type != tokenRBracket {
			return nil, fmt.Errorf("expected ] at position %d in where expression", p.cur().Pos)
		}
		p.advance()
		idx, err := strconv.Atoi(idxTok.Value)
		if err != nil {
			return nil, fmt.Errorf("cannot subscript %q with %q", name, idxTok.Value)
		}
		return subscript(resolved, idx, name)
	}
	return resolved, nil
}

func subscript(v any, idx int, name string) (any, error) {
	switch x := v.(type) {
	case []any:
		if idx < 0 || idx >= len(x) {
			return nil, fmt.Errorf("subscript [%d] out of range for %q", idx, name)
		}
		return x[idx], nil
	case []int64:
		if idx < 0 || idx >= len(x) {
			return nil, fmt.Errorf("subscript [%d] out of range for %q", idx, name)
		}
		return x[idx], nil
	case []float64:
		if idx < 0 || idx >= len(x) {
			return nil, fmt.Errorf("subscript [%d] out of range for %q", idx, name)
		}
		return x[idx], nil
	case []string:
		if idx < 0 || idx >= len(x) {
			return nil, fmt.Errorf("subscript [%d] out of range for %q", idx, name)
		}
		return x[idx], nil
	case []time.Time:
		if idx < 0 || idx >= len(x) {
			return nil, fmt.Errorf("subscript [%d] out of range for %q", idx, name)
		}
		return x[idx], nil
	case *Array:
		if idx < 0 || idx >= x.Len() {
			return nil, fmt.Errorf("subscript [%d] out of range for %q", idx, name)
		}
		return x.ValueAt(idx), nil
	}
	return nil, fmt.Errorf("cannot subscript %q (%T) with [%d]", name, v, idx)
}

func parseNumber(s string) (any, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q in where expression", s)
	}
	return f, nil
}

// conform flattens a right-hand operand into a list of values.
func conform(rhs any) []any {
	switch x := rhs.(type) {
	case []any:
		return x
	case []int64:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = v
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = v
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = v
		}
		return out
	case []time.Time:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = v
		}
		return out
	case *Array:
		out := make([]any, x.Len())
		for i := range out {
			out[i] = x.ValueAt(i)
		}
		return out
	}
	return []any{rhs}
}

func sortedNames(q map[string]*DataColumn) []string {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
