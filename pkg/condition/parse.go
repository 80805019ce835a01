package condition

import (
	"fmt"
	"strconv"
)

// Program is a parsed condition expression, ready for evaluation.
type Program struct {
	Source string
	root   expr
}

// expr is a node in the expression tree.
type expr interface {
	eval(ctx Context) (any, error)
}

type logicExpr struct {
	op  string // and, or
	lhs expr
	rhs expr
}

type notExpr struct {
	operand expr
}

type compareExpr struct {
	op  string // == != < > <= >=
	lhs expr
	rhs expr
}

type literal struct {
	value any // float64, string, or bool
}

type reference struct {
	step string
	key  string
	raw  string // original {step.key} text for error messages
}

// Parse tokenizes and parses an expression into a Program.
// Grammar, loosest binding first:
//
//	expr    := and { "or" and }
//	and     := unary { "and" unary }
//	unary   := "not" unary | compare
//	compare := operand [ op operand ] | "(" expr ")"
//	operand := number | string | true | false | {step_id.key}
func Parse(input string) (*Program, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q after complete expression", tok.text)}
	}
	return &Program{Source: input, root: root}, nil
}

// Evaluate parses and evaluates in one call.
func Evaluate(input string, ctx Context) (bool, error) {
	prog, err := Parse(input)
	if err != nil {
		return false, err
	}
	return prog.Eval(ctx)
}

// Eval evaluates the program against the context. The result must be
// boolean; a non-boolean top-level value is an EvalError.
func (p *Program) Eval(ctx Context) (bool, error) {
	v, err := p.root.eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvalError{Msg: fmt.Sprintf("condition %q did not produce a boolean (got %T)", p.Source, v)}
	}
	return b, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &logicExpr{op: "or", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &logicExpr{op: "and", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{operand: operand}, nil
	}
	return p.parseCompare()
}

// parseCompare parses a parenthesized sub-expression or an operand
// optionally followed by a single comparison. Comparisons do not chain:
// a second operator after a comparison is a parse error.
func (p *parser) parseCompare() (expr, error) {
	if p.peek().kind == tokLParen {
		open := p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &ParseError{Pos: open.pos, Msg: "unclosed parenthesis"}
		}
		p.next()
		return inner, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOp {
		return lhs, nil
	}
	op := p.next()
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &compareExpr{op: op.text, lhs: lhs, rhs: rhs}, nil
}

func (p *parser) parseOperand() (expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		f, _ := strconv.ParseFloat(tok.text, 64)
		return &literal{value: f}, nil
	case tokString:
		return &literal{value: tok.text}, nil
	case tokBool:
		return &literal{value: tok.text == "true"}, nil
	case tokRef:
		return &reference{step: tok.step, key: tok.key, raw: tok.text}, nil
	case tokEOF:
		return nil, &ParseError{Pos: tok.pos, Msg: "unexpected end of expression"}
	default:
		return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q: want a literal or {step_id.key} reference", tok.text)}
	}
}
