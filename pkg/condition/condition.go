// Package condition implements the restricted boolean expression language
// used for branch conditions. Operands are literals or {step_id.key}
// references into recorded step results; operators are the comparison set
// == != < > <= >= and the connectives and/or/not with parentheses.
//
// The grammar is closed on purpose: no function calls, no attribute
// traversal, no assignment. Expression text may come from an automated
// planner, so it must never gain code-execution power.
package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Context resolves a {step_id.key} reference to a recorded result value.
type Context interface {
	Lookup(stepID, key string) (any, bool)
}

// MapContext is a Context backed by a plain map, keyed step id → result map.
type MapContext map[string]map[string]any

func (m MapContext) Lookup(stepID, key string) (any, bool) {
	result, ok := m[stepID]
	if !ok {
		return nil, false
	}
	v, ok := result[key]
	return v, ok
}

// ParseError reports a token the grammar cannot interpret, with the byte
// offset of the offending input.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

// EvalError reports a failure during evaluation, typically a reference to
// a step result not yet present in the context.
type EvalError struct {
	Ref string
	Msg string
}

func (e *EvalError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("evaluate %s: %s", e.Ref, e.Msg)
	}
	return e.Msg
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokRef           // {step.key}
	tokNumber
	tokString
	tokBool
	tokOp // == != < > <= >=
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string // operator text, literal text, or step/key joined for refs
	step string // reference step id
	key  string // reference key
	pos  int
}

// tokenize splits the expression into tokens. Any character sequence the
// grammar does not know — including '.' and '(' in call position — fails
// here or in the parser with a ParseError.
func tokenize(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '{':
			start := i
			end := strings.IndexByte(input[i:], '}')
			if end < 0 {
				return nil, &ParseError{Pos: start, Msg: "unterminated reference"}
			}
			body := input[i+1 : i+end]
			step, key, ok := splitRef(body)
			if !ok {
				return nil, &ParseError{Pos: start, Msg: fmt.Sprintf("malformed reference {%s}: want {step_id.key}", body)}
			}
			toks = append(toks, token{kind: tokRef, text: "{" + body + "}", step: step, key: key, pos: start})
			i += end + 1
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '=' || c == '!' || c == '<' || c == '>':
			start := i
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
				i++
			}
			i++
			switch op {
			case "==", "!=", "<", ">", "<=", ">=":
				toks = append(toks, token{kind: tokOp, text: op, pos: start})
			default:
				return nil, &ParseError{Pos: start, Msg: fmt.Sprintf("unknown operator %q", op)}
			}
		case c == '"' || c == '\'':
			start := i
			end := strings.IndexByte(input[i+1:], c)
			if end < 0 {
				return nil, &ParseError{Pos: start, Msg: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: input[i+1 : i+1+end], pos: start})
			i += end + 2
		case c >= '0' && c <= '9' || c == '-':
			start := i
			if c == '-' {
				i++
				if i >= len(input) || input[i] < '0' || input[i] > '9' {
					return nil, &ParseError{Pos: start, Msg: "'-' must begin a number"}
				}
			}
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				i++
			}
			text := input[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, &ParseError{Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start})
		case isWordByte(c):
			start := i
			for i < len(input) && isWordByte(input[i]) {
				i++
			}
			word := input[start:i]
			switch word {
			case "and":
				toks = append(toks, token{kind: tokAnd, text: word, pos: start})
			case "or":
				toks = append(toks, token{kind: tokOr, text: word, pos: start})
			case "not":
				toks = append(toks, token{kind: tokNot, text: word, pos: start})
			case "true", "false":
				toks = append(toks, token{kind: tokBool, text: word, pos: start})
			default:
				return nil, &ParseError{Pos: start, Msg: fmt.Sprintf("bare identifier %q: operands are literals or {step_id.key} references", word)}
			}
		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}

// splitRef splits "step_id.key" at the first dot. Both halves must be
// non-empty identifier text; a second dot (attribute traversal) is rejected.
func splitRef(body string) (step, key string, ok bool) {
	dot := strings.IndexByte(body, '.')
	if dot <= 0 || dot == len(body)-1 {
		return "", "", false
	}
	step, key = body[:dot], body[dot+1:]
	for _, part := range []string{step, key} {
		for j := 0; j < len(part); j++ {
			if !isWordByte(part[j]) {
				return "", "", false
			}
		}
	}
	return step, key, true
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}
