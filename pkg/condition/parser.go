package condition

import (
	"fmt"
	"strconv"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

// binding powers
const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precCompare
	precSum
	precProduct
	precUnary
)

var infixPrec = map[string]int{
	"||": precOr,
	"&&": precAnd,
	"==": precEquality,
	"!=": precEquality,
	"<":  precCompare,
	"<=": precCompare,
	">":  precCompare,
	">=": precCompare,
	"+":  precSum,
	"-":  precSum,
	"*":  precProduct,
	"/":  precProduct,
	"%":  precProduct,
}

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expr(precLowest)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s", t)}
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expr(minPrec int) (node, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}
		prec, ok := infixPrec[t.text]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.next()
		right, err := p.expr(prec)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.text, left: left, right: right}
	}
}

func (p *parser) prefix() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("bad number %q", t.text)}
		}
		return &literalNode{value: f}, nil
	case tokString:
		return &literalNode{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "nil":
			return &literalNode{value: nil}, nil
		}
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		return &identNode{name: t.text}, nil
	case tokOp:
		if t.text != "!" && t.text != "-" {
			break
		}
		x, err := p.expr(precUnary)
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: t.text, x: x}, nil
	case tokLParen:
		x, err := p.expr(precLowest)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: closing.pos, Msg: fmt.Sprintf("expected ) but found %s", closing)}
		}
		return x, nil
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s", t)}
}

func (p *parser) call(name token) (node, error) {
	fn, ok := builtins[name.text]
	if !ok {
		return nil, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("unknown function %s", name.text)}
	}
	p.next() // (
	c := &callNode{name: name.text, fn: fn}
	if p.peek().kind == tokRParen {
		p.next()
		return c, c.checkArity(name.pos)
	}
	for {
		arg, err := p.expr(precLowest)
		if err != nil {
			return nil, err
		}
		c.args = append(c.args, arg)
		t := p.next()
		if t.kind == tokRParen {
			return c, c.checkArity(name.pos)
		}
		if t.kind != tokComma {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected , or ) but found %s", t)}
		}
	}
}
