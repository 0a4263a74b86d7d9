// Package parser implements the surface-syntax parser of spec.md §6.2: a
// pure function from source text to value.Val forms. It sits alongside
// pkg/lexer as the external "lexer/parser/printer" collaborator spec.md
// §1 carves out of the core, but is implemented in full since the core's
// own tests, the CLI, and the worker evaluation loop's bootstrap program
// all need it.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kristofer/wisp/pkg/lexer"
	"github.com/kristofer/wisp/pkg/value"
)

// Parser turns a token stream into value.Val forms.
type Parser struct {
	l      *lexer.Lexer
	cur    lexer.Token
	peek   lexer.Token
	errors []string
}

// New returns a parser over input.
func New(input string) *Parser {
	p := &Parser{l: lexer.New(input)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

// Errors returns accumulated parse errors, in the teacher parser's
// error-accumulation idiom.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

// ParseProgram parses every top-level form in the input and returns them
// as a slice; used by the REPL/file-running collaborator to run a file
// containing several forms.
func (p *Parser) ParseProgram() ([]value.Val, error) {
	var forms []value.Val
	for p.cur.Type != lexer.TokenEOF {
		v, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, v)
	}
	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse errors: %v", p.errors)
	}
	return forms, nil
}

// ParseOne parses exactly one top-level form and reports an error if the
// input holds anything beyond trailing whitespace/comments after it.
func (p *Parser) ParseOne() (value.Val, error) {
	if p.cur.Type == lexer.TokenEOF {
		return value.Val{}, fmt.Errorf("%w: empty input", errIncomplete)
	}
	v, err := p.parseForm()
	if err != nil {
		return value.Val{}, err
	}
	if p.cur.Type != lexer.TokenEOF {
		return value.Val{}, fmt.Errorf("unexpected trailing input at line %d", p.cur.Line)
	}
	return v, nil
}

var errIncomplete = fmt.Errorf("incomplete expression")

// ErrIncomplete reports whether err indicates the parser ran out of
// input mid-form, corresponding to value.ErrIncompleteExpression.
func ErrIncomplete(err error) bool {
	return errors.Is(err, errIncomplete)
}

func (p *Parser) parseForm() (value.Val, error) {
	switch p.cur.Type {
	case lexer.TokenEOF:
		return value.Val{}, errIncomplete
	case lexer.TokenIllegal:
		return value.Val{}, fmt.Errorf("invalid expression: %s (line %d)", p.cur.Literal, p.cur.Line)
	case lexer.TokenLParen:
		return p.parseList()
	case lexer.TokenRParen:
		return value.Val{}, fmt.Errorf("invalid expression: unexpected ')' (line %d)", p.cur.Line)
	case lexer.TokenQuote:
		p.next()
		inner, err := p.parseForm()
		if err != nil {
			return value.Val{}, err
		}
		return value.List(value.Symbol("quote"), inner), nil
	case lexer.TokenInt:
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return value.Val{}, fmt.Errorf("invalid integer literal %q (line %d)", p.cur.Literal, p.cur.Line)
		}
		p.next()
		return value.Int(n), nil
	case lexer.TokenString:
		s := p.cur.Literal
		p.next()
		return value.Str(s), nil
	case lexer.TokenKeyword:
		k := p.cur.Literal
		p.next()
		return value.Keyword(k), nil
	case lexer.TokenSymbol:
		lit := p.cur.Literal
		p.next()
		switch lit {
		case "nil":
			return value.Nil(), nil
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		default:
			return value.Symbol(lit), nil
		}
	default:
		return value.Val{}, fmt.Errorf("invalid expression at line %d", p.cur.Line)
	}
}

func (p *Parser) parseList() (value.Val, error) {
	p.next() // consume '('
	var items []value.Val
	for {
		if p.cur.Type == lexer.TokenEOF {
			return value.Val{}, errIncomplete
		}
		if p.cur.Type == lexer.TokenRParen {
			p.next()
			break
		}
		v, err := p.parseForm()
		if err != nil {
			return value.Val{}, err
		}
		items = append(items, v)
	}
	return value.ListOf(items), nil
}

// Parse parses a single form from s, the common entry point used
// throughout the runtime (compiling a client Request, building the
// worker bootstrap program, test fixtures, etc).
func Parse(s string) (value.Val, error) {
	return New(s).ParseOne()
}

// ParseAll parses every form in s.
func ParseAll(s string) ([]value.Val, error) {
	return New(s).ParseProgram()
}

// Print renders v back to surface syntax text (delegates to
// pkg/value.Print, which owns the canonical renderer so both the parser
// and error/debug paths share one implementation).
func Print(v value.Val) string {
	return value.Print(v)
}
