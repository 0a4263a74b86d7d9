// Package compiler turns a value.Val form into a bytecode.Program
// (spec.md §4.1). The parsed value tree doubles as the AST: there is no
// separate node type, matching the teacher's direct Val-to-instruction
// compile() grounded on original_source/lyric/src/codegen.rs.
//
// Compile errors are limited to syntactic shape: empty list expressions,
// malformed special forms, and unknown destructuring shapes. An
// unresolved symbol is never a compile error — GetSym only fails when the
// fiber actually runs it.
package compiler

import (
	"fmt"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/value"
)

// Compile compiles a single form into a fresh, independent program.
func Compile(v value.Val) (*bytecode.Program, error) {
	c := &Compiler{prog: bytecode.New()}
	if err := c.compileForm(v); err != nil {
		return nil, err
	}
	return c.prog, nil
}

// Compiler holds the in-progress program for one compilation unit (a
// top-level form, or a lambda body compiled recursively into its own
// program).
type Compiler struct {
	prog    *bytecode.Program
	gensymN int
}

func (c *Compiler) gensym(tag string) string {
	c.gensymN++
	return fmt.Sprintf("%%%s-%d", tag, c.gensymN)
}

func invalid(format string, args ...interface{}) error {
	return value.NewErr(value.ErrInvalidExpression, format, args...)
}

func (c *Compiler) compileForm(v value.Val) error {
	switch v.Kind {
	case value.KindSymbol:
		c.prog.Emit(bytecode.OpGetSym, c.prog.AddConstant(v))
		return nil
	case value.KindList:
		return c.compileList(v)
	default:
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(v))
		return nil
	}
}

func (c *Compiler) compileList(v value.Val) error {
	if len(v.List) == 0 {
		return invalid("empty list expression")
	}
	head, args := v.List[0], v.List[1:]
	if head.Kind == value.KindSymbol {
		switch head.Str {
		case "begin":
			return c.compileBegin(args)
		case "def":
			return c.compileDef(args)
		case "defn":
			return c.compileDefn(args)
		case "set":
			return c.compileSet(args)
		case "lambda":
			return c.compileLambda(args)
		case "if":
			return c.compileIf(args)
		case "cond":
			return c.compileCond(args)
		case "let":
			return c.compileLet(args)
		case "quote":
			return c.compileQuote(args)
		case "eval":
			return c.compileEval(args, false)
		case "try":
			return c.compileEval(args, true)
		case "yield":
			return c.compileYield(args)
		case "loop":
			return c.compileLoop(args)
		case "match":
			return c.compileMatch(args)
		case "and":
			return c.compileAnd(args)
		case "or":
			return c.compileOr(args)
		}
	}
	return c.compileFuncCall(head, args)
}

func (c *Compiler) compileFuncCall(head value.Val, args []value.Val) error {
	if err := c.compileForm(head); err != nil {
		return err
	}
	for _, a := range args {
		if err := c.compileForm(a); err != nil {
			return err
		}
	}
	c.prog.Emit(bytecode.OpCallFunc, len(args))
	return nil
}

func (c *Compiler) compileBegin(args []value.Val) error {
	if len(args) == 0 {
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(value.Nil()))
		return nil
	}
	for i, a := range args {
		if i > 0 {
			c.prog.Emit(bytecode.OpPopTop, 0)
		}
		if err := c.compileForm(a); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileDef(args []value.Val) error {
	if len(args) != 2 {
		return invalid("def expects a pattern and a single form as arguments")
	}
	pattern, val := args[0], args[1]
	if err := c.compileForm(val); err != nil {
		return err
	}
	switch pattern.Kind {
	case value.KindSymbol:
		c.prog.Emit(bytecode.OpDefSym, c.prog.AddConstant(pattern))
	case value.KindList:
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(pattern))
		c.prog.Emit(bytecode.OpDefBind, 0)
	default:
		return invalid("unknown destructuring shape for def: %s", value.Print(pattern))
	}
	return nil
}

func (c *Compiler) compileSet(args []value.Val) error {
	if len(args) != 2 || args[0].Kind != value.KindSymbol {
		return invalid("set expects a symbol and a single form as arguments")
	}
	if err := c.compileForm(args[1]); err != nil {
		return err
	}
	c.prog.Emit(bytecode.OpSetSym, c.prog.AddConstant(args[0]))
	return nil
}

// compileDefn expands "(defn name (params…) body…)" to the same shape
// lambda compiles, additionally binding the result under name.
func (c *Compiler) compileDefn(args []value.Val) error {
	if len(args) < 3 {
		return invalid("defn expects a name, parameter list, and nonempty body")
	}
	name, params, body := args[0], args[1], args[2:]
	if name.Kind != value.KindSymbol {
		return invalid("defn expects a symbol name")
	}
	if params.Kind != value.KindList {
		return invalid("defn expects a parameter list")
	}
	if err := c.compileLambdaBody(params, body, name.Str); err != nil {
		return err
	}
	c.prog.Emit(bytecode.OpDefSym, c.prog.AddConstant(name))
	return nil
}

// compileLambda handles the bare "(lambda (params…) body…)" form.
func (c *Compiler) compileLambda(args []value.Val) error {
	if len(args) < 1 {
		return invalid("lambda expects a parameter list and body")
	}
	params, body := args[0], args[1:]
	if params.Kind != value.KindList {
		return invalid("lambda expects a parameter list")
	}
	if len(body) == 0 {
		body = []value.Val{value.Nil()}
	}
	return c.compileLambdaBody(params, body, "")
}

// compileLambdaBody emits PushConst(params), PushConst(body-bytecode),
// MakeFunc. MakeFunc's operand indexes a two-element [doc, name]
// metadata constant (both nil when absent); the fiber attaches these to
// the resulting Lambda without changing the two-value MakeFunc stack
// contract spec.md §4.1 names.
func (c *Compiler) compileLambdaBody(params value.Val, body []value.Val, name string) error {
	for _, p := range params.List {
		if p.Kind != value.KindSymbol {
			return invalid("lambda parameter list must contain only symbols")
		}
	}

	doc := ""
	if len(body) >= 2 && body[0].Kind == value.KindStr {
		doc = body[0].Str
		body = body[1:]
	}

	bodyForm := value.List(append([]value.Val{value.Symbol("begin")}, body...)...)
	bodyProg, err := Compile(bodyForm)
	if err != nil {
		return err
	}

	docVal := value.Nil()
	if doc != "" {
		docVal = value.Str(doc)
	}
	nameVal := value.Nil()
	if name != "" {
		nameVal = value.Str(name)
	}

	c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(params))
	c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(value.BytecodeVal(bodyProg)))
	meta := c.prog.AddConstant(value.List(docVal, nameVal))
	c.prog.Emit(bytecode.OpMakeFunc, meta)
	return nil
}

// compileIf implements "(if c t [f])" per spec.md §4.1: emit c,
// PopJumpFwdIfTrue, compiled f (or nil), JumpFwd, compiled t.
func (c *Compiler) compileIf(args []value.Val) error {
	if len(args) != 2 && len(args) != 3 {
		return invalid("if expects a condition, a true branch, and an optional false branch")
	}
	cond, t := args[0], args[1]
	f := value.Nil()
	if len(args) == 3 {
		f = args[2]
	}
	return c.compileIfRaw(cond, t, f)
}

func (c *Compiler) compileIfRaw(cond, t, f value.Val) error {
	if err := c.compileForm(cond); err != nil {
		return err
	}
	jmpIfTrue := c.prog.Emit(bytecode.OpPopJumpFwdIfTrue, 0)
	beforeFalse := c.prog.Len()
	if err := c.compileForm(f); err != nil {
		return err
	}
	afterFalse := c.prog.Len()
	jmpFwd := c.prog.Emit(bytecode.OpJumpFwd, 0)
	beforeTrue := c.prog.Len()
	if err := c.compileForm(t); err != nil {
		return err
	}
	afterTrue := c.prog.Len()
	c.prog.Patch(jmpIfTrue, afterFalse-beforeFalse+1)
	c.prog.Patch(jmpFwd, afterTrue-beforeTrue)
	return nil
}

// compileCond expands "(cond (cᵢ eᵢ)…)" into nested if; no clause
// matching yields nil.
func (c *Compiler) compileCond(clauses []value.Val) error {
	if len(clauses) == 0 {
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(value.Nil()))
		return nil
	}
	pair := clauses[0]
	if pair.Kind != value.KindList || len(pair.List) != 2 {
		return invalid("cond clause must be a (condition expr) pair")
	}
	cond, body := pair.List[0], pair.List[1]

	if err := c.compileForm(cond); err != nil {
		return err
	}
	jmpIfTrue := c.prog.Emit(bytecode.OpPopJumpFwdIfTrue, 0)
	beforeFalse := c.prog.Len()
	if err := c.compileCond(clauses[1:]); err != nil {
		return err
	}
	afterFalse := c.prog.Len()
	jmpFwd := c.prog.Emit(bytecode.OpJumpFwd, 0)
	beforeTrue := c.prog.Len()
	if err := c.compileForm(body); err != nil {
		return err
	}
	afterTrue := c.prog.Len()
	c.prog.Patch(jmpIfTrue, afterFalse-beforeFalse+1)
	c.prog.Patch(jmpFwd, afterTrue-beforeTrue)
	return nil
}

// compileLet expands "(let ((sym v)…) body…)" into an immediately
// invoked lambda, per spec.md §4.1.
func (c *Compiler) compileLet(args []value.Val) error {
	if len(args) < 1 || args[0].Kind != value.KindList {
		return invalid("let expects a binding list and a body")
	}
	bindings := args[0].List
	body := args[1:]

	params := make([]value.Val, 0, len(bindings))
	argVals := make([]value.Val, 0, len(bindings))
	for _, b := range bindings {
		if b.Kind != value.KindList || len(b.List) != 2 {
			return invalid("let binding must be a (symbol expr) pair")
		}
		sym, val := b.List[0], b.List[1]
		if sym.Kind != value.KindSymbol {
			return invalid("let binding must start with a symbol")
		}
		params = append(params, sym)
		argVals = append(argVals, val)
	}
	if len(body) == 0 {
		body = []value.Val{value.Nil()}
	}

	if err := c.compileLambdaBody(value.ListOf(params), body, ""); err != nil {
		return err
	}
	for _, a := range argVals {
		if err := c.compileForm(a); err != nil {
			return err
		}
	}
	c.prog.Emit(bytecode.OpCallFunc, len(argVals))
	return nil
}

func (c *Compiler) compileQuote(args []value.Val) error {
	if len(args) != 1 {
		return invalid("quote expects a single argument")
	}
	c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(args[0]))
	return nil
}

func (c *Compiler) compileEval(args []value.Val, protected bool) error {
	if len(args) != 1 {
		return invalid("eval/try expects a single argument")
	}
	if protected {
		// (try x) is (eval 'x) in a protected frame: x itself is
		// evaluated inside the error-catching boundary.
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(args[0]))
		c.prog.Emit(bytecode.OpEval, 1)
		return nil
	}
	if err := c.compileForm(args[0]); err != nil {
		return err
	}
	c.prog.Emit(bytecode.OpEval, 0)
	return nil
}

func (c *Compiler) compileYield(args []value.Val) error {
	var v value.Val
	switch len(args) {
	case 0:
		v = value.Nil()
	case 1:
		v = args[0]
	default:
		return invalid("yield accepts zero or one argument")
	}
	if err := c.compileForm(v); err != nil {
		return err
	}
	c.prog.Emit(bytecode.OpYieldTop, 0)
	return nil
}

// compileLoop implements "(loop e…)": compile (begin e…), PopTop, jump
// back to the start — an unconditional, infinite loop broken only by
// yield/error/kill.
func (c *Compiler) compileLoop(args []value.Val) error {
	start := c.prog.Len()
	if err := c.compileBegin(args); err != nil {
		return err
	}
	c.prog.Emit(bytecode.OpPopTop, 0)
	end := c.prog.Len()
	jmpBck := c.prog.Emit(bytecode.OpJumpBck, 0)
	// step() advances ip by 1 before dispatching JumpBck, so the back
	// offset must also account for the JumpBck instruction itself.
	c.prog.Patch(jmpBck, end-start+1)
	return nil
}

// compileMatch expands "(match v (pat₁ e₁)…)" into a let-bound subject
// plus a cascade of protected destructure attempts, exactly the surface
// forms "(try (def patᵢ %subject))" / "(err? ...)" would produce —
// spec.md names the intended semantics ("cascading attempted
// destructures with a fallthrough nil") but the instruction set has no
// dedicated match opcode, so this is expressed entirely as sugar over
// let/try/def/if, reusing the existing special forms.
func (c *Compiler) compileMatch(args []value.Val) error {
	if len(args) < 1 {
		return invalid("match expects a subject and zero or more (pattern expr) clauses")
	}
	subject, clauses := args[0], args[1:]
	for _, cl := range clauses {
		if cl.Kind != value.KindList || len(cl.List) != 2 {
			return invalid("match clause must be a (pattern expr) pair")
		}
	}

	tmp := c.gensym("match-subject")
	body, err := c.buildMatchCascade(tmp, clauses)
	if err != nil {
		return err
	}

	letForm := value.List(
		value.Symbol("let"),
		value.List(value.List(value.Symbol(tmp), subject)),
		body,
	)
	return c.compileForm(letForm)
}

func (c *Compiler) buildMatchCascade(tmp string, clauses []value.Val) (value.Val, error) {
	if len(clauses) == 0 {
		return value.Nil(), nil
	}
	pat, expr := clauses[0].List[0], clauses[0].List[1]
	rest, err := c.buildMatchCascade(tmp, clauses[1:])
	if err != nil {
		return value.Val{}, err
	}

	attempt := value.List(
		value.Symbol("try"),
		value.List(value.Symbol("def"), pat, value.Symbol(tmp)),
	)
	failed := value.List(value.Symbol("err?"), attempt)
	return value.List(value.Symbol("if"), failed, rest, expr), nil
}

// compileAnd expands "(and a b…)": short-circuits to the first falsy
// operand; empty `and` is true.
func (c *Compiler) compileAnd(args []value.Val) error {
	if len(args) == 0 {
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(value.Bool(true)))
		return nil
	}
	return c.compileAndRest(args)
}

func (c *Compiler) compileAndRest(args []value.Val) error {
	if len(args) == 1 {
		return c.compileForm(args[0])
	}
	// Bind the head to a temporary so its value is evaluated exactly
	// once: tested for truthiness, and reused as the result if falsy.
	tmp := c.gensym("and")
	rest := c.reifyAndOr("and", args[1:])
	letForm := value.List(
		value.Symbol("let"),
		value.List(value.List(value.Symbol(tmp), args[0])),
		value.List(value.Symbol("if"), value.Symbol(tmp), rest, value.Symbol(tmp)),
	)
	return c.compileForm(letForm)
}

// compileOr expands "(or a b…)": short-circuits to the first truthy
// operand; empty `or` is nil.
func (c *Compiler) compileOr(args []value.Val) error {
	if len(args) == 0 {
		c.prog.Emit(bytecode.OpPushConst, c.prog.AddConstant(value.Nil()))
		return nil
	}
	return c.compileOrRest(args)
}

func (c *Compiler) compileOrRest(args []value.Val) error {
	if len(args) == 1 {
		return c.compileForm(args[0])
	}
	tmp := c.gensym("or")
	rest := c.reifyAndOr("or", args[1:])
	letForm := value.List(
		value.Symbol("let"),
		value.List(value.List(value.Symbol(tmp), args[0])),
		value.List(value.Symbol("if"), value.Symbol(tmp), value.Symbol(tmp), rest),
	)
	return c.compileForm(letForm)
}

// reifyAndOr packages a tail of and/or operands back into a Val form so
// the let/if expansion above can recurse into it as ordinary surface
// syntax.
func (c *Compiler) reifyAndOr(head string, tail []value.Val) value.Val {
	return value.List(append([]value.Val{value.Symbol(head)}, tail...)...)
}
