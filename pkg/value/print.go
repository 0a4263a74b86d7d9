package value

import (
	"strconv"
	"strings"
)

// Print renders v as surface syntax text. It is the collaborator
// function spec.md §1 calls out as a pure function on strings and
// values; used for debugging (`dbg`), the `str` builtin, and the
// raw-string fallback in the wire encoding of non-serializable variants.
func Print(v Val) string {
	var b strings.Builder
	print(&b, v)
	return b.String()
}

func print(b *strings.Builder, v Val) {
	switch v.Kind {
	case KindNil:
		b.WriteString("nil")
	case KindBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindStr:
		b.WriteByte('"')
		for _, r := range v.Str {
			switch r {
			case '"':
				b.WriteString(`\"`)
			case '\\':
				b.WriteString(`\\`)
			case '\n':
				b.WriteString(`\n`)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('"')
	case KindSymbol:
		b.WriteString(v.Str)
	case KindKeyword:
		b.WriteByte(':')
		b.WriteString(v.Str)
	case KindList:
		b.WriteByte('(')
		for i, e := range v.List {
			if i > 0 {
				b.WriteByte(' ')
			}
			print(b, e)
		}
		b.WriteByte(')')
	case KindLambda:
		name := v.Lambda.Name
		if name == "" {
			name = "anonymous"
		}
		b.WriteString("#<lambda:" + name + ">")
	case KindNativeFn:
		b.WriteString("#<native-fn:" + v.Native.Name + ">")
	case KindNativeAsyncFn:
		b.WriteString("#<native-async-fn:" + v.NativeAsync.Name + ">")
	case KindBytecode:
		b.WriteString("#<bytecode>")
	case KindError:
		b.WriteString("#<error:" + string(v.Err.Kind) + ":" + v.Err.Message + ">")
	case KindRef:
		b.WriteString(v.Ref.String())
	case KindExtern:
		b.WriteString(v.Extern.String())
	default:
		b.WriteString("#<unknown>")
	}
}
