package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/kristofer/wisp/pkg/value"
)

// wireValue is the JSON shape of the serializable subset of value.Val
// named in spec.md §6.1: nil, bool, int, string, symbol, keyword, list,
// plus a printed raw-string fallback for everything else (lambda,
// native-fn, native-async-fn, bytecode, error, ref, extern). Every field
// is omitempty so a given kind's frame only carries what it needs.
type wireValue struct {
	Kind string      `json:"kind"`
	Bool bool        `json:"bool,omitempty"`
	Int  int64       `json:"int,omitempty"`
	Str  string      `json:"str,omitempty"`
	List []wireValue `json:"list,omitempty"`
	Raw  string      `json:"raw,omitempty"`
}

const (
	wireNil     = "nil"
	wireBool    = "bool"
	wireInt     = "int"
	wireStr     = "str"
	wireSymbol  = "symbol"
	wireKeyword = "keyword"
	wireList    = "list"
	wireRaw     = "raw"
)

// EncodeValue converts v to its wire JSON encoding. Round-tripping
// through DecodeValue is exact for the serializable kinds; everything
// else (lambda, native-fn, native-async-fn, bytecode, error, ref, extern)
// degrades to value.Print's rendering, tagged "raw" so a client can tell
// it apart from an ordinary string.
func EncodeValue(v value.Val) (json.RawMessage, error) {
	return json.Marshal(toWire(v))
}

func toWire(v value.Val) wireValue {
	switch v.Kind {
	case value.KindNil:
		return wireValue{Kind: wireNil}
	case value.KindBool:
		return wireValue{Kind: wireBool, Bool: v.Bool}
	case value.KindInt:
		return wireValue{Kind: wireInt, Int: v.Int}
	case value.KindStr:
		return wireValue{Kind: wireStr, Str: v.Str}
	case value.KindSymbol:
		return wireValue{Kind: wireSymbol, Str: v.Str}
	case value.KindKeyword:
		return wireValue{Kind: wireKeyword, Str: v.Str}
	case value.KindList:
		items := make([]wireValue, len(v.List))
		for i, e := range v.List {
			items[i] = toWire(e)
		}
		return wireValue{Kind: wireList, List: items}
	default:
		return wireValue{Kind: wireRaw, Str: value.Print(v)}
	}
}

// DecodeValue parses a wire-encoded Value back into a value.Val. A "raw"
// frame decodes to a KindStr carrying the printed text verbatim: the
// runtime it came from has already discarded the original variant, so
// the best a receiver can do is treat it as an opaque label.
func DecodeValue(data json.RawMessage) (value.Val, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return value.Val{}, fmt.Errorf("ipc: decode value: %w", err)
	}
	return fromWire(w)
}

func fromWire(w wireValue) (value.Val, error) {
	switch w.Kind {
	case wireNil:
		return value.Nil(), nil
	case wireBool:
		return value.Bool(w.Bool), nil
	case wireInt:
		return value.Int(w.Int), nil
	case wireStr, wireRaw:
		return value.Str(w.Str), nil
	case wireSymbol:
		return value.Symbol(w.Str), nil
	case wireKeyword:
		return value.Keyword(w.Str), nil
	case wireList:
		items := make([]value.Val, len(w.List))
		for i, e := range w.List {
			v, err := fromWire(e)
			if err != nil {
				return value.Val{}, err
			}
			items[i] = v
		}
		return value.ListOf(items), nil
	default:
		return value.Val{}, fmt.Errorf("ipc: unknown value kind %q", w.Kind)
	}
}
