// Binary serialization for Program, letting a compiled form be written to
// disk and loaded back without re-parsing or re-compiling.
//
// File Format Layout:
//
// All multi-byte integers are little-endian.
//
//   [Header]
//     Magic Number (4 bytes): 0x57495350 ("WISP" read big-endian; the
//       little-endian bytes on disk are "PSIW")
//     Version (4 bytes): Format version number (currently 1)
//
//   [Constants Section]
//     Count (4 bytes): Number of constants
//     For each constant:
//       Type (1 byte): Constant type identifier
//       Data (variable): Type-specific encoding
//
//   [Instructions Section]
//     Count (4 bytes): Number of instructions
//     For each instruction:
//       Opcode (1 byte): Operation code
//       Operand (4 bytes, signed): Instruction operand
//
// Constant Types:
//   0x01 = Nil
//   0x02 = Bool (1 byte: 0=false, 1=true)
//   0x03 = Int (int64, 8 bytes)
//   0x04 = Str (4-byte length + UTF-8 bytes)
//   0x05 = Symbol (4-byte length + UTF-8 bytes)
//   0x06 = Keyword (4-byte length + UTF-8 bytes)
//   0x07 = List (4-byte count + nested constants)
//   0x08 = Bytecode (nested Program, recursively encoded)
//
// Lambdas, native fns, errors, refs, and externs never appear in a
// compiled constant pool (the compiler only ever emits the kinds above
// via AddConstant; see pkg/compiler), so Encode rejects them rather than
// silently producing a file Decode can't round-trip.
//
// Adapted from the teacher's pkg/bytecode/format.go: same header +
// length-prefixed sections shape, re-keyed to this runtime's value.Kind
// set instead of Smog's class/method constant types.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/wisp/pkg/value"
)

const (
	// MagicNumber is the file signature for encoded programs: "WISP".
	MagicNumber uint32 = 0x57495350

	// FormatVersion is the current encoding format version.
	FormatVersion uint32 = 1
)

const (
	constTypeNil     byte = 0x01
	constTypeBool    byte = 0x02
	constTypeInt     byte = 0x03
	constTypeStr     byte = 0x04
	constTypeSymbol  byte = 0x05
	constTypeKeyword byte = 0x06
	constTypeList    byte = 0x07
	constTypeCode    byte = 0x08
)

// Encode serializes p to w in the binary format above.
func Encode(p *Program, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writeConstants(w, p.Constants); err != nil {
		return fmt.Errorf("failed to write constants: %w", err)
	}
	if err := writeInstructions(w, p.Instructions); err != nil {
		return fmt.Errorf("failed to write instructions: %w", err)
	}
	return nil
}

// Decode reads a Program previously written by Encode.
func Decode(r io.Reader) (*Program, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported bytecode version: %d (expected %d)", version, FormatVersion)
	}

	constants, err := readConstants(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read constants: %w", err)
	}
	instructions, err := readInstructions(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read instructions: %w", err)
	}

	return &Program{Instructions: instructions, Constants: constants}, nil
}

func writeHeader(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, FormatVersion)
}

func readHeader(r io.Reader) (uint32, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, err
	}
	if magic != MagicNumber {
		return 0, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	return version, nil
}

func writeConstants(w io.Writer, constants []value.Val) error {
	count := uint32(len(constants))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for i, c := range constants {
		if err := writeConstant(w, c); err != nil {
			return fmt.Errorf("failed to write constant %d: %w", i, err)
		}
	}
	return nil
}

func writeConstant(w io.Writer, v value.Val) error {
	switch v.Kind {
	case value.KindNil:
		return binary.Write(w, binary.LittleEndian, constTypeNil)

	case value.KindBool:
		if err := binary.Write(w, binary.LittleEndian, constTypeBool); err != nil {
			return err
		}
		var b byte
		if v.Bool {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)

	case value.KindInt:
		if err := binary.Write(w, binary.LittleEndian, constTypeInt); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.Int)

	case value.KindStr, value.KindSymbol, value.KindKeyword:
		t := constTypeStr
		if v.Kind == value.KindSymbol {
			t = constTypeSymbol
		} else if v.Kind == value.KindKeyword {
			t = constTypeKeyword
		}
		if err := binary.Write(w, binary.LittleEndian, t); err != nil {
			return err
		}
		return writeString(w, v.Str)

	case value.KindList:
		if err := binary.Write(w, binary.LittleEndian, constTypeList); err != nil {
			return err
		}
		count := uint32(len(v.List))
		if err := binary.Write(w, binary.LittleEndian, count); err != nil {
			return err
		}
		for i, item := range v.List {
			if err := writeConstant(w, item); err != nil {
				return fmt.Errorf("failed to write list item %d: %w", i, err)
			}
		}
		return nil

	case value.KindBytecode:
		if err := binary.Write(w, binary.LittleEndian, constTypeCode); err != nil {
			return err
		}
		prog, ok := v.Bytecode.(*Program)
		if !ok {
			return fmt.Errorf("unsupported bytecode holder: %T", v.Bytecode)
		}
		return Encode(prog, w)

	default:
		return fmt.Errorf("unsupported constant kind: %s", v.Kind)
	}
}

func readConstants(r io.Reader) ([]value.Val, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	constants := make([]value.Val, count)
	for i := uint32(0); i < count; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant %d: %w", i, err)
		}
		constants[i] = c
	}
	return constants, nil
}

func readConstant(r io.Reader) (value.Val, error) {
	var constType byte
	if err := binary.Read(r, binary.LittleEndian, &constType); err != nil {
		return value.Val{}, err
	}

	switch constType {
	case constTypeNil:
		return value.Nil(), nil

	case constTypeBool:
		var b byte
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return value.Val{}, err
		}
		return value.Bool(b != 0), nil

	case constTypeInt:
		var n int64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Val{}, err
		}
		return value.Int(n), nil

	case constTypeStr:
		s, err := readString(r)
		if err != nil {
			return value.Val{}, err
		}
		return value.Str(s), nil

	case constTypeSymbol:
		s, err := readString(r)
		if err != nil {
			return value.Val{}, err
		}
		return value.Symbol(s), nil

	case constTypeKeyword:
		s, err := readString(r)
		if err != nil {
			return value.Val{}, err
		}
		return value.Keyword(s), nil

	case constTypeList:
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return value.Val{}, err
		}
		items := make([]value.Val, count)
		for i := uint32(0); i < count; i++ {
			item, err := readConstant(r)
			if err != nil {
				return value.Val{}, fmt.Errorf("failed to read list item %d: %w", i, err)
			}
			items[i] = item
		}
		return value.ListOf(items), nil

	case constTypeCode:
		prog, err := Decode(r)
		if err != nil {
			return value.Val{}, err
		}
		return value.BytecodeVal(prog), nil

	default:
		return value.Val{}, fmt.Errorf("unknown constant type: 0x%02X", constType)
	}
}

func writeInstructions(w io.Writer, instructions []Instruction) error {
	count := uint32(len(instructions))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for i, instr := range instructions {
		if err := binary.Write(w, binary.LittleEndian, byte(instr.Op)); err != nil {
			return fmt.Errorf("failed to write instruction %d opcode: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int32(instr.Operand)); err != nil {
			return fmt.Errorf("failed to write instruction %d operand: %w", i, err)
		}
	}
	return nil
}

func readInstructions(r io.Reader) ([]Instruction, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	instructions := make([]Instruction, count)
	for i := uint32(0); i < count; i++ {
		var op byte
		if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
			return nil, fmt.Errorf("failed to read instruction %d opcode: %w", i, err)
		}
		var operand int32
		if err := binary.Read(r, binary.LittleEndian, &operand); err != nil {
			return nil, fmt.Errorf("failed to read instruction %d operand: %w", i, err)
		}
		instructions[i] = Instruction{Op: Opcode(op), Operand: int(operand)}
	}
	return instructions, nil
}

func writeString(w io.Writer, s string) error {
	length := uint32(len(s))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
