package torchpt

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// pyGlobal is a reference to a Python class or function (module.name).
type pyGlobal struct {
	Module string
	Name   string
}

// pickle opcodes emitted by torch.save for protocols 2-5.
const (
	opProto           = 0x80
	opFrame           = 0x95
	opStop            = '.'
	opMark            = '('
	opEmptyTuple      = ')'
	opEmptyDict       = '}'
	opEmptyList       = ']'
	opTuple           = 't'
	opTuple1          = 0x85
	opTuple2          = 0x86
	opTuple3          = 0x87
	opReduce          = 'R'
	opGlobal          = 'c'
	opStackGlobal     = 0x93
	opBinPersID       = 'Q'
	opNone            = 'N'
	opNewTrue         = 0x88
	opNewFalse        = 0x89
	opBinInt          = 'J'
	opBinInt1         = 'K'
	opBinInt2         = 'M'
	opLong1           = 0x8a
	opBinFloat        = 'G'
	opBinUnicode      = 'X'
	opShortBinUnicode = 0x8c
	opBinString       = 'T'
	opShortBinString  = 'U'
	opBinPut          = 'q'
	opLongBinPut      = 'r'
	opBinGet          = 'h'
	opLongBinGet      = 'j'
	opMemoize         = 0x94
	opSetItem         = 's'
	opSetItems        = 'u'
	opAppend          = 'a'
	opAppends         = 'e'
)

// unpickler is a strict interpreter for the pickle opcode subset that
// appears in torch tensor archives. persistentLoad resolves BINPERSID
// tuples and reduce applies REDUCE callables.
type unpickler struct {
	r              *bufio.Reader
	stack          []any
	metastack      [][]any
	memo           map[int]any
	persistentLoad func(ref []any) (any, error)
	reduce         func(callable pyGlobal, args []any) (any, error)
}

func newUnpickler(r io.Reader) *unpickler {
	return &unpickler{
		r:    bufio.NewReader(r),
		memo: make(map[int]any),
	}
}

func (u *unpickler) push(v any) {
	u.stack = append(u.stack, v)
}

func (u *unpickler) pop() (any, error) {
	if len(u.stack) == 0 {
		return nil, formatErrf("pickle stack underflow")
	}
	v := u.stack[len(u.stack)-1]
	u.stack = u.stack[:len(u.stack)-1]
	return v, nil
}

// popMark removes and returns everything pushed since the last MARK.
func (u *unpickler) popMark() ([]any, error) {
	if len(u.metastack) == 0 {
		return nil, formatErrf("pickle MARK stack underflow")
	}
	items := u.stack
	u.stack = u.metastack[len(u.metastack)-1]
	u.metastack = u.metastack[:len(u.metastack)-1]
	return items, nil
}

func (u *unpickler) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(u.r, buf); err != nil {
		return nil, formatErrf("pickle truncated: %v", err)
	}
	return buf, nil
}

func (u *unpickler) readLine() (string, error) {
	line, err := u.r.ReadString('\n')
	if err != nil {
		return "", formatErrf("pickle truncated line: %v", err)
	}
	return line[:len(line)-1], nil
}

func (u *unpickler) memoPut(key int) error {
	if len(u.stack) == 0 {
		return formatErrf("pickle memo put on empty stack")
	}
	u.memo[key] = u.stack[len(u.stack)-1]
	return nil
}

func (u *unpickler) memoGet(key int) error {
	v, ok := u.memo[key]
	if !ok {
		return formatErrf("pickle memo key %d not set", key)
	}
	u.push(v)
	return nil
}

// run interprets opcodes until STOP and returns the final stack top.
func (u *unpickler) run() (any, error) {
	for {
		op, err := u.r.ReadByte()
		if err != nil {
			return nil, formatErrf("pickle truncated: %v", err)
		}

		switch op {
		case opProto:
			if _, err := u.readN(1); err != nil {
				return nil, err
			}

		case opFrame:
			if _, err := u.readN(8); err != nil {
				return nil, err
			}

		case opStop:
			return u.pop()

		case opMark:
			u.metastack = append(u.metastack, u.stack)
			u.stack = nil

		case opEmptyTuple:
			u.push([]any{})

		case opEmptyDict:
			u.push(map[any]any{})

		case opEmptyList:
			u.push(&[]any{})

		case opTuple:
			items, err := u.popMark()
			if err != nil {
				return nil, err
			}
			u.push(items)

		case opTuple1, opTuple2, opTuple3:
			n := int(op-opTuple1) + 1
			if len(u.stack) < n {
				return nil, formatErrf("pickle stack underflow")
			}
			items := make([]any, n)
			copy(items, u.stack[len(u.stack)-n:])
			u.stack = u.stack[:len(u.stack)-n]
			u.push(items)

		case opReduce:
			args, err := u.pop()
			if err != nil {
				return nil, err
			}
			callee, err := u.pop()
			if err != nil {
				return nil, err
			}
			g, ok := callee.(pyGlobal)
			if !ok {
				return nil, formatErrf("pickle REDUCE of non-global %T", callee)
			}
			argv, ok := args.([]any)
			if !ok {
				return nil, formatErrf("pickle REDUCE args are %T, not a tuple", args)
			}
			if u.reduce == nil {
				return nil, formatErrf("pickle REDUCE of %s.%s not supported", g.Module, g.Name)
			}
			v, err := u.reduce(g, argv)
			if err != nil {
				return nil, err
			}
			u.push(v)

		case opGlobal:
			module, err := u.readLine()
			if err != nil {
				return nil, err
			}
			name, err := u.readLine()
			if err != nil {
				return nil, err
			}
			u.push(pyGlobal{Module: module, Name: name})

		case opStackGlobal:
			name, err := u.pop()
			if err != nil {
				return nil, err
			}
			module, err := u.pop()
			if err != nil {
				return nil, err
			}
			m, mok := module.(string)
			n, nok := name.(string)
			if !mok || !nok {
				return nil, formatErrf("pickle STACK_GLOBAL with non-string operands")
			}
			u.push(pyGlobal{Module: m, Name: n})

		case opBinPersID:
			ref, err := u.pop()
			if err != nil {
				return nil, err
			}
			tuple, ok := ref.([]any)
			if !ok {
				return nil, formatErrf("pickle persistent id is %T, not a tuple", ref)
			}
			if u.persistentLoad == nil {
				return nil, formatErrf("pickle persistent id not supported")
			}
			v, err := u.persistentLoad(tuple)
			if err != nil {
				return nil, err
			}
			u.push(v)

		case opNone:
			u.push(nil)

		case opNewTrue:
			u.push(true)

		case opNewFalse:
			u.push(false)

		case opBinInt:
			b, err := u.readN(4)
			if err != nil {
				return nil, err
			}
			u.push(int(int32(binary.LittleEndian.Uint32(b))))

		case opBinInt1:
			b, err := u.readN(1)
			if err != nil {
				return nil, err
			}
			u.push(int(b[0]))

		case opBinInt2:
			b, err := u.readN(2)
			if err != nil {
				return nil, err
			}
			u.push(int(binary.LittleEndian.Uint16(b)))

		case opLong1:
			n, err := u.readN(1)
			if err != nil {
				return nil, err
			}
			b, err := u.readN(int(n[0]))
			if err != nil {
				return nil, err
			}
			if len(b) > 8 {
				return nil, formatErrf("pickle LONG1 of %d bytes too large", len(b))
			}
			var v int64
			for i := len(b) - 1; i >= 0; i-- {
				v = v<<8 | int64(b[i])
			}
			// Sign-extend two's complement.
			if len(b) > 0 && b[len(b)-1]&0x80 != 0 {
				v -= int64(1) << uint(len(b)*8)
			}
			u.push(int(v))

		case opBinFloat:
			b, err := u.readN(8)
			if err != nil {
				return nil, err
			}
			u.push(math.Float64frombits(binary.BigEndian.Uint64(b)))

		case opBinUnicode, opBinString:
			b, err := u.readN(4)
			if err != nil {
				return nil, err
			}
			s, err := u.readN(int(binary.LittleEndian.Uint32(b)))
			if err != nil {
				return nil, err
			}
			u.push(string(s))

		case opShortBinUnicode, opShortBinString:
			n, err := u.readN(1)
			if err != nil {
				return nil, err
			}
			s, err := u.readN(int(n[0]))
			if err != nil {
				return nil, err
			}
			u.push(string(s))

		case opBinPut:
			b, err := u.readN(1)
			if err != nil {
				return nil, err
			}
			if err := u.memoPut(int(b[0])); err != nil {
				return nil, err
			}

		case opLongBinPut:
			b, err := u.readN(4)
			if err != nil {
				return nil, err
			}
			if err := u.memoPut(int(binary.LittleEndian.Uint32(b))); err != nil {
				return nil, err
			}

		case opBinGet:
			b, err := u.readN(1)
			if err != nil {
				return nil, err
			}
			if err := u.memoGet(int(b[0])); err != nil {
				return nil, err
			}

		case opLongBinGet:
			b, err := u.readN(4)
			if err != nil {
				return nil, err
			}
			if err := u.memoGet(int(binary.LittleEndian.Uint32(b))); err != nil {
				return nil, err
			}

		case opMemoize:
			if err := u.memoPut(len(u.memo)); err != nil {
				return nil, err
			}

		case opSetItem:
			v, err := u.pop()
			if err != nil {
				return nil, err
			}
			k, err := u.pop()
			if err != nil {
				return nil, err
			}
			d, err := u.pop()
			if err != nil {
				return nil, err
			}
			m, ok := d.(map[any]any)
			if !ok {
				return nil, formatErrf("pickle SETITEM on %T", d)
			}
			m[k] = v
			u.push(m)

		case opSetItems:
			items, err := u.popMark()
			if err != nil {
				return nil, err
			}
			if len(items)%2 != 0 {
				return nil, formatErrf("pickle SETITEMS with odd item count")
			}
			d, err := u.pop()
			if err != nil {
				return nil, err
			}
			m, ok := d.(map[any]any)
			if !ok {
				return nil, formatErrf("pickle SETITEMS on %T", d)
			}
			for i := 0; i < len(items); i += 2 {
				m[items[i]] = items[i+1]
			}
			u.push(m)

		case opAppend:
			v, err := u.pop()
			if err != nil {
				return nil, err
			}
			l, err := u.pop()
			if err != nil {
				return nil, err
			}
			lst, ok := l.(*[]any)
			if !ok {
				return nil, formatErrf("pickle APPEND on %T", l)
			}
			*lst = append(*lst, v)
			u.push(lst)

		case opAppends:
			items, err := u.popMark()
			if err != nil {
				return nil, err
			}
			l, err := u.pop()
			if err != nil {
				return nil, err
			}
			lst, ok := l.(*[]any)
			if !ok {
				return nil, formatErrf("pickle APPENDS on %T", l)
			}
			*lst = append(*lst, items...)
			u.push(lst)

		default:
			return nil, formatErrf("pickle opcode 0x%02x not supported", op)
		}
	}
}
