package pdf

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

var (
	errUnterminatedString = errors.New("unterminated string")
	errUnterminatedImage  = errors.New("unterminated inline image")
)

type kind int

const (
	kindNumber kind = iota
	kindName
	kindString
	kindArray
	kindDict
	kindBool
	kindNull
)

// operand is one argument of a content-stream operator. Strings hold their
// decoded bytes, for both literal and hex forms.
type operand struct {
	kind  kind
	num   float64
	name  string
	bytes []byte
	items []operand
}

// operation is an operator with its operands and its byte span in the source.
type operation struct {
	op    string
	args  []operand
	start int
	end   int
}

type lexer struct {
	data []byte
	pos  int
}

// parseContent splits a content stream (or a CMap, which shares the syntax)
// into operations. Inline images become a single "BI" operation spanning
// through EI.
func parseContent(data []byte) ([]operation, error) {
	l := &lexer{data: data}
	var (
		ops   []operation
		args  []operand
		start = -1
	)
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			break
		}
		if start < 0 {
			start = l.pos
		}
		c := l.data[l.pos]
		if isOperandStart(c) {
			o, err := l.operand()
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", l.pos, err)
			}
			args = append(args, o)
			continue
		}
		if isDelimiter(c) {
			// Stray closing delimiter; skip it.
			l.pos++
			continue
		}

		kw := l.keyword()
		if o, ok := keywordOperand(kw); ok {
			args = append(args, o)
			continue
		}
		if kw == "BI" {
			if err := l.inlineImage(); err != nil {
				return nil, fmt.Errorf("offset %d: %w", start, err)
			}
		}
		ops = append(ops, operation{op: kw, args: args, start: start, end: l.pos})
		args = nil
		start = -1
	}
	return ops, nil
}

func (l *lexer) operand() (operand, error) {
	c := l.data[l.pos]
	switch {
	case c == '/':
		return operand{kind: kindName, name: l.name()}, nil
	case c == '(':
		b, err := l.literal()
		return operand{kind: kindString, bytes: b}, err
	case c == '<' && l.peek(1) == '<':
		return l.dict()
	case c == '<':
		b, err := l.hexString()
		return operand{kind: kindString, bytes: b}, err
	case c == '[':
		return l.array()
	default:
		return l.number(), nil
	}
}

func (l *lexer) array() (operand, error) {
	l.pos++
	arr := operand{kind: kindArray}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return arr, nil
		}
		c := l.data[l.pos]
		switch {
		case c == ']':
			l.pos++
			return arr, nil
		case isOperandStart(c):
			o, err := l.operand()
			if err != nil {
				return arr, err
			}
			arr.items = append(arr.items, o)
		case isDelimiter(c):
			l.pos++
		default:
			o, _ := keywordOperand(l.keyword())
			arr.items = append(arr.items, o)
		}
	}
}

func (l *lexer) dict() (operand, error) {
	l.pos += 2
	d := operand{kind: kindDict}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return d, nil
		}
		c := l.data[l.pos]
		switch {
		case c == '>' && l.peek(1) == '>':
			l.pos += 2
			return d, nil
		case isOperandStart(c):
			o, err := l.operand()
			if err != nil {
				return d, err
			}
			d.items = append(d.items, o)
		case isDelimiter(c):
			l.pos++
		default:
			o, _ := keywordOperand(l.keyword())
			d.items = append(d.items, o)
		}
	}
}

func (l *lexer) name() string {
	l.pos++
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.data) {
			var b [1]byte
			if _, err := hex.Decode(b[:], l.data[l.pos+1:l.pos+3]); err == nil {
				out = append(out, b[0])
				l.pos += 3
				continue
			}
		}
		out = append(out, c)
		l.pos++
	}
	return string(out)
}

func (l *lexer) literal() ([]byte, error) {
	l.pos++
	depth := 1
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, errUnterminatedString
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.peek(0) == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if isOctal(e) {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && isOctal(l.data[l.pos]); i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return nil, errUnterminatedString
}

func (l *lexer) hexString() ([]byte, error) {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			if _, err := hex.Decode(out, digits); err != nil {
				return nil, fmt.Errorf("hex string: %w", err)
			}
			return out, nil
		}
		if !isSpace(c) {
			digits = append(digits, c)
		}
	}
	return nil, errUnterminatedString
}

func (l *lexer) number() operand {
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' {
			l.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(string(l.data[start:l.pos]), 64)
	if err != nil {
		f = 0
	}
	return operand{kind: kindNumber, num: f}
}

// keyword reads a run of regular characters. It always advances.
func (l *lexer) keyword() string {
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) || isDelimiter(c) {
			break
		}
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// inlineImage consumes the image dictionary, the ID keyword and the binary
// data up to and including EI.
func (l *lexer) inlineImage() error {
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return errUnterminatedImage
		}
		c := l.data[l.pos]
		if isOperandStart(c) {
			if _, err := l.operand(); err != nil {
				return err
			}
			continue
		}
		if isDelimiter(c) {
			l.pos++
			continue
		}
		if l.keyword() == "ID" {
			break
		}
	}
	if l.pos < len(l.data) && isSpace(l.data[l.pos]) {
		l.pos++
	}
	for i := l.pos; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if i > 0 && !isSpace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isSpace(l.data[i+2]) && !isDelimiter(l.data[i+2]) {
			continue
		}
		l.pos = i + 2
		return nil
	}
	return errUnterminatedImage
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		l.pos++
	}
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.data) {
		return l.data[l.pos+off]
	}
	return 0
}

func keywordOperand(kw string) (operand, bool) {
	switch kw {
	case "true":
		return operand{kind: kindBool, num: 1}, true
	case "false":
		return operand{kind: kindBool}, true
	case "null":
		return operand{kind: kindNull}, true
	}
	return operand{kind: kindNull, name: kw}, false
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isOperandStart(c byte) bool {
	return c == '/' || c == '(' || c == '<' || c == '[' || c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
