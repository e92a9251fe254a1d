package pdf

import (
	"strings"
	"unicode/utf16"
)

// maxRange caps the number of codes a single bfrange entry may expand to.
const maxRange = 0xFFFF

// toUnicode maps character codes to text, built from a ToUnicode CMap.
type toUnicode struct {
	codeLen int
	chars   map[uint32]string
}

func parseCMap(data []byte) (*toUnicode, error) {
	ops, err := parseContent(data)
	if err != nil {
		return nil, err
	}
	cm := &toUnicode{chars: make(map[uint32]string)}
	for _, op := range ops {
		switch op.op {
		case "endcodespacerange":
			for i := 0; i+1 < len(op.args); i += 2 {
				if n := len(op.args[i].bytes); n > cm.codeLen {
					cm.codeLen = n
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(op.args); i += 2 {
				src, dst := op.args[i], op.args[i+1]
				if src.kind != kindString || dst.kind != kindString {
					continue
				}
				cm.noteLen(len(src.bytes))
				cm.chars[codeOf(src.bytes)] = utf16BE(dst.bytes)
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.args); i += 3 {
				cm.addRange(op.args[i], op.args[i+1], op.args[i+2])
			}
		}
	}
	if cm.codeLen == 0 {
		cm.codeLen = 1
	}
	return cm, nil
}

func (cm *toUnicode) addRange(loOp, hiOp, dst operand) {
	if loOp.kind != kindString || hiOp.kind != kindString {
		return
	}
	lo, hi := codeOf(loOp.bytes), codeOf(hiOp.bytes)
	if hi < lo || hi-lo > maxRange {
		return
	}
	cm.noteLen(len(loOp.bytes))
	switch dst.kind {
	case kindString:
		base := []rune(utf16BE(dst.bytes))
		if len(base) == 0 {
			return
		}
		for off := uint32(0); off <= hi-lo; off++ {
			r := append([]rune(nil), base...)
			r[len(r)-1] += rune(off)
			cm.chars[lo+off] = string(r)
		}
	case kindArray:
		for j, item := range dst.items {
			if uint32(j) > hi-lo {
				break
			}
			if item.kind == kindString {
				cm.chars[lo+uint32(j)] = utf16BE(item.bytes)
			}
		}
	}
}

func (cm *toUnicode) noteLen(n int) {
	if cm.codeLen == 0 {
		cm.codeLen = n
	}
}

func codeOf(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 | uint32(x)
	}
	return c
}

func utf16BE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	s := string(utf16.Decode(units))
	if len(b)%2 == 1 {
		s += string(rune(b[len(b)-1]))
	}
	return s
}

// standardWidth stands in for glyph widths of fonts that carry no /Widths
// array, such as the standard 14 fonts.
const standardWidth = 500

// glyph is one character code shown by a text operator. width is its advance
// in thousandths of text space.
type glyph struct {
	code  []byte
	text  string
	width float64
}

// fontDecoder turns the bytes of a text-showing operand into glyphs.
type fontDecoder struct {
	codeLen int
	cmap    *toUnicode
	// firstChar and widths describe simple fonts; cidWidths describe
	// composite fonts. missing applies to codes neither covers.
	firstChar uint32
	widths    []float64
	cidWidths map[uint32]float64
	missing   float64
}

// simpleFont decodes one byte per code; unknown codes fall back to Latin-1.
func simpleFont(cm *toUnicode) fontDecoder {
	return fontDecoder{codeLen: 1, cmap: cm, missing: standardWidth}
}

// compositeFont decodes Type0 fonts; codes are two bytes unless the CMap
// declares otherwise.
func compositeFont(cm *toUnicode) fontDecoder {
	n := 2
	if cm != nil && cm.codeLen > 0 {
		n = cm.codeLen
	}
	return fontDecoder{codeLen: n, cmap: cm, missing: 1000}
}

func (f fontDecoder) width(c uint32) float64 {
	if f.cidWidths != nil {
		if w, ok := f.cidWidths[c]; ok {
			return w
		}
		return f.missing
	}
	if c >= f.firstChar && int(c-f.firstChar) < len(f.widths) {
		return f.widths[c-f.firstChar]
	}
	return f.missing
}

func (f fontDecoder) glyphs(b []byte) []glyph {
	n := f.codeLen
	if n <= 0 {
		n = 1
	}
	out := make([]glyph, 0, len(b)/n+1)
	for i := 0; i < len(b); i += n {
		end := min(i+n, len(b))
		c := codeOf(b[i:end])
		g := glyph{code: b[i:end], width: f.width(c)}
		if s, ok := f.lookup(c); ok {
			g.text = s
		} else if n == 1 {
			g.text = string(rune(c))
		}
		out = append(out, g)
	}
	return out
}

func (f fontDecoder) lookup(c uint32) (string, bool) {
	if f.cmap == nil {
		return "", false
	}
	s, ok := f.cmap.chars[c]
	return s, ok
}

func (f fontDecoder) decode(b []byte) string {
	var sb strings.Builder
	for _, g := range f.glyphs(b) {
		sb.WriteString(g.text)
	}
	return sb.String()
}
