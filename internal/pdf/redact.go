package pdf

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// tjSpaceThreshold is the TJ displacement (thousandths of an em) treated as a
// word gap when extracting text.
const tjSpaceThreshold = -250

type contentResult struct {
	content      []byte
	text         string
	inlineImages int
	imageDraws   int
	runsRedacted int
}

// shownGlyph is a glyph placed by a text-showing operation. elem is the index
// of the operand it came from inside a TJ array; advance is the horizontal
// displacement it caused, in TJ units.
type shownGlyph struct {
	glyph
	elem    int
	advance float64
}

// textRun is one text-showing operation with its decoded glyphs.
type textRun struct {
	op     int
	text   string
	glyphs []shownGlyph
}

// textState is the part of the graphics state that drives glyph advances.
type textState struct {
	font      fontDecoder
	size      float64
	charSpace float64
	wordSpace float64
}

func (st textState) show(elem int, b []byte) []shownGlyph {
	gs := st.font.glyphs(b)
	out := make([]shownGlyph, len(gs))
	for i, g := range gs {
		adv := g.width
		if st.size != 0 {
			extra := st.charSpace
			if len(g.code) == 1 && g.code[0] == ' ' {
				extra += st.wordSpace
			}
			adv += extra * 1000 / st.size
		}
		out[i] = shownGlyph{glyph: g, elem: elem, advance: adv}
	}
	return out
}

// rewriteContent strips the glyphs of every occurrence of a phrase, every Do
// of a name in images and every inline image, and wraps the result in q/Q.
// Phrases match with whitespace ignored. Operations that lose glyphs are
// rewritten as TJ arrays whose displacements keep the remaining text in
// place.
func rewriteContent(content []byte, fonts map[string]fontDecoder, images map[string]bool, phrases []string) (contentResult, error) {
	ops, err := parseContent(content)
	if err != nil {
		return contentResult{}, err
	}

	var res contentResult
	drop := make(map[int]bool)
	runs, text := extractRuns(ops, fonts)
	res.text = text

	for i, op := range ops {
		switch op.op {
		case "BI":
			drop[i] = true
			res.inlineImages++
		case "Do":
			if len(op.args) == 1 && images[op.args[0].name] {
				drop[i] = true
				res.imageDraws++
			}
		}
	}

	cuts := matchPhrases(runs, phrases)
	redacted := make(map[int]string, len(cuts))
	for _, r := range runs {
		cut, ok := cuts[r.op]
		if !ok {
			continue
		}
		redacted[r.op] = redactRun(ops[r.op], r, cut)
		res.runsRedacted++
	}

	var out bytes.Buffer
	out.Grow(len(content) + 8)
	out.WriteString("q\n")
	prev := 0
	for i, op := range ops {
		out.Write(content[prev:op.start])
		prev = op.end
		switch {
		case drop[i]:
		case redacted[i] != "":
			out.WriteString(redacted[i])
		default:
			out.Write(content[op.start:op.end])
		}
	}
	out.Write(content[prev:])
	out.WriteString("\nQ\n")
	res.content = out.Bytes()
	return res, nil
}

// redactRun re-emits a text-showing operation without the glyphs flagged in
// cut. Each removed stretch becomes a TJ displacement of the same width.
func redactRun(op operation, r textRun, cut []bool) string {
	var (
		parts []string
		seg   []byte
		gap   float64
		gi    int
	)
	flushSeg := func() {
		if len(seg) > 0 {
			parts = append(parts, "<"+hex.EncodeToString(seg)+">")
			seg = nil
		}
	}
	flushGap := func() {
		if gap != 0 {
			parts = append(parts, formatNum(-gap))
			gap = 0
		}
	}
	showString := func(elem int) {
		for ; gi < len(r.glyphs) && r.glyphs[gi].elem == elem; gi++ {
			g := r.glyphs[gi]
			if cut[gi] {
				flushSeg()
				gap += g.advance
				continue
			}
			flushGap()
			seg = append(seg, g.code...)
		}
	}

	if op.op == "TJ" && len(op.args) == 1 {
		for k, item := range op.args[0].items {
			switch item.kind {
			case kindString:
				showString(k)
			case kindNumber:
				flushSeg()
				flushGap()
				parts = append(parts, formatNum(item.num))
			}
		}
	} else {
		showString(0)
	}
	flushSeg()
	flushGap()

	shown := "[" + strings.Join(parts, " ") + "] TJ"
	if prefix := lineMove(op); prefix != "" {
		return prefix + " " + shown
	}
	return shown
}

// lineMove keeps the line movement and spacing side effects of a quote
// operator.
func lineMove(op operation) string {
	switch op.op {
	case "'":
		return "T*"
	case `"`:
		if len(op.args) == 3 {
			return formatNum(op.args[0].num) + " Tw " + formatNum(op.args[1].num) + " Tc T*"
		}
		return "T*"
	}
	return ""
}

func formatNum(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

// extractRuns decodes every text-showing operation in order and assembles the
// page text with line breaks where the text matrix moves to a new line.
func extractRuns(ops []operation, fonts map[string]fontDecoder) ([]textRun, string) {
	var (
		runs  []textRun
		page  strings.Builder
		st    = textState{font: simpleFont(nil)}
		saved []textState
		sep   string
	)
	setSep := func(s string) {
		if sep != "\n" {
			sep = s
		}
	}
	emit := func(i int, text string, glyphs []shownGlyph) {
		if len(glyphs) == 0 {
			return
		}
		runs = append(runs, textRun{op: i, text: text, glyphs: glyphs})
		if text == "" {
			return
		}
		if page.Len() > 0 {
			page.WriteString(sep)
		}
		sep = ""
		page.WriteString(text)
	}
	showSimple := func(i int, b []byte) {
		glyphs := st.show(0, b)
		emit(i, glyphText(glyphs), glyphs)
	}

	for i, op := range ops {
		switch op.op {
		case "q":
			saved = append(saved, st)
		case "Q":
			if n := len(saved); n > 0 {
				st = saved[n-1]
				saved = saved[:n-1]
			}
		case "Tf":
			if len(op.args) >= 1 {
				if f, ok := fonts[op.args[0].name]; ok {
					st.font = f
				} else {
					st.font = simpleFont(nil)
				}
			}
			if len(op.args) == 2 {
				st.size = op.args[1].num
			}
		case "Tc":
			if len(op.args) == 1 {
				st.charSpace = op.args[0].num
			}
		case "Tw":
			if len(op.args) == 1 {
				st.wordSpace = op.args[0].num
			}
		case "BT", "ET", "T*", "Tm":
			setSep("\n")
		case "Td", "TD":
			if len(op.args) == 2 && op.args[1].num != 0 {
				setSep("\n")
			} else {
				setSep(" ")
			}
		case "Tj":
			if len(op.args) == 1 {
				showSimple(i, op.args[0].bytes)
			}
		case "'":
			setSep("\n")
			if len(op.args) == 1 {
				showSimple(i, op.args[0].bytes)
			}
		case `"`:
			setSep("\n")
			if len(op.args) == 3 {
				st.wordSpace = op.args[0].num
				st.charSpace = op.args[1].num
				showSimple(i, op.args[2].bytes)
			}
		case "TJ":
			if len(op.args) == 1 {
				text, glyphs := st.showArray(op.args[0])
				emit(i, text, glyphs)
			}
		}
	}
	return runs, page.String()
}

// showArray decodes a TJ array. Displacements wider than a word gap read as
// a space in the page text.
func (st textState) showArray(arr operand) (string, []shownGlyph) {
	var (
		sb     strings.Builder
		glyphs []shownGlyph
	)
	for k, item := range arr.items {
		switch item.kind {
		case kindString:
			gs := st.show(k, item.bytes)
			sb.WriteString(glyphText(gs))
			glyphs = append(glyphs, gs...)
		case kindNumber:
			if item.num < tjSpaceThreshold {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String(), glyphs
}

func glyphText(gs []shownGlyph) string {
	var sb strings.Builder
	for _, g := range gs {
		sb.WriteString(g.text)
	}
	return sb.String()
}

// matchPhrases finds every occurrence of a phrase across the runs and returns,
// per operation index, which of its glyphs fall inside an occurrence. Glyphs
// between the first and last matched character, whitespace included, are
// part of the occurrence.
func matchPhrases(runs []textRun, phrases []string) map[int][]bool {
	type ref struct{ run, glyph int }
	var (
		all    []ref
		norm   []rune
		owners []int
	)
	for ri, r := range runs {
		for gi, g := range r.glyphs {
			for _, c := range g.text {
				if unicode.IsSpace(c) {
					continue
				}
				norm = append(norm, c)
				owners = append(owners, len(all))
			}
			all = append(all, ref{ri, gi})
		}
	}

	cuts := make(map[int][]bool)
	for _, phrase := range phrases {
		needle := stripSpace(phrase)
		if len(needle) == 0 {
			continue
		}
		for s := 0; s+len(needle) <= len(norm); {
			if !runesEqual(norm[s:s+len(needle)], needle) {
				s++
				continue
			}
			for k := owners[s]; k <= owners[s+len(needle)-1]; k++ {
				r := runs[all[k].run]
				cut, ok := cuts[r.op]
				if !ok {
					cut = make([]bool, len(r.glyphs))
					cuts[r.op] = cut
				}
				cut[all[k].glyph] = true
			}
			s += len(needle)
		}
	}
	return cuts
}

func stripSpace(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if !unicode.IsSpace(c) {
			out = append(out, c)
		}
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
