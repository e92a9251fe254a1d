// Package pdf strips images and watermark text from rendered case documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

// Processor implements archive.PDFProcessor on top of the pdfcpu object model.
type Processor struct {
	conf *model.Configuration
}

var _ archive.PDFProcessor = (*Processor)(nil)

// NewProcessor returns a Processor using relaxed validation.
func NewProcessor() *Processor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Processor{conf: conf}
}

// maxTreeDepth bounds the walk up the page tree when resolving inherited
// resources.
const maxTreeDepth = 64

// imageEntries are the image XObjects named in one resource dictionary.
type imageEntries struct {
	xobjects types.Dict
	names    map[string]bool
}

// Sanitize removes all images and every occurrence of the phrases, on every
// page. FirstPageText is captured before redaction. Pages may share resource
// dictionaries, so image entries are only deleted once every page's content
// no longer draws them. A document pdfcpu cannot parse, even one that makes
// it panic, yields an error wrapping archive.ErrCorruptDocument.
func (p *Processor) Sanitize(ctx context.Context, data []byte, phrases []string) (out archive.Sanitized, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = archive.Sanitized{}, fmt.Errorf("sanitize pdf: %w: %v", archive.ErrCorruptDocument, r)
		}
	}()

	pctx, err := api.ReadContext(bytes.NewReader(data), p.conf)
	if err != nil {
		return archive.Sanitized{}, fmt.Errorf("read pdf: %w: %w", archive.ErrCorruptDocument, err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return archive.Sanitized{}, fmt.Errorf("validate pdf: %w: %w", archive.ErrCorruptDocument, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return archive.Sanitized{}, fmt.Errorf("page count: %w: %w", archive.ErrCorruptDocument, err)
	}

	var prune []imageEntries
	for nr := 1; nr <= pctx.PageCount; nr++ {
		if err := ctx.Err(); err != nil {
			return archive.Sanitized{}, fmt.Errorf("sanitize canceled: %w", err)
		}
		text, stats, images, err := sanitizePage(pctx, nr, phrases)
		if err != nil {
			return archive.Sanitized{}, fmt.Errorf("page %d: %w", nr, err)
		}
		if nr == 1 {
			out.FirstPageText = text
		}
		out.Stats.Pages++
		out.Stats.ImagesRemoved += stats.ImagesRemoved
		out.Stats.RunsRedacted += stats.RunsRedacted
		prune = append(prune, images)
	}
	for _, e := range prune {
		for name := range e.names {
			delete(e.xobjects, name)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return archive.Sanitized{}, fmt.Errorf("write pdf: %w", err)
	}
	out.PDF = buf.Bytes()
	return out, nil
}

// sanitizePage rewrites the content of page nr. It returns the page text, the
// page stats and the image entries its resources hold, which the caller
// deletes after the last page.
func sanitizePage(pctx *model.Context, nr int, phrases []string) (string, archive.SanitizeStats, imageEntries, error) {
	var none imageEntries
	d, _, _, err := pctx.PageDict(nr, false)
	if err != nil {
		return "", archive.SanitizeStats{}, none, fmt.Errorf("page dict: %w", err)
	}
	if d == nil {
		return "", archive.SanitizeStats{}, none, fmt.Errorf("page dict missing")
	}

	res := pageResources(pctx, d)
	fonts := loadFonts(pctx, res)
	images := imageXObjects(pctx, res)

	content, err := pageContent(pctx, d)
	if err != nil {
		return "", archive.SanitizeStats{}, none, err
	}
	rewritten, err := rewriteContent(content, fonts, images.names, phrases)
	if err != nil {
		return "", archive.SanitizeStats{}, none, fmt.Errorf("rewrite content: %w", err)
	}

	sd, err := pctx.NewStreamDictForBuf(rewritten.content)
	if err != nil {
		return "", archive.SanitizeStats{}, none, fmt.Errorf("new content stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return "", archive.SanitizeStats{}, none, fmt.Errorf("encode content stream: %w", err)
	}
	ir, err := pctx.IndRefForNewObject(*sd)
	if err != nil {
		return "", archive.SanitizeStats{}, none, fmt.Errorf("register content stream: %w", err)
	}
	d["Contents"] = *ir

	return rewritten.text, archive.SanitizeStats{
		ImagesRemoved: rewritten.imageDraws + rewritten.inlineImages,
		RunsRedacted:  rewritten.runsRedacted,
	}, images, nil
}

// pageResources returns the resource dictionary in effect for a page: its
// own, else the nearest one inherited through the page tree. The dictionary
// returned is the document's own object, shared by every page that uses it.
func pageResources(pctx *model.Context, d types.Dict) types.Dict {
	node := d
	for depth := 0; node != nil && depth < maxTreeDepth; depth++ {
		if o, ok := node["Resources"]; ok {
			if res, err := pctx.DereferenceDict(o); err == nil && res != nil {
				return res
			}
		}
		parent, ok := node["Parent"]
		if !ok {
			return nil
		}
		next, err := pctx.DereferenceDict(parent)
		if err != nil {
			return nil
		}
		node = next
	}
	return nil
}

func loadFonts(pctx *model.Context, res types.Dict) map[string]fontDecoder {
	fonts := make(map[string]fontDecoder)
	if res == nil {
		return fonts
	}
	fontDict, err := pctx.DereferenceDict(res["Font"])
	if err != nil || fontDict == nil {
		return fonts
	}
	for name, ref := range fontDict {
		fd, err := pctx.DereferenceDict(ref)
		if err != nil || fd == nil {
			continue
		}
		var cm *toUnicode
		if data, ok := streamContent(pctx, fd["ToUnicode"]); ok {
			if parsed, err := parseCMap(data); err == nil {
				cm = parsed
			}
		}
		if subtype, _ := fd["Subtype"].(types.Name); subtype == "Type0" {
			fonts[name] = withCIDWidths(pctx, compositeFont(cm), fd)
		} else {
			fonts[name] = withWidths(pctx, simpleFont(cm), fd)
		}
	}
	return fonts
}

// withWidths attaches /Widths of a simple font. Codes outside the array use
// the descriptor's /MissingWidth.
func withWidths(pctx *model.Context, f fontDecoder, fd types.Dict) fontDecoder {
	widths, ok := arrayOf(pctx, fd["Widths"])
	if !ok {
		return f
	}
	first, _ := number(pctx, fd["FirstChar"])
	f.firstChar = uint32(max(first, 0))
	f.widths = make([]float64, len(widths))
	for i, w := range widths {
		f.widths[i], _ = number(pctx, w)
	}
	f.missing = 0
	if desc, err := pctx.DereferenceDict(fd["FontDescriptor"]); err == nil && desc != nil {
		if mw, ok := number(pctx, desc["MissingWidth"]); ok {
			f.missing = mw
		}
	}
	return f
}

// withCIDWidths attaches /W and /DW of a Type0 font's descendant.
func withCIDWidths(pctx *model.Context, f fontDecoder, fd types.Dict) fontDecoder {
	descendants, ok := arrayOf(pctx, fd["DescendantFonts"])
	if !ok || len(descendants) == 0 {
		return f
	}
	cid, err := pctx.DereferenceDict(descendants[0])
	if err != nil || cid == nil {
		return f
	}
	if dw, ok := number(pctx, cid["DW"]); ok {
		f.missing = dw
	}
	f.cidWidths = make(map[uint32]float64)
	w, ok := arrayOf(pctx, cid["W"])
	if !ok {
		return f
	}
	// Entries are either "c [w1 w2 ...]" or "cfirst clast w".
	for i := 0; i+1 < len(w); {
		first, ok := number(pctx, w[i])
		if !ok || first < 0 {
			break
		}
		if ws, ok := arrayOf(pctx, w[i+1]); ok {
			for j, v := range ws {
				if n, ok := number(pctx, v); ok {
					f.cidWidths[uint32(first)+uint32(j)] = n
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			break
		}
		last, okLast := number(pctx, w[i+1])
		n, okWidth := number(pctx, w[i+2])
		if !okLast || !okWidth || last < first || last-first > maxRange {
			break
		}
		for c := uint32(first); c <= uint32(last); c++ {
			f.cidWidths[c] = n
		}
		i += 3
	}
	return f
}

func number(pctx *model.Context, o types.Object) (float64, bool) {
	if o == nil {
		return 0, false
	}
	o, err := pctx.Dereference(o)
	if err != nil {
		return 0, false
	}
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func arrayOf(pctx *model.Context, o types.Object) (types.Array, bool) {
	if o == nil {
		return nil, false
	}
	o, err := pctx.Dereference(o)
	if err != nil {
		return nil, false
	}
	a, ok := o.(types.Array)
	return a, ok
}

// imageXObjects lists the image XObjects of a resource dictionary.
func imageXObjects(pctx *model.Context, res types.Dict) imageEntries {
	e := imageEntries{names: make(map[string]bool)}
	if res == nil {
		return e
	}
	xobjects, err := pctx.DereferenceDict(res["XObject"])
	if err != nil || xobjects == nil {
		return e
	}
	e.xobjects = xobjects
	for name, ref := range xobjects {
		if isImage(pctx, ref) {
			e.names[name] = true
		}
	}
	return e
}

func isImage(pctx *model.Context, ref types.Object) bool {
	o, err := pctx.Dereference(ref)
	if err != nil {
		return false
	}
	var d types.Dict
	switch sd := o.(type) {
	case types.StreamDict:
		d = sd.Dict
	case *types.StreamDict:
		d = sd.Dict
	default:
		return false
	}
	subtype, _ := d["Subtype"].(types.Name)
	return subtype == "Image"
}

// pageContent concatenates the decoded content streams of a page.
func pageContent(pctx *model.Context, d types.Dict) ([]byte, error) {
	o, err := pctx.Dereference(d["Contents"])
	if err != nil {
		return nil, fmt.Errorf("contents: %w", err)
	}
	switch c := o.(type) {
	case nil:
		return nil, nil
	case types.Array:
		var buf bytes.Buffer
		for _, item := range c {
			data, ok := streamContent(pctx, item)
			if !ok {
				continue
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	default:
		data, ok := streamContent(pctx, o)
		if !ok {
			return nil, fmt.Errorf("contents: unexpected %T", o)
		}
		return data, nil
	}
}

func streamContent(pctx *model.Context, ref types.Object) ([]byte, bool) {
	if ref == nil {
		return nil, false
	}
	o, err := pctx.Dereference(ref)
	if err != nil {
		return nil, false
	}
	var sd types.StreamDict
	switch s := o.(type) {
	case types.StreamDict:
		sd = s
	case *types.StreamDict:
		sd = *s
	default:
		return nil, false
	}
	if err := sd.Decode(); err != nil {
		return nil, false
	}
	return sd.Content, true
}
