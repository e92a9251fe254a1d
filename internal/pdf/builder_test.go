package pdf

import (
	"bytes"
	"fmt"
)

// resourceLayout controls where buildPDF places the page resources.
type resourceLayout int

const (
	// ownResources gives every page its own direct resource dictionary.
	ownResources resourceLayout = iota
	// sharedResources points every page at one indirect dictionary.
	sharedResources
	// inheritedResources puts the dictionary on the page tree root only.
	inheritedResources
)

const resourceBody = "<< /Font << /F1 3 0 R >> /XObject << /Im1 4 0 R >> >>"

// buildPDF assembles a minimal document with one page per content string.
// Every page uses a Helvetica font (/F1) and a 1x1 gray image (/Im1).
func buildPDF(pages ...string) []byte {
	return buildPDFWith(ownResources, pages...)
}

func buildPDFWith(layout resourceLayout, pages ...string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 6+2*i)
	}
	treeResources, pageResources := "", resourceBody
	switch layout {
	case sharedResources:
		pageResources = "5 0 R"
	case inheritedResources:
		treeResources, pageResources = " /Resources 5 0 R", ""
	}

	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d%s >>", kids, len(pages), treeResources))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	obj("<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length 1 >>\nstream\n\xff\nendstream")
	obj(resourceBody)
	for i, content := range pages {
		res := ""
		if pageResources != "" {
			res = " /Resources " + pageResources
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]%s /Contents %d 0 R >>", res, 7+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
