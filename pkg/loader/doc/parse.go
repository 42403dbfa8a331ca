package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	documentPart = "word/document.xml"
	maxPartSize  = 50 << 20
)

// ErrNoDocument is returned for archives without a main document part.
var ErrNoDocument = errors.New("docx: word/document.xml not found")

// textWriter accumulates the visible text of a WordprocessingML body.
// Deleted revisions are skipped; table cells are separated by tabs and
// rows by newlines.
type textWriter struct {
	sb       strings.Builder
	inText   bool
	delDepth int
	inTable  bool
	cell     int
}

func (w *textWriter) visible() bool {
	return w.delDepth == 0
}

func (w *textWriter) newline() {
	s := w.sb.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		w.sb.WriteByte('\n')
	}
}

func (w *textWriter) start(name string) {
	switch name {
	case "del":
		w.delDepth++
	case "t":
		w.inText = true
	case "tab":
		if w.visible() {
			w.sb.WriteByte('\t')
		}
	case "br", "cr":
		if w.visible() {
			w.sb.WriteByte('\n')
		}
	case "noBreakHyphen":
		if w.visible() {
			w.sb.WriteByte('-')
		}
	case "tbl":
		w.inTable = true
		w.cell = 0
		w.newline()
	case "tr":
		w.cell = 0
	case "tc":
		if w.inTable && w.visible() {
			if w.cell > 0 {
				w.sb.WriteByte('\t')
			}
			w.cell++
		}
	}
}

func (w *textWriter) end(name string) {
	switch name {
	case "t":
		w.inText = false
	case "p", "tr":
		if w.visible() {
			w.sb.WriteByte('\n')
		}
	case "tbl":
		w.inTable = false
		if w.visible() {
			w.sb.WriteByte('\n')
		}
	case "del":
		if w.delDepth > 0 {
			w.delDepth--
		}
	}
}

func (w *textWriter) chars(data xml.CharData) {
	if w.inText && w.visible() {
		w.sb.Write(data)
	}
}

// ParseDocx extracts the plain text of a .docx archive.
func ParseDocx(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, ErrNoDocument
	}
	if part.UncompressedSize64 > maxPartSize {
		return nil, fmt.Errorf("docx: document part too large: %d bytes", part.UncompressedSize64)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document part: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, maxPartSize))
	var w textWriter
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t.Name.Local)
		case xml.EndElement:
			w.end(t.Name.Local)
		case xml.CharData:
			w.chars(t)
		}
	}

	return []byte(w.sb.String()), nil
}
