package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"docpipe/internal/log"
)

// PDF normalizes PDF manuals into one Document per page. Paging keeps
// chunk IDs stable: editing one page leaves every other page's chunks
// untouched in the index.
type PDF struct {
	log log.Logger
}

func NewPDF(logger log.Logger) *PDF {
	return &PDF{log: logger}
}

// Normalize extracts text from the PDF at path, or from every PDF in the
// directory at path. Files that fail extraction are logged and skipped.
func (n *PDF) Normalize(ctx context.Context, path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return n.file(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	var docs []Document
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		pages, err := n.file(filepath.Join(path, name))
		if err != nil {
			n.log.Warn("skipping pdf", "file", name, "error", err)
			continue
		}
		docs = append(docs, pages...)
	}
	return docs, nil
}

func (n *PDF) file(path string) ([]Document, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	pageCount := pdfCtx.PageCount

	filename := filepath.Base(path)
	category, objectType := Classify(filename, "")

	var docs []Document
	for page := 1; page <= pageCount; page++ {
		content, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			n.log.Warn("skipping page", "file", filename, "page", page, "error", err)
			continue
		}
		text, err := contentStreamText(content)
		if err != nil {
			n.log.Warn("skipping page", "file", filename, "page", page, "error", err)
			continue
		}
		text = CleanText(text)
		if text == "" {
			continue
		}
		docs = append(docs, Document{
			SourceID: filename + ":p" + strconv.Itoa(page),
			Filename: filename,
			Text:     text,
			Kind:     KindDoc,
			Metadata: map[string]string{
				"doc_category": category,
				"object_type":  objectType,
				"page_number":  strconv.Itoa(page),
				"total_pages":  strconv.Itoa(pageCount),
			},
		})
	}
	return docs, nil
}

var (
	multiSpace   = regexp.MustCompile(` +`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
	pageFooter   = regexp.MustCompile(`Page \d+ of \d+`)
)

// CleanText normalizes extracted text: collapses space runs, caps blank
// lines at one, strips page footers and non-printable characters.
func CleanText(text string) string {
	text = pageFooter.ReplaceAllString(text, "")
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || strconv.IsPrint(r) {
			return r
		}
		return -1
	}, text)
	return strings.TrimSpace(text)
}

// contentStreamText pulls the text-showing operands (Tj, TJ, ', ") out of
// a PDF page content stream. Strings encoded with non-standard CMaps come
// out garbled; such pages typically clean to empty and get skipped.
func contentStreamText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content stream: %w", err)
	}

	var out strings.Builder
	var pending []string
	flush := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
		if len(pending) > 0 {
			out.WriteByte('\n')
		}
		pending = pending[:0]
	}

	for i := 0; i < len(data); {
		switch c := data[i]; {
		case c == '(':
			s, next := literalString(data, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			// dictionary opener, not a hex string
			i += 2
		case c == '<':
			s, next := hexString(data, i)
			pending = append(pending, s)
			i = next
		case c == 'T' && i+1 < len(data) && (data[i+1] == 'j' || data[i+1] == 'J'):
			flush()
			i += 2
		case c == '\'' || c == '"':
			flush()
			i++
		default:
			i++
		}
	}
	flush()
	return out.String(), nil
}

// literalString parses a PDF literal string starting at the opening paren,
// honoring escapes and balanced nested parens. Returns the decoded string
// and the index just past the closing paren.
func literalString(data []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
				// discard
			case '(', ')', '\\':
				b.WriteByte(e)
			default:
				if e >= '0' && e <= '7' {
					code := int(e - '0')
					for n := 0; n < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; n++ {
						i++
						code = code*8 + int(data[i]-'0')
					}
					b.WriteByte(byte(code))
				}
			}
			i++
		case c == '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case c == ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// hexString parses a PDF hex string starting at '<'. Returns the decoded
// bytes as a string and the index just past the closing '>'.
func hexString(data []byte, start int) (string, int) {
	var b strings.Builder
	var hi byte
	haveHi := false
	i := start + 1
	for i < len(data) && data[i] != '>' {
		c := data[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			i++
			continue
		}
		if haveHi {
			b.WriteByte(hi<<4 | v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
		i++
	}
	if haveHi {
		b.WriteByte(hi << 4)
	}
	if i < len(data) {
		i++
	}
	return b.String(), i
}
