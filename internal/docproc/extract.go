// Package docproc turns source documents into summarized, embedded chunks that the
// curriculum engine can retrieve from.
package docproc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
)

// Extraction is the text of a source document. Pages is set for paginated sources.
type Extraction struct {
	Text  string
	Pages []string
}

// PageReader returns the plain text of each page of a paginated document.
type PageReader func(data []byte) ([]string, error)

// TypeFromPath maps a file extension to a document type.
func TypeFromPath(path string) (curriculum.DocumentType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return curriculum.DocumentPDF, nil
	case ".txt", ".text":
		return curriculum.DocumentText, nil
	case ".md", ".markdown":
		return curriculum.DocumentMarkdown, nil
	case ".json":
		return curriculum.DocumentTranscript, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDocumentType, filepath.Ext(path))
}

// ExtractFile reads path and extracts its text.
func ExtractFile(path string, docType curriculum.DocumentType, pages PageReader) (*Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrExtraction, path, err)
	}
	return Extract(data, docType, pages)
}

// Extract dispatches on docType. A nil pages reader uses the built-in PDF reader.
func Extract(data []byte, docType curriculum.DocumentType, pages PageReader) (*Extraction, error) {
	switch docType {
	case curriculum.DocumentPDF:
		if pages == nil {
			pages = ReadPDFPages
		}
		return extractPaginated(data, pages)
	case curriculum.DocumentText, curriculum.DocumentMarkdown:
		text, err := decodeText(data)
		if err != nil {
			return nil, err
		}
		return &Extraction{Text: text}, nil
	case curriculum.DocumentTranscript:
		return extractTranscript(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDocumentType, docType)
}

func extractPaginated(data []byte, read PageReader) (*Extraction, error) {
	raw, err := read(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	pages := make([]string, len(raw))
	var nonEmpty []string
	for i, p := range raw {
		pages[i] = norm.NFC.String(strings.TrimSpace(p))
		if pages[i] != "" {
			nonEmpty = append(nonEmpty, pages[i])
		}
	}
	if len(nonEmpty) == 0 {
		return nil, fmt.Errorf("%w: %d pages", ErrPageExtraction, len(raw))
	}
	return &Extraction{Text: strings.Join(nonEmpty, "\n\n"), Pages: pages}, nil
}

// ReadPDFPages extracts plain text per page using ledongthuc/pdf.
func ReadPDFPages(data []byte) (pages []string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText returns NFC-normalized UTF-8. UTF-16 input must carry a byte order mark.
func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF8) || bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		data = out
	}
	if !utf8.Valid(data) {
		return "", ErrEncoding
	}
	return norm.NFC.String(string(data)), nil
}

type utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// extractTranscript flattens [{speaker, text}] into "speaker: text" lines.
func extractTranscript(data []byte) (*Extraction, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	var entries []utterance
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("%w: transcript: %v", ErrExtraction, err)
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		t := strings.TrimSpace(e.Text)
		if t == "" {
			continue
		}
		if s := strings.TrimSpace(e.Speaker); s != "" {
			t = s + ": " + t
		}
		lines = append(lines, t)
	}
	return &Extraction{Text: strings.Join(lines, "\n")}, nil
}
