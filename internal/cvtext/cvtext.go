// Package cvtext turns uploaded CV files into plain text for extraction.
package cvtext

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	// MinTextLength is the shortest CV text worth sending to a model.
	MinTextLength = 50
	// MaxTextLength caps the text sent to a model, in runes.
	MaxTextLength = 8000

	binarySampleSize = 1000
	binaryThreshold  = 0.3
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrBinary      = errors.New("file content looks binary")
	ErrTooShort    = errors.New("extracted text is too short")
)

// Extract returns the text of a CV file, choosing the parser by the
// extension of filename. The result is whitespace-normalized and capped at
// MaxTextLength.
func Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".txt", ".md", "":
		if IsBinary(data) {
			return "", ErrBinary
		}
		text = string(bytes.ToValidUTF8(data, []byte("�")))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}
	return Prepare(text)
}

// Prepare normalizes text and enforces the length bounds.
func Prepare(text string) (string, error) {
	text = Normalize(text)
	if utf8.RuneCountInString(text) < MinTextLength {
		return "", ErrTooShort
	}
	return Truncate(text, MaxTextLength), nil
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of spaces, trims every line, and keeps at most
// one blank line between paragraphs.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// Truncate cuts text to at most n runes.
func Truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// IsBinary reports whether data looks like a binary document rather than
// text: a PDF or ZIP signature, or a high share of control bytes.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) || bytes.HasPrefix(data, []byte("PK")) {
		return true
	}

	sample := data[:min(binarySampleSize, len(data))]
	nonPrintable := 0
	for _, ch := range sample {
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) > binaryThreshold
}

func extractPDF(data []byte) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(b), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}
	defer r.Close()
	return documentText(r.Editable().GetContent())
}

// documentText extracts the visible text of a WordprocessingML document
// body, one line per paragraph.
func documentText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx content: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
