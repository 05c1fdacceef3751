package document

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-analyst/backend/internal/apperr"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
)

const (
	MediaTypePDF      = "application/pdf"
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
)

// Extractor turns an uploaded file into plain text. It keeps no state between calls.
type Extractor struct {
	maxBytes int64
	log      zerolog.Logger
}

// NewExtractor returns an Extractor rejecting blobs larger than maxBytes (<=0 disables the limit).
func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes, log: logging.Component("document")}
}

// Extract returns the text of blob according to its declared media type.
// Failures are *apperr.Error with CodeParse.
func (e *Extractor) Extract(blob []byte, mediaType string) (string, error) {
	if e.maxBytes > 0 && int64(len(blob)) > e.maxBytes {
		return "", apperr.Parse(fmt.Sprintf("file too large: %d bytes exceeds limit of %d", len(blob), e.maxBytes), nil)
	}

	switch normalizeMediaType(mediaType) {
	case MediaTypePDF:
		return e.extractPDF(blob)
	case MediaTypeText, MediaTypeMarkdown:
		return extractText(blob)
	default:
		return "", apperr.Parse(fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
}

// DetectMediaType prefers the declared type and falls back to the file extension
// when browsers send an empty or generic type.
func DetectMediaType(declared, filename string) string {
	mt := normalizeMediaType(declared)
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MediaTypePDF
	case ".txt", ".text":
		return MediaTypeText
	case ".md", ".markdown":
		return MediaTypeMarkdown
	}
	return mt
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(mediaType)
	}
	return mt
}

func extractText(blob []byte) (string, error) {
	if !utf8.Valid(blob) {
		return "", apperr.Parse("file is not valid UTF-8 text", nil)
	}
	return string(blob), nil
}

func (e *Extractor) extractPDF(blob []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = apperr.Parse("failed to parse PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", apperr.Parse("failed to parse PDF", err)
	}

	var builder strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		builder.WriteString(e.pageText(reader, i))
	}

	e.log.Debug().Int("pages", pages).Int("chars", utf8.RuneCountInString(builder.String())).Msg("pdf text extracted")
	return builder.String(), nil
}

// pageText never fails: an unreadable page contributes an empty string.
func (e *Extractor) pageText(reader *pdf.Reader, index int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Int("page", index).Interface("panic", r).Msg("skip unreadable pdf page")
			text = ""
		}
	}()

	page := reader.Page(index)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		e.log.Warn().Int("page", index).Err(err).Msg("skip unreadable pdf page")
		return ""
	}
	return text
}
