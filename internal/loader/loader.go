// Package loader extracts plain text from the supported document formats.
package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// MaxFileSize is the hard limit for text extraction.
const MaxFileSize = 50 * 1024 * 1024

// ErrEmptyDocument is returned when a file yields no text.
var ErrEmptyDocument = errors.New("document has no extractable text")

// Load reads the file at path and extracts its text according to its extension.
func Load(path string) (domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return domain.Document{}, fmt.Errorf("%s exceeds size limit of %d bytes", path, MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var text string
	switch ext {
	case ".txt":
		text, err = extractText(path)
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDOCX(path)
	default:
		return domain.Document{}, fmt.Errorf("%s: %w", ext, domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDocument)
	}

	return domain.Document{
		Name:    filepath.Base(path),
		Path:    path,
		Ext:     ext,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Content: text,
	}, nil
}

// Failure records a file that could not be loaded.
type Failure struct {
	Path string
	Err  error
}

// LoadAll loads every path, skipping and logging failures.
func LoadAll(paths []string, logger *zap.Logger) ([]domain.Document, []Failure) {
	docs := make([]domain.Document, 0, len(paths))
	var failed []Failure

	for _, p := range paths {
		doc, err := Load(p)
		if err != nil {
			logger.Warn("Failed to load document", zap.String("path", p), zap.Error(err))
			failed = append(failed, Failure{Path: p, Err: err})
			continue
		}
		logger.Debug("Loaded document",
			zap.String("name", doc.Name),
			zap.Int("chars", len(doc.Content)),
		)
		docs = append(docs, doc)
	}

	return docs, failed
}

func extractText(path string) (string, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return string(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))), nil // strip UTF-8 BOM
}

func extractPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX reads word/document.xml from the zip container.
// Only <w:t> runs carry text; <w:p> becomes a newline, <w:tab/> a tab.
func extractDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	var documentXML *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			documentXML = f
			break
		}
	}
	if documentXML == nil {
		return "", errors.New("invalid docx: missing word/document.xml")
	}

	rc, err := documentXML.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return docxText(rc)
}

func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			case "t":
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}
