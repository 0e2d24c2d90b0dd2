package fileparse

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

type pdfConverter struct{}

func (pdfConverter) AcceptedMimeTypes() []string { return []string{"application/pdf"} }

// Convert returns "" without error for PDFs that hold no extractable text.
func (pdfConverter) Convert(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
