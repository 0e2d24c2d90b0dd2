// Package fileparse turns uploaded documents into plain text for chunking.
package fileparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Converter handles the MIME types it accepts.
type Converter interface {
	AcceptedMimeTypes() []string
	Convert(data []byte) (string, error)
}

type Parser struct {
	converters []Converter
}

// New registers the built-in converters. Order matters: HTML and PDF are
// matched before the generic text fallback.
func New() *Parser {
	return &Parser{converters: []Converter{
		pdfConverter{},
		htmlConverter{},
		textConverter{},
	}}
}

// DetectMIME sniffs the content type from the leading bytes.
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// Extract returns the text of data and the detected MIME type.
func (p *Parser) Extract(data []byte) (string, string, error) {
	mtype := mimetype.Detect(data)
	for _, c := range p.converters {
		if !accepts(mtype, c.AcceptedMimeTypes()) {
			continue
		}
		text, err := c.Convert(data)
		if err != nil {
			return "", mtype.String(), fmt.Errorf("convert %s failed: %w", mtype.String(), err)
		}
		return strings.TrimSpace(text), mtype.String(), nil
	}
	return "", mtype.String(), fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
}

// accepts walks up the MIME tree, so JSON and CSV match text/plain.
func accepts(mtype *mimetype.MIME, types []string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		for _, t := range types {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

type textConverter struct{}

func (textConverter) AcceptedMimeTypes() []string { return []string{"text/plain"} }

func (textConverter) Convert(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return string(data), nil
}
