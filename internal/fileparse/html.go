package fileparse

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

type htmlConverter struct{}

func (htmlConverter) AcceptedMimeTypes() []string { return []string{"text/html"} }

func (htmlConverter) Convert(data []byte) (string, error) {
	return htmltomarkdown.ConvertString(string(data))
}
