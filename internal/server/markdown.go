package server

import (
	"bytes"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderAnswer converts a markdown answer to HTML. Raw HTML in the answer is not passed through.
func renderAnswer(answer string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(answer), &buf); err != nil {
		log.Warn().Err(err).Msg("Error rendering answer")
		return ""
	}
	return buf.String()
}
