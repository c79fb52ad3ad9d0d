package tokens

import (
	"encoding/base64"
	"image"
	"strings"

	// Registered decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// ImageSize reads the pixel dimensions of an inline image from its header.
// Images referenced by URL are never fetched and report ok=false, as do
// formats without a registered decoder.
func ImageSize(img domain.Image) (width, height int, ok bool) {
	if !img.Inline() {
		return 0, 0, false
	}
	r := base64.NewDecoder(base64.StdEncoding, strings.NewReader(strings.TrimRight(img.Data, "\n")))
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
