package tokens

import (
	"math"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

// Image pricing in tokens. An image costs a base charge plus a charge per
// 512px tile of the scaled image.
const (
	BaseImageTokens     = 85
	TokensPerImageTile  = 170
	highDetailThreshold = 2048.0
	highDetailShortSide = 768.0
	tileSide            = 512.0
)

// ImageTokens returns the token cost of a width x height image at detail.
//
// Low detail is a flat base charge. Auto detail tiles the image as-is when
// its long side is under 2048px and otherwise falls through to the high
// detail rule, which fits the long side to 2048px, scales the short side
// to 768px and charges two tiles per 512px of the long side.
func ImageTokens(width, height int, detail domain.ImageDetail) int {
	if detail == domain.ImageDetailLow {
		return BaseImageTokens
	}
	short := math.Min(float64(width), float64(height))
	long := math.Max(float64(width), float64(height))
	if short <= 0 {
		return BaseImageTokens
	}
	if detail != domain.ImageDetailHigh && long < highDetailThreshold {
		w := int(math.Ceil(float64(width) / tileSide))
		h := int(math.Ceil(float64(height) / tileSide))
		return BaseImageTokens + TokensPerImageTile*w*h
	}
	return highDetailTokens(short, long)
}

func highDetailTokens(short, long float64) int {
	if long > highDetailThreshold {
		short *= highDetailThreshold / long
		long = highDetailThreshold
	}
	long *= highDetailShortSide / short
	return BaseImageTokens + 2*TokensPerImageTile*int(math.Ceil(long/tileSide))
}
