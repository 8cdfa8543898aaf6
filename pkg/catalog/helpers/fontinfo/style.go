package fontinfo

import (
	"path"
	"regexp"
	"strings"
)

// DefaultStyle is assigned when no style keyword is found in a file name.
const DefaultStyle = "Regular"

// styleKeywords maps lower-case file name tokens onto style labels.
// Compound styles only match as a single token: "BoldItalic" yields
// "Bold Italic", while "Bold-Italic" yields "Italic".
var styleKeywords = map[string]string{
	"thin":       "Thin",
	"extralight": "ExtraLight",
	"light":      "Light",
	"regular":    "Regular",
	"medium":     "Medium",
	"semibold":   "SemiBold",
	"bold":       "Bold",
	"extrabold":  "ExtraBold",
	"black":      "Black",
	"italic":     "Italic",
	"bolditalic": "Bold Italic",
}

var tokenSeparators = regexp.MustCompile(`[-_ ]+`)

// StyleLabel derives the style of a font file from its name. Tokens are
// scanned from the end, where families put their weight and slope, so a
// family name containing a style word does not win.
func StyleLabel(fileName string) string {
	base := path.Base(fileName)
	base = strings.TrimSuffix(base, path.Ext(base))

	tokens := tokenSeparators.Split(base, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		if label, ok := styleKeywords[strings.ToLower(tokens[i])]; ok {
			return label
		}
	}
	return DefaultStyle
}

// Introspectable reports whether glyph tables are read for files with ext.
func Introspectable(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == "otf" || ext == "ttf"
}

// Publishable reports whether files with ext are published as previews.
func Publishable(ext string) bool {
	return strings.ToLower(ext) == "otf"
}
