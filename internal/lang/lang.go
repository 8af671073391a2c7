// Package lang identifies the language of recognized text and maps engine language codes to ISO 639-1.
package lang

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Default is reported when no language can be identified.
const Default = "en"

// minDetectLength is the shortest text (in runes) worth running identification on.
const minDetectLength = 20

var iso3to1 = map[string]string{
	"eng": "en",
	"rus": "ru",
	"deu": "de",
	"ger": "de",
	"fra": "fr",
	"fre": "fr",
	"spa": "es",
	"ita": "it",
	"por": "pt",
	"nld": "nl",
	"ara": "ar",
	"heb": "he",
	"jpn": "ja",
	"kor": "ko",
	"zho": "zh",
	"cmn": "zh",
	"hin": "hi",
	"ben": "bn",
	"ukr": "uk",
	"pol": "pl",
	"ces": "cs",
	"slk": "sk",
	"swe": "sv",
	"nor": "no",
	"nob": "no",
	"dan": "da",
	"fin": "fi",
	"tur": "tr",
	"ell": "el",
	"vie": "vi",
}

// engineCodes covers the three-letter codes OCR engines accept that are not plain ISO 639-3.
var engineCodes = map[string]string{
	"chi_sim": "zh",
	"chi_tra": "zh",
}

// Detect returns the ISO 639-1 code of the dominant language of text,
// or "" when the text is too short or the language is outside the known table.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minDetectLength {
		return ""
	}
	info := whatlanggo.Detect(text)
	return iso3to1[info.Lang.Iso6393()]
}

// DetectOr is Detect with a fallback.
func DetectOr(text, fallback string) string {
	if code := Detect(text); code != "" {
		return code
	}
	return fallback
}

// FromEngineCode maps an engine language code (eng, deu, chi_sim, ...) to ISO 639-1,
// defaulting to "en" for unknown codes.
func FromEngineCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if v, ok := engineCodes[code]; ok {
		return v
	}
	if v, ok := iso3to1[code]; ok {
		return v
	}
	return Default
}
