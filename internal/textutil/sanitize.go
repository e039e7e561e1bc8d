package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// stripMarks decomposes to NFC-free form and drops combining marks, turning
// accented letters into their base letters.
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// foldVietnamese handles the letters diacritic stripping alone does not:
// đ/Đ carry a stroke, not a combining mark.
var foldVietnamese = strings.NewReplacer(
	"đ", "d",
	"Đ", "D",
)

// Slug converts a title into a lowercase ASCII file slug. Vietnamese
// diacritics are stripped to their base letters ("Video đầu tiên" becomes
// "video-dau-tien"); runs of non-alphanumeric characters collapse into a
// single hyphen. Returns "untitled" when nothing usable remains.
func Slug(value string) string {
	value = foldVietnamese.Replace(strings.TrimSpace(value))
	if folded, _, err := transform.String(stripMarks, value); err == nil {
		value = folded
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
