package artifact

import (
	"strings"
	"unicode"
)

// ToSlug turns a title into a file name stem: every uppercase character
// except a leading one is preceded by '_', and uppercase characters are
// lowered. Everything else passes through untouched. Uppercase includes the
// Other_Uppercase letters (circled and Roman numeral forms), and a lowering
// that expands to several code points is kept whole.
//
//	ToSlug("LoginPage") == "login_page"
//	ToSlug("abcDEF")    == "abc_d_e_f"
func ToSlug(title string) string {
	var b strings.Builder
	b.Grow(len(title) + 4)
	i := 0
	for _, r := range title {
		if isUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteString(lower(r))
		} else {
			b.WriteRune(r)
		}
		i++
	}
	return b.String()
}

func isUpper(r rune) bool {
	return unicode.IsUpper(r) || unicode.Is(unicode.Other_Uppercase, r)
}

// lower applies the full lowercase mapping. U+0130 is the only uppercase
// character whose unconditional lowering is more than one code point.
func lower(r rune) string {
	if r == '\u0130' {
		return "i\u0307"
	}
	return string(unicode.ToLower(r))
}
