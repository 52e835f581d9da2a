package usecase

import (
	"crypto/rand"
	"io"
	"strings"
)

// A character set that avoids ambiguous characters like O/0, I/1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator issues the transfer-description codes payers type into their
// banking app. Codes are PREFIX + N characters, with no separators, because
// banks strip or rewrite punctuation in descriptions.
type CodeGenerator struct {
	Prefix string
	Length int
}

func (g CodeGenerator) New() (string, error) {
	buf := make([]byte, g.Length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return strings.ToUpper(g.Prefix) + string(buf), nil
}

// NormalizeDescription upper-cases s and drops everything that is not an
// ASCII letter or digit.
func NormalizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DescriptionContains reports whether a transfer description carries code.
func DescriptionContains(description, code string) bool {
	if code == "" {
		return false
	}
	return strings.Contains(NormalizeDescription(description), NormalizeDescription(code))
}

// Candidates returns every substring of the normalized description that has
// the shape of a code, in order of appearance.
func (g CodeGenerator) Candidates(description string) []string {
	d := NormalizeDescription(description)
	prefix := strings.ToUpper(g.Prefix)
	n := len(prefix) + g.Length
	var out []string
	seen := map[string]bool{}
	for i := 0; i+n <= len(d); i++ {
		if !strings.HasPrefix(d[i:], prefix) {
			continue
		}
		c := d[i : i+n]
		if !inAlphabet(c[len(prefix):]) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func inAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(codeAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
