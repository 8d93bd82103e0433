package syntax

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNumber:
		return "number " + t.text
	}
	return fmt.Sprintf("%q", t.text)
}

// Longest first, so ":=" wins over ":".
var puncts = []string{"=>", "->", ":=", "@[", "(", ")", "{", "}", "[", "]", ":", ",", ";", "|", "?", "@"}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '\'' || r == '.'
}

// lex splits src into tokens. Identifiers are NFC-normalized so that
// canonically equivalent spellings resolve to the same name.
func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case strings.HasPrefix(src[i:], "(*"):
			end := strings.Index(src[i+2:], "*)")
			if end < 0 {
				return nil, &ParseError{Offset: i, Message: "unterminated comment"}
			}
			i += end + 4
		case isIdentStart(r):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			out = append(out, token{kind: tokIdent, text: norm.NFC.String(src[start:i]), pos: start})
		case unicode.IsDigit(r):
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			out = append(out, token{kind: tokNumber, text: src[start:i], pos: start})
		default:
			p := matchPunct(src[i:])
			if p == "" {
				return nil, &ParseError{Offset: i, Message: fmt.Sprintf("unexpected character %q", r)}
			}
			out = append(out, token{kind: tokPunct, text: p, pos: i})
			i += len(p)
		}
	}
	return append(out, token{kind: tokEOF, pos: len(src)}), nil
}

func matchPunct(s string) string {
	for _, p := range puncts {
		if strings.HasPrefix(s, p) {
			return p
		}
	}
	return ""
}
