package flatfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenNumber
	tokenString
)

func (k tokenKind) String() string {
	switch k {
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	default:
		return "word"
	}
}

type token struct {
	kind tokenKind
	text string
}

var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// tokenize splits one line into values. Quoted strings use Go escapes.
func tokenize(line string) ([]token, error) {
	var out []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == ',' || c == '\r':
			i++
		case c == '"':
			end := closingQuote(line, i+1)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string at column %d", i+1)
			}
			s, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("bad string at column %d: %w", i+1, err)
			}
			out = append(out, token{kind: tokenString, text: s})
			i = end + 1
		case strings.HasPrefix(line[i:], "//"):
			return out, nil
		default:
			start := i
			for i < len(line) && !strings.ContainsRune(" \t,\r\"", rune(line[i])) {
				i++
			}
			text := line[start:i]
			kind := tokenWord
			if numberPattern.MatchString(text) {
				kind = tokenNumber
			}
			out = append(out, token{kind: kind, text: text})
		}
	}
	return out, nil
}

func closingQuote(line string, from int) int {
	for i := from; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
