// Package extract pulls opcode, segment and byte tokens out of disassembly
// listings (.asm) and byte dumps (.bytes), expands them into n-grams and
// counts them per file as feature observations.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a family of tokens.
type Kind string

const (
	KindBytes   Kind = "bytes"
	KindSegment Kind = "segment"
	KindOpcode  Kind = "opcode"
)

// Source is the file extension a Kind is read from.
type Source string

const (
	SourceAsm   Source = ".asm"
	SourceBytes Source = ".bytes"
)

var (
	// segment prefix of an address column, e.g. ".text:00401000 ".
	segmentPattern = regexp.MustCompile(`([a-zA-Z]+):[a-zA-Z0-9]{8}[\t\s]`)
	// a hex byte followed by a lower-case mnemonic, e.g. " 8B     mov ".
	opcodePattern = regexp.MustCompile(`([\s])([A-F0-9]{2})([\s]+)([a-z]+)([\s+])`)
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBytes, KindSegment, KindOpcode:
		return k, nil
	default:
		return "", fmt.Errorf("unknown feature kind %q", s)
	}
}

// Source returns the extension the kind is extracted from.
func (k Kind) Source() Source {
	if k == KindBytes {
		return SourceBytes
	}
	return SourceAsm
}

// Tokens returns the ordered token sequence of the given kind found in text.
func Tokens(kind Kind, text string) []string {
	switch kind {
	case KindBytes:
		return byteTokens(text)
	case KindSegment:
		return submatches(segmentPattern, text, 1)
	case KindOpcode:
		return submatches(opcodePattern, text, 4)
	default:
		return nil
	}
}

// byteTokens keeps the whitespace-separated fields that are exactly one
// upper-case hex byte. The eight-digit address column and "??" placeholders
// are skipped.
func byteTokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) == 2 && isUpperHex(f[0]) && isUpperHex(f[1]) {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func isUpperHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func submatches(re *regexp.Regexp, text string, group int) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[group])
	}
	return tokens
}
