package image

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	framingPrefix  = "data:"
	contentPath    = "choices.0.delta.content"
	excerptLimit   = 1000
	schemeMarker   = "http"
	DefaultCDNHost = "cdn.qwenlm.ai"
)

// Predicate decides whether a delta content string is the resource URL.
type Predicate func(content string) bool

func CDNMarker(marker string) Predicate {
	return func(content string) bool {
		return strings.Contains(content, marker)
	}
}

func CDNOrScheme(marker string) Predicate {
	return func(content string) bool {
		return strings.Contains(content, marker) || strings.Contains(content, schemeMarker)
	}
}

// Scan reads body line by line and returns the delta content of the first
// line accepted by accept. Lines that are not JSON are skipped. When nothing
// matches, the returned *Failure carries the head of body as Excerpt.
func Scan(body io.Reader, accept Predicate) (string, error) {
	var head strings.Builder
	r := bufio.NewReader(body)

	for {
		line, err := r.ReadString('\n')
		if head.Len() < excerptLimit*4 {
			head.WriteString(line)
		}
		if content, ok := deltaContent(line); ok && accept(content) {
			return content, nil
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fail(InternalError, err)
		}
	}

	return "", &Failure{
		Reason:  NoResourceFound,
		Message: "no image url in response",
		Excerpt: excerpt(head.String(), excerptLimit),
	}
}

func deltaContent(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimPrefix(line, framingPrefix)
	line = strings.TrimPrefix(line, " ")
	if line == "" || !gjson.Valid(line) {
		return "", false
	}
	v := gjson.Get(line, contentPath)
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// excerpt returns the first n runes of s as a byte prefix of s. Invalid
// UTF-8 bytes count as one rune each and are kept as they are.
func excerpt(s string, n int) string {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, width := utf8.DecodeRuneInString(s[i:])
		i += width
	}
	return s[:i]
}
