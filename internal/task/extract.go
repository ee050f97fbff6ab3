package task

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a reply holds no parseable JSON value.
var ErrNoJSON = errors.New("reply contains no JSON value")

// ExtractJSON returns the JSON document inside reply, tolerating a markdown
// code fence and prose before or after the value.
func ExtractJSON(reply string) (string, error) {
	text := stripFence(reply)
	if text != "" && json.Valid([]byte(text)) {
		return text, nil
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", ErrNoJSON
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", ErrNoJSON
	}
	return candidate, nil
}

// ExtractCode strips a surrounding markdown code fence, and the language tag
// on its opening line, from a code reply.
func ExtractCode(reply string) string {
	return stripFence(reply)
}

var (
	fenceOpen  = regexp.MustCompile("(?m)^[ \t]*```[^\n`]*\n")
	fenceClose = regexp.MustCompile("(?m)^[ \t]*```[ \t]*$")
)

// stripFence returns the body of the first fence that opens at the start of
// a line. Backticks elsewhere, such as in doc comments, are left alone.
func stripFence(reply string) string {
	text := strings.TrimSpace(reply)

	open := fenceOpen.FindStringIndex(text)
	if open == nil {
		return text
	}
	body := text[open[1]:]
	if closes := fenceClose.FindAllStringIndex(body, -1); len(closes) > 0 {
		body = body[:closes[len(closes)-1][0]]
	}
	return strings.TrimSpace(body)
}
