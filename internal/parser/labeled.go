package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// sceneLabels are checked in order; the first one present wins
var sceneLabels = []string{"场景描述", "scene description", "场景", "描述", "description"}

// optionHeaders are stripped from the end of a description
var optionHeaders = []string{"可选项", "选项", "你的选择", "options", "choices"}

// marker is one "N." enumeration marker, in rune offsets
type marker struct {
	num   int
	start int // offset of the number
	end   int // offset of the item text
}

// ParseLabeled extracts a labeled description and the first enumerated run
// "1. … 2. …", inline or one item per line. At least two items are required.
// The text is handled as runes, so invalid UTF-8 comes back as U+FFFD; the
// original bytes survive only in Result.Raw.
func ParseLabeled(text string) (Scene, bool) {
	orig := []rune(text)
	folded := foldRunes(orig)

	run := firstRun(findMarkers(folded))
	if len(run) < 2 {
		return Scene{}, false
	}

	listStart := run[0].start
	var options []string
	for i, m := range run {
		if len(options) == MaxLabeledOptions {
			break
		}
		var end int
		if i+1 < len(run) {
			end = run[i+1].start
		} else {
			end = lineEnd(orig, m.end)
		}
		item := strings.TrimSpace(string(orig[m.end:end]))
		if item == "" {
			return Scene{}, false
		}
		options = append(options, item)
	}

	desc := ""
	if labelEnd, ok := findLabel(folded[:listStart]); ok {
		desc = string(orig[labelEnd:listStart])
	} else {
		desc = string(orig[:listStart])
	}
	desc = trimOptionHeader(strings.TrimSpace(desc))
	if desc == "" {
		desc = strings.TrimSpace(text)
	}

	return Scene{
		Description:  desc,
		Options:      options,
		OptionEvents: noEvents(len(options)),
	}, true
}

// foldRunes maps full-width forms to their narrow equivalents and
// lower-cases, one rune for one rune so offsets stay aligned
func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		if n := width.LookupRune(r).Narrow(); n != 0 {
			r = n
		}
		out[i] = unicode.ToLower(r)
	}
	return out
}

func isMarkerPunct(r rune) bool {
	switch r {
	case '.', ')', '、', '､':
		return true
	}
	return false
}

// findMarkers finds "N." style markers that start a line or follow whitespace
func findMarkers(rs []rune) []marker {
	var markers []marker
	for i := 0; i < len(rs); i++ {
		if rs[i] < '1' || rs[i] > '9' {
			continue
		}
		if i > 0 && !unicode.IsSpace(rs[i-1]) && rs[i-1] != ':' {
			continue
		}

		num := int(rs[i] - '0')
		j := i + 1
		if j < len(rs) && rs[j] >= '0' && rs[j] <= '9' {
			num = num*10 + int(rs[j]-'0')
			j++
		}
		if j >= len(rs) || !isMarkerPunct(rs[j]) {
			continue
		}
		j++
		// "1.5" is a number, not a marker
		if rs[j-1] == '.' && j < len(rs) && rs[j] >= '0' && rs[j] <= '9' {
			continue
		}
		for j < len(rs) && (rs[j] == ' ' || rs[j] == '\t') {
			j++
		}
		markers = append(markers, marker{num: num, start: i, end: j})
		i = j - 1
	}
	return markers
}

// firstRun returns the first sequence of markers numbered 1, 2, 3, ...
func firstRun(markers []marker) []marker {
	for i, m := range markers {
		if m.num != 1 {
			continue
		}
		run := []marker{m}
		for _, next := range markers[i+1:] {
			if next.num != len(run)+1 {
				break
			}
			run = append(run, next)
		}
		if len(run) >= 2 {
			return run
		}
	}
	return nil
}

// findLabel returns the offset just past "label:" for the first label found
func findLabel(folded []rune) (int, bool) {
	s := string(folded)
	for _, label := range sceneLabels {
		idx := strings.Index(s, label)
		for idx >= 0 {
			rest := []rune(s[idx+len(label):])
			k := 0
			for k < len(rest) && (rest[k] == ' ' || rest[k] == '\t') {
				k++
			}
			if k < len(rest) && rest[k] == ':' {
				return len([]rune(s[:idx+len(label)])) + k + 1, true
			}
			next := strings.Index(s[idx+len(label):], label)
			if next < 0 {
				break
			}
			idx += len(label) + next
		}
	}
	return 0, false
}

// trimOptionHeader removes a trailing "选项:" style header line
func trimOptionHeader(desc string) string {
	lines := strings.Split(desc, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	folded := string(foldRunes([]rune(last)))
	for _, header := range optionHeaders {
		if folded == header || folded == header+":" {
			return strings.TrimSpace(strings.Join(lines[:len(lines)-1], "\n"))
		}
	}
	return desc
}

func lineEnd(rs []rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == '\n' {
			return i
		}
	}
	return len(rs)
}
