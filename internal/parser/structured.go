package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseStructured reads the first JSON object in text that holds a scene,
// ignoring code fences. Braces that do not open a valid scene are skipped.
func ParseStructured(text string) (Scene, bool) {
	text = stripFences(text)
	for from := 0; ; {
		obj, start, found := nextObject(text, from)
		if !found {
			return Scene{}, false
		}
		if scene, ok := sceneFromObject(obj); ok {
			return scene, true
		}
		from = start + 1
	}
}

func sceneFromObject(obj string) (Scene, bool) {
	if obj == "" || !gjson.Valid(obj) {
		return Scene{}, false
	}

	doc := gjson.Parse(obj)
	desc := doc.Get("description")
	if desc.Type != gjson.String || strings.TrimSpace(desc.String()) == "" {
		return Scene{}, false
	}

	opts := doc.Get("options")
	if !opts.IsArray() {
		return Scene{}, false
	}

	scene := Scene{Description: strings.TrimSpace(desc.String())}
	opts.ForEach(func(_, item gjson.Result) bool {
		var text, event string
		switch {
		case item.Type == gjson.String:
			text = item.String()
		case item.IsObject():
			text = item.Get("text").String()
			event = item.Get("event").String()
		default:
			return true
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return true
		}
		scene.Options = append(scene.Options, text)
		scene.OptionEvents = append(scene.OptionEvents, normalizeEvent(event))
		return true
	})

	if len(scene.Options) == 0 {
		return Scene{}, false
	}
	return scene, true
}

// stripFences drops markdown code fence lines such as ```json
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// nextObject finds the first '{' at or after from and returns the balanced
// {...} span it opens, skipping braces inside JSON strings. The span is empty
// when that brace never closes. found is false once no '{' remains.
func nextObject(text string, from int) (obj string, start int, found bool) {
	if from >= len(text) {
		return "", 0, false
	}
	idx := strings.IndexByte(text[from:], '{')
	if idx < 0 {
		return "", 0, false
	}
	start = from + idx

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], start, true
			}
		}
	}
	return "", start, true
}
