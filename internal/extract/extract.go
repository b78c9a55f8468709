// Package extract pulls answer text and numeric scores out of loosely
// specified response bodies. Model and judge endpoints in the wild return
// heterogeneous shapes (bare strings, OpenAI-style choices, Dify outputs,
// wrapped lists), so extraction resolves a priority list of field paths
// with gjson and degrades to permissive text scanning rather than failing.
// Nothing in this package returns a Go error: a structural mismatch yields
// zero values plus a descriptive reason string for logging.
package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// textPaths are the recognized locations of a model's answer text, in
// priority order. The first non-empty string match wins.
var textPaths = []string{
	"output",
	"data.output",
	"result",
	"choices.0.message.content",
	"choices.0.text",
	"message",
	"text",
	"answer",
	"data.answer",
	"outputs.answer",
	"outputs.output_text",
}

// scorePaths are the recognized locations of a single judge score.
var scorePaths = []string{
	"score",
	"data.score",
	"result.score",
	"outputs.score",
	"answer",
	"data.answer",
}

// scoreListPaths are the recognized locations of a per-item score list.
var scoreListPaths = []string{
	"data",
	"scores",
	"result.scores",
}

// numberPattern matches integers and decimals, including values embedded
// in surrounding words.
var numberPattern = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)

// Item is one normalized judge result: an optional per-item text and an
// optional numeric score.
type Item struct {
	Text  string
	Score *float64
}

// ModelText extracts the answer text from a model response body.
// Non-JSON bodies pass through verbatim. JSON bodies are probed along
// textPaths; Dify-style answer strings that themselves contain a JSON
// object yield that object's message field. A JSON body with no
// recognized path falls back to its compact serialization so the raw
// shape stays visible in the output column. The second return value is a
// reason string, non-empty only when nothing usable was found.
func ModelText(body []byte, contentType string) (string, string) {
	isJSON := strings.Contains(contentType, "application/json")
	if !isJSON && !gjson.ValidBytes(body) {
		return string(body), ""
	}
	if !gjson.ValidBytes(body) {
		return "", "response declared JSON but did not parse"
	}

	root := gjson.ParseBytes(body)
	for _, path := range textPaths {
		v := root.Get(path)
		switch {
		case v.Type == gjson.String && v.Str != "":
			if strings.Contains(path, "answer") {
				if msg, ok := unwrapAnswerJSON(v.Str); ok {
					return msg, ""
				}
			}
			return v.Str, ""
		case v.IsObject():
			if msg := v.Get("message"); msg.Type == gjson.String && msg.Str != "" {
				return msg.Str, ""
			}
		}
	}

	// No recognized path; keep the body visible rather than dropping it.
	compact := strings.TrimSpace(string(body))
	if compact == "" {
		return "", "empty response body"
	}
	return compact, ""
}

// JudgeItems normalizes a judge response body into an ordered sequence of
// per-item results, one per submitted item, preserving input order. A
// single-object body yields a one-element sequence. The reason string is
// non-empty only when no score could be extracted at all.
func JudgeItems(body []byte) ([]Item, string) {
	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)

		if root.IsArray() {
			if items := itemsFromList(root); len(items) > 0 {
				return items, ""
			}
		}

		if root.IsObject() {
			for _, path := range scorePaths {
				v := root.Get(path)
				if item, ok := itemFromValue(v); ok {
					return []Item{item}, ""
				}
			}
			for _, path := range scoreListPaths {
				v := root.Get(path)
				if !v.IsArray() {
					continue
				}
				if items := itemsFromList(v); len(items) > 0 {
					return items, ""
				}
			}
			// Last resort for object shapes: the first numeric member.
			var fallback []Item
			root.ForEach(func(_, v gjson.Result) bool {
				if v.Type == gjson.Number {
					score := v.Num
					fallback = []Item{{Score: &score}}
					return false
				}
				return true
			})
			if fallback != nil {
				return fallback, ""
			}
		}
	}

	// Plain text or unrecognized JSON: scan for numbers.
	matches := numberPattern.FindAllString(string(body), -1)
	if len(matches) == 0 {
		return nil, "no score found in judge response"
	}
	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		if v, ok := parseNumber(m); ok {
			items = append(items, Item{Score: &v})
		}
	}
	if len(items) == 0 {
		return nil, "no score found in judge response"
	}
	return items, ""
}

// FirstNumber scans text for the first parseable number. Accepts integers,
// decimals, and values embedded in surrounding words.
func FirstNumber(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	return parseNumber(m)
}

// itemsFromList converts a gjson array of numbers or score-bearing objects
// into items, preserving element order. Elements with no usable score are
// skipped, matching the permissive posture of the rest of the package.
func itemsFromList(list gjson.Result) []Item {
	var items []Item
	list.ForEach(func(_, v gjson.Result) bool {
		if item, ok := itemFromValue(v); ok {
			items = append(items, item)
		}
		return true
	})
	return items
}

// itemFromValue interprets one response value as a judge item. Numbers map
// directly; strings are scanned for an embedded number; objects contribute
// their score field plus any per-item text.
func itemFromValue(v gjson.Result) (Item, bool) {
	switch {
	case v.Type == gjson.Number:
		score := v.Num
		return Item{Score: &score}, true
	case v.Type == gjson.String:
		if n, ok := FirstNumber(v.Str); ok {
			return Item{Text: v.Str, Score: &n}, true
		}
	case v.IsObject():
		item := Item{}
		for _, key := range []string{"text", "answer", "output"} {
			if t := v.Get(key); t.Type == gjson.String && t.Str != "" {
				item.Text = t.Str
				break
			}
		}
		s := v.Get("score")
		switch s.Type {
		case gjson.Number:
			score := s.Num
			item.Score = &score
			return item, true
		case gjson.String:
			if n, ok := FirstNumber(s.Str); ok {
				item.Score = &n
				return item, true
			}
		}
	}
	return Item{}, false
}

// unwrapAnswerJSON handles Dify answer strings whose content is itself a
// JSON object; the embedded message field is the real answer.
func unwrapAnswerJSON(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", false
	}
	if msg, ok := obj["message"].(string); ok && msg != "" {
		return msg, true
	}
	return "", false
}

// parseNumber converts one numberPattern match into a float64.
// strconv handles forms json would reject, such as a bare ".5".
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
