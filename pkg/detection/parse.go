package detection

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

// maxTags caps the tag list a model may return
const maxTags = 10

var reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)

type modelBox struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Box        types.NormBox `json:"box"`
}

type modelTag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// tags may come back as objects or as bare strings
func (t *modelTag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Name = s
		return nil
	}
	type plain modelTag
	return json.Unmarshal(data, (*plain)(t))
}

type modelAnalysis struct {
	Description string           `json:"description"`
	Confidence  float64          `json:"confidence"`
	Tags        []modelTag       `json:"tags"`
	Categories  []string         `json:"categories"`
	Brands      []modelBox       `json:"brands"`
	Objects     []modelBox       `json:"objects"`
	Adult       *types.AdultInfo `json:"adult"`
}

// ParseAnalysis converts a model reply into an AnalysisRecord for a width x height image.
// Normalized boxes are scaled to pixels of that image.
func ParseAnalysis(raw string, width, height int) (*types.AnalysisRecord, error) {
	var m modelAnalysis
	if err := decodeModelJSON(raw, &m); err != nil {
		return nil, err
	}

	rec := &types.AnalysisRecord{
		Tags: normalizeTags(m.Tags),
		Categories: lo.FilterMap(m.Categories, func(c string, _ int) (types.Category, bool) {
			c = strings.TrimSpace(c)
			return types.Category{Name: c}, c != ""
		}),
		Brands: lo.FilterMap(m.Brands, func(b modelBox, _ int) (types.Brand, bool) {
			return types.Brand{
				Name:       strings.TrimSpace(b.Label),
				Confidence: b.Confidence,
				Box:        pixelBox(b.Box, width, height),
			}, strings.TrimSpace(b.Label) != ""
		}),
		Objects: lo.Map(m.Objects, func(o modelBox, _ int) types.Detection {
			return types.Detection{
				Box:        pixelBox(o.Box, width, height),
				Label:      strings.TrimSpace(o.Label),
				Confidence: o.Confidence,
			}
		}),
		Adult:  m.Adult,
		Width:  width,
		Height: height,
	}
	if d := strings.TrimSpace(m.Description); d != "" {
		rec.Captions = []types.Caption{{Text: d, Confidence: m.Confidence}}
	}
	return rec, nil
}

// ParseFocus extracts the subject box from a FocusPrompt reply
func ParseFocus(raw string) (types.NormBox, error) {
	var m modelBox
	if err := decodeModelJSON(raw, &m); err != nil {
		return types.NormBox{}, err
	}
	if m.Box.W <= 0 || m.Box.H <= 0 {
		return types.NormBox{}, errors.Errorf("model returned an empty focus box for %q", m.Label)
	}
	return m.Box, nil
}

func decodeModelJSON(raw string, v any) error {
	body := extractModelJSON(raw)
	if !strings.HasPrefix(body, "{") {
		return errors.Errorf("model returned non-JSON response: %.80q", raw)
	}
	// Well-formed replies are decoded as is; cleanup only runs for the lenient cases.
	if json.Unmarshal([]byte(body), v) == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(sanitizeModelJSON(raw)), v); err != nil {
		return errors.Wrap(err, "parse model response")
	}
	return nil
}

// extractModelJSON strips code fences and keeps the outermost {...} of a model reply
func extractModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from a model reply
func sanitizeModelJSON(raw string) string {
	raw = stripComments(extractModelJSON(raw))
	raw = reTrailingComma.ReplaceAllString(raw, "$1")
	return strings.TrimSpace(raw)
}

// stripComments drops // and /* */ comments that sit outside string literals
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
				continue
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
