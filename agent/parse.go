package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	analysisRe        = regexp.MustCompile(`(?is)analysis:\s*(.*?)(?:recommendations:|confidence:|$)`)
	recommendationsRe = regexp.MustCompile(`(?is)recommendations:\s*(.*?)(?:confidence:|$)`)
	confidenceRe      = regexp.MustCompile(`(?i)confidence:?\s*([0-9]+(?:\.[0-9]+)?)\s*%?`)
	bulletRe          = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// ParseResponse turns raw completion text into a structured result using a
// three-tier strategy:
//
//  1. Syntactically valid JSON objects are parsed directly and their fields
//     merged into the result; JSON arrays become the recommendations list.
//  2. Otherwise an "Analysis:" section and a "Recommendations:" section
//     (bullet or numbered list) are extracted by pattern, with confidence
//     taken from a "confidence: NN%" marker when present.
//  3. If neither applies, the raw text is wrapped as the analysis with
//     confidence 0.7.
//
// Percentage confidences are normalized to [0,1].
func ParseResponse(text string) map[string]any {
	trimmed := strings.TrimSpace(text)

	if result, ok := parseJSONResponse(trimmed); ok {
		return result
	}
	if result, ok := parseSectionedResponse(trimmed); ok {
		return result
	}
	return map[string]any{"analysis": trimmed, "confidence": 0.7}
}

func parseJSONResponse(trimmed string) (map[string]any, bool) {
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') || !gjson.Valid(trimmed) {
		return nil, false
	}
	parsed := gjson.Parse(trimmed).Value()
	switch v := parsed.(type) {
	case map[string]any:
		result := make(map[string]any, len(v)+1)
		for k, val := range v {
			result[k] = val
		}
		if _, ok := result["analysis"]; !ok {
			result["analysis"] = trimmed
		}
		if c, ok := toFloat(result["confidence"]); ok {
			result["confidence"] = normalizeConfidence(c)
		}
		return result, true
	case []any:
		return map[string]any{"analysis": trimmed, "recommendations": v}, true
	default:
		return nil, false
	}
}

func parseSectionedResponse(trimmed string) (map[string]any, bool) {
	result := map[string]any{}
	matched := false

	if m := analysisRe.FindStringSubmatch(trimmed); m != nil && strings.TrimSpace(m[1]) != "" {
		result["analysis"] = strings.TrimSpace(m[1])
		matched = true
	}
	if m := recommendationsRe.FindStringSubmatch(trimmed); m != nil {
		if recs := splitListItems(m[1]); len(recs) > 0 {
			result["recommendations"] = recs
			matched = true
		}
	}
	if !matched {
		return nil, false
	}

	if _, ok := result["analysis"]; !ok {
		result["analysis"] = trimmed
	}
	if m := confidenceRe.FindStringSubmatch(trimmed); m != nil {
		if c, err := strconv.ParseFloat(m[1], 64); err == nil {
			result["confidence"] = normalizeConfidence(c)
		}
	}
	return result, true
}

// splitListItems splits a section body into list entries, stripping bullet
// and number prefixes.
func splitListItems(body string) []any {
	var items []any
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

// normalizeConfidence maps percentage values into [0,1].
func normalizeConfidence(c float64) float64 {
	if c > 1 {
		c = c / 100
	}
	return clamp01(c)
}
