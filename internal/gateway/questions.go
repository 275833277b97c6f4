package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseQuestions decodes recommended_questions, which the backend sends either
// as a JSON list of strings or as a rendered HTML fragment of
// ".recommendation-item" elements.
func parseQuestions(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	switch raw[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("recommended_questions: %w", err)
		}
		return compact(list), nil
	case '"':
		var fragment string
		if err := json.Unmarshal(raw, &fragment); err != nil {
			return nil, fmt.Errorf("recommended_questions: %w", err)
		}
		return questionsFromHTML(fragment)
	default:
		return nil, fmt.Errorf("recommended_questions: unexpected %q", string(raw[:1]))
	}
}

func questionsFromHTML(fragment string) ([]string, error) {
	if !strings.Contains(fragment, "<") {
		return compact(strings.Split(fragment, "\n")), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("recommended_questions: %w", err)
	}

	var out []string
	for _, selector := range []string{".recommendation-item", "li", "p"} {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			out = append(out, s.Text())
		})
		if out = compact(out); len(out) > 0 {
			return out, nil
		}
	}
	return compact([]string{doc.Text()}), nil
}

// compact trims entries and drops empty ones.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			out = append(out, s)
		}
	}
	return out
}
