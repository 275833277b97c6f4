package gateway

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"null", `null`, []string{}},
		{"list", `["  What is TUM? ", "", "Where is it?"]`, []string{"What is TUM?", "Where is it?"}},
		{
			name: "html fragment",
			raw:  `"<div class=\"recommendation-item\">What programs?</div><div class=\"recommendation-item\">\n  How to apply?</div>"`,
			want: []string{"What programs?", "How to apply?"},
		},
		{"html list", `"<ul><li>One</li><li>Two</li></ul>"`, []string{"One", "Two"}},
		{"plain lines", `"First\n\nSecond"`, []string{"First", "Second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuestions(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parseQuestions() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseQuestions() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseQuestionsRejectsObjects(t *testing.T) {
	if _, err := parseQuestions(json.RawMessage(`{"q":"x"}`)); err == nil {
		t.Error("parseQuestions() should reject an object")
	}
}
