package llm

import (
	"testing"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	input := `{"sql": "SELECT 1", "confidence": 0.9}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	input := "Here is the query:\n```json\n{\"sql\": \"SELECT * FROM vw_vendas\"}\n```\nDone."
	expected := `{"sql": "SELECT * FROM vw_vendas"}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestExtractJSON_WithThinkTags(t *testing.T) {
	input := `<think>
The user wants sales grouped by month.
</think>
{"sql": "SELECT 1", "chart_type": "line"}`

	expected := `{"sql": "SELECT 1", "chart_type": "line"}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestExtractJSON_NestedAndEscaped(t *testing.T) {
	input := `prefix {"outer": {"inner": "va\"lue { }"}, "list": [1, 2]} suffix`
	expected := `{"outer": {"inner": "va\"lue { }"}, "list": [1, 2]}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	if _, err := ExtractJSON("sorry, I cannot help with that"); err == nil {
		t.Error("expected error for response without JSON")
	}
}

func TestParseJSONResponse(t *testing.T) {
	type candidate struct {
		SQL        string  `json:"sql"`
		Confidence float64 `json:"confidence"`
	}

	got, err := ParseJSONResponse[candidate]("```json\n{\"sql\": \"SELECT 1\", \"confidence\": 0.8}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SQL != "SELECT 1" || got.Confidence != 0.8 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestParseJSONResponse_InvalidPayload(t *testing.T) {
	type candidate struct {
		SQL string `json:"sql"`
	}

	if _, err := ParseJSONResponse[candidate]("no json here"); err == nil {
		t.Error("expected error for unparseable response")
	}
}
