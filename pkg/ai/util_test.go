package ai

import (
	"testing"
)

type testEntity struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  testEntity
	}{
		{
			name:  "valid json object",
			input: `{"name":"张三"}`,
			want:  testEntity{Name: "张三"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{name: 'OpenAI'}`,
			want:  testEntity{Name: "OpenAI"},
		},
		{
			name:  "trailing comma",
			input: `{"name":"OpenAI",}`,
			want:  testEntity{Name: "OpenAI"},
		},
		{
			name:  "missing endbracket",
			input: `{"name":"OpenAI`,
			want:  testEntity{Name: "OpenAI"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{name: 'OpenAI'}"`,
			want:  testEntity{Name: "OpenAI"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"name\": \"OpenAI\"\n}\n",
			want:  testEntity{Name: "OpenAI"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testEntity
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got testEntity
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "plain object",
			input:  `{"a":1}`,
			want:   `{"a":1}`,
			wantOK: true,
		},
		{
			name:   "prose around object",
			input:  "Here is the result:\n```json\n{\"entities\":[{\"name\":\"x\"}]}\n```\nDone.",
			want:   `{"entities":[{"name":"x"}]}`,
			wantOK: true,
		},
		{
			name:   "nested objects take outermost span",
			input:  `x {"a":{"b":2}} y`,
			want:   `{"a":{"b":2}}`,
			wantOK: true,
		},
		{
			name:   "no braces",
			input:  "no structured data here",
			wantOK: false,
		},
		{
			name:   "closing before opening",
			input:  "} oops {",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("ExtractJSONObject() ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Fatalf("ExtractJSONObject() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	var out struct {
		Entities []testEntity `json:"entities"`
	}
	err := ParseJSONResponse("结果如下：{\"entities\":[{\"name\":\"张三\",\"type\":\"人物\"}]} 以上", &out)
	if err != nil {
		t.Fatalf("ParseJSONResponse() error = %v", err)
	}
	if len(out.Entities) != 1 || out.Entities[0].Name != "张三" || out.Entities[0].Type != "人物" {
		t.Fatalf("ParseJSONResponse() got = %+v", out)
	}

	if err := ParseJSONResponse("nothing", &out); err != ErrNoJSONObject {
		t.Fatalf("ParseJSONResponse() error = %v, want ErrNoJSONObject", err)
	}
}

func TestAddMetrics(t *testing.T) {
	total := ModelMetrics{}
	total = AddMetrics(total, ModelMetrics{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, DurationMs: 1000})
	total = AddMetrics(total, ModelMetrics{InputTokens: 10, OutputTokens: 40, TotalTokens: 50, DurationMs: 1000})

	if total.Requests != 2 {
		t.Fatalf("Requests = %d, want 2", total.Requests)
	}
	if total.TotalTokens != 200 {
		t.Fatalf("TotalTokens = %d, want 200", total.TotalTokens)
	}
	if total.TokenPerSecond != 100 {
		t.Fatalf("TokenPerSecond = %v, want 100", total.TokenPerSecond)
	}
}

func TestApplyOptions(t *testing.T) {
	got := ApplyOptions(GenerateOptions{Model: "default", Temperature: 0.3}, []GenerateOption{
		WithModel("m"),
		WithSystemPrompts("a", "b"),
		WithMaxTokens(256),
	})
	if got.Model != "m" || got.Temperature != 0.3 || got.MaxTokens != 256 || len(got.SystemPrompts) != 2 {
		t.Fatalf("ApplyOptions() = %+v", got)
	}
}
