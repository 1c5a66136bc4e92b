package openai

import (
	"strings"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("New with empty apiKey should return an error")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model = %q, want %q", p.model, defaultModel)
	}
}

func TestTranslateSystemPrompt(t *testing.T) {
	prompt := translateSystemPrompt("en", []string{"es", "fr"})
	for _, want := range []string{`"en"`, "es, fr", "JSON object"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	// Without a source language the from-clause must be absent.
	prompt = translateSystemPrompt("", []string{"de"})
	if strings.Contains(prompt, "from") {
		t.Errorf("prompt should not mention a source language:\n%s", prompt)
	}
}

func TestParseTranslationObject(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		targets []string
		wantES  string
		wantErr bool
	}{
		{
			name:    "plain object",
			resp:    `{"es": "Hola", "fr": "Bonjour"}`,
			targets: []string{"es", "fr"},
			wantES:  "Hola",
		},
		{
			name:    "fenced object",
			resp:    "```json\n{\"es\": \"Hola\"}\n```",
			targets: []string{"es"},
			wantES:  "Hola",
		},
		{
			name:    "missing target",
			resp:    `{"es": "Hola"}`,
			targets: []string{"es", "it"},
			wantErr: true,
		},
		{
			name:    "not json",
			resp:    "Sure! Here is the translation: Hola",
			targets: []string{"es"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseTranslationObject(tt.resp, tt.targets)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTranslationObject: %v", err)
			}
			if out["es"] != tt.wantES {
				t.Errorf("out[es] = %q, want %q", out["es"], tt.wantES)
			}
		})
	}
}

func TestParseBatchResponse(t *testing.T) {
	resp := `[{"es": "Uno"}, {"es": "Dos"}]`
	out, err := parseBatchResponse(resp, 2, []string{"es"})
	if err != nil {
		t.Fatalf("parseBatchResponse: %v", err)
	}
	if out[0]["es"] != "Uno" || out[1]["es"] != "Dos" {
		t.Errorf("out = %v", out)
	}

	if _, err := parseBatchResponse(resp, 3, []string{"es"}); err == nil {
		t.Error("expected length-mismatch error, got nil")
	}
	if _, err := parseBatchResponse(resp, 2, []string{"es", "fr"}); err == nil {
		t.Error("expected missing-target error, got nil")
	}
}
