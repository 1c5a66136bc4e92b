package translate

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedProvider is a minimal in-package test double.
type scriptedProvider struct {
	result map[string]string
	batch  []map[string]string
	err    error
	block  bool
}

func (s *scriptedProvider) Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.result, s.err
}

func (s *scriptedProvider) TranslateBatch(ctx context.Context, texts []string, source string, targets []string) ([]map[string]string, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.batch, s.err
}

func (s *scriptedProvider) DetectLanguage(ctx context.Context, text string) (string, error) {
	return "en", s.err
}

func TestEchoFallback_NilInnerAlwaysEchoes(t *testing.T) {
	e := NewEchoFallback(nil, 0, 0)

	out, err := e.Translate(context.Background(), "Hello", "en", []string{"es", "fr"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out["es"] != "Hello" || out["fr"] != "Hello" {
		t.Errorf("out = %v, want the source echoed for every target", out)
	}

	batch, err := e.TranslateBatch(context.Background(), []string{"One", "Two"}, "en", []string{"es"})
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}
	if len(batch) != 2 || batch[0]["es"] != "One" || batch[1]["es"] != "Two" {
		t.Errorf("batch = %v", batch)
	}

	if _, err := e.DetectLanguage(context.Background(), "Hello"); err == nil {
		t.Error("DetectLanguage succeeded without a backend")
	}
}

func TestEchoFallback_PassesThroughSuccess(t *testing.T) {
	inner := &scriptedProvider{result: map[string]string{"es": "Hola", "fr": "Bonjour"}}
	e := NewEchoFallback(inner, 0, 0)

	out, err := e.Translate(context.Background(), "Hello", "en", []string{"es", "fr"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out["es"] != "Hola" || out["fr"] != "Bonjour" {
		t.Errorf("out = %v, want Hola/Bonjour", out)
	}
}

func TestEchoFallback_EchoesOnError(t *testing.T) {
	inner := &scriptedProvider{err: errors.New("backend down")}
	e := NewEchoFallback(inner, 0, 0)

	out, err := e.Translate(context.Background(), "Hello", "en", []string{"es", "de"})
	if err != nil {
		t.Fatalf("Translate returned error, want nil (echo): %v", err)
	}
	for _, tgt := range []string{"es", "de"} {
		if out[tgt] != "Hello" {
			t.Errorf("out[%q] = %q, want echoed source", tgt, out[tgt])
		}
	}
}

func TestEchoFallback_EchoesOnTimeout(t *testing.T) {
	inner := &scriptedProvider{block: true}
	e := NewEchoFallback(inner, 20*time.Millisecond, 0)

	start := time.Now()
	out, err := e.Translate(context.Background(), "slow text", "en", []string{"es"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Translate took %v, timeout not applied", elapsed)
	}
	if out["es"] != "slow text" {
		t.Errorf("out[es] = %q, want echoed source", out["es"])
	}
}

func TestEchoFallback_BackfillsMissingTargets(t *testing.T) {
	inner := &scriptedProvider{result: map[string]string{"es": "Hola"}}
	e := NewEchoFallback(inner, 0, 0)

	out, err := e.Translate(context.Background(), "Hello", "en", []string{"es", "it"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out["es"] != "Hola" {
		t.Errorf("out[es] = %q, want Hola", out["es"])
	}
	if out["it"] != "Hello" {
		t.Errorf("out[it] = %q, want echoed source for missing target", out["it"])
	}
}

func TestEchoFallback_BatchEchoesOnError(t *testing.T) {
	inner := &scriptedProvider{err: errors.New("boom")}
	e := NewEchoFallback(inner, 0, 0)

	texts := []string{"one", "two"}
	out, err := e.TranslateBatch(context.Background(), texts, "en", []string{"es"})
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	for i, t2 := range texts {
		if out[i]["es"] != t2 {
			t.Errorf("out[%d][es] = %q, want %q", i, out[i]["es"], t2)
		}
	}
}
