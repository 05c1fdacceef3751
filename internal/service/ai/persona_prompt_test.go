package ai

import (
	"testing"

	"github.com/zhouzirui/z-analyst/backend/internal/model/persona"
)

func TestLookupEveryPersona(t *testing.T) {
	seeds := persona.Seed()
	registry := NewPromptRegistry(persona.NewMemoryStore(seeds))

	for _, p := range seeds {
		if got := registry.Lookup(p.ID); got == "" || got != p.Instruction {
			t.Fatalf("lookup by id %q returned %q", p.ID, got)
		}
		if got := registry.Lookup(p.Label); got != p.Instruction {
			t.Fatalf("lookup by label %q returned %q", p.Label, got)
		}
	}
}

func TestLookupUnknownFallsBack(t *testing.T) {
	registry := NewPromptRegistry(persona.NewMemoryStore(persona.Seed()))
	for _, key := range []string{"", "pirate", "nlp 学术专家"} {
		if got := registry.Lookup(key); got != persona.DefaultInstruction {
			t.Fatalf("expected default instruction for %q, got %q", key, got)
		}
	}
}

func TestLookupNilRegistry(t *testing.T) {
	var registry *PromptRegistry
	if got := registry.Lookup("nlp-scholar"); got != persona.DefaultInstruction {
		t.Fatalf("nil registry should fall back, got %q", got)
	}
	if got := NewPromptRegistry(nil).Lookup("nlp-scholar"); got != persona.DefaultInstruction {
		t.Fatalf("empty registry should fall back, got %q", got)
	}
}
