package ai

import (
	"strings"

	"github.com/zhouzirui/z-analyst/backend/internal/model/persona"
)

// PromptRegistry maps a persona key (identifier or display label) to its system
// instruction.
type PromptRegistry struct {
	templates map[string]string
}

// NewPromptRegistry indexes every persona in the store by ID and by label.
func NewPromptRegistry(personas persona.Store) *PromptRegistry {
	registry := &PromptRegistry{templates: make(map[string]string)}
	if personas == nil {
		return registry
	}
	for _, p := range personas.List() {
		if p.Instruction == "" {
			continue
		}
		registry.templates[p.ID] = p.Instruction
		registry.templates[p.Label] = p.Instruction
	}
	return registry
}

// Lookup never fails: unknown keys get persona.DefaultInstruction.
func (r *PromptRegistry) Lookup(key string) string {
	if r != nil {
		if instruction, ok := r.templates[strings.TrimSpace(key)]; ok {
			return instruction
		}
	}
	return persona.DefaultInstruction
}

// DocumentInstruction is the fixed system turn for document-grounded questions.
func (r *PromptRegistry) DocumentInstruction() string {
	return persona.DocumentInstruction
}
