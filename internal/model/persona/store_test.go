package persona

import "testing"

func TestSeedHasDefaultPersona(t *testing.T) {
	store := NewMemoryStore(Seed())
	p, ok := store.Find(DefaultID)
	if !ok {
		t.Fatalf("default persona %q missing from seed", DefaultID)
	}
	if p.Instruction != DefaultInstruction {
		t.Fatalf("default persona should use the default instruction")
	}
}

func TestFindByLabel(t *testing.T) {
	store := NewMemoryStore(Seed())
	p, ok := store.Find("NLP 学术专家")
	if !ok {
		t.Fatal("expected to find persona by label")
	}
	if p.ID != "nlp-scholar" {
		t.Fatalf("unexpected persona: %s", p.ID)
	}
}

func TestFindUnknown(t *testing.T) {
	store := NewMemoryStore(Seed())
	if _, ok := store.Find("海盗船长"); ok {
		t.Fatal("expected unknown persona lookup to fail")
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	items := store.List()
	items[0].Label = "changed"
	if store.List()[0].Label == "changed" {
		t.Fatal("List must not expose internal slice")
	}
}
