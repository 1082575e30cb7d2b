package idgen_test

import (
	"strings"
	"testing"

	"github.com/quantumturn/engine/internal/idgen"
)

func TestNew_LengthAndCase(t *testing.T) {
	id, err := idgen.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(id) != 26 {
		t.Errorf("len(id) = %d, want 26", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("id %q is not lowercase", id)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := idgen.New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
