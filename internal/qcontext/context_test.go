package qcontext

import "testing"

// ExtensionWith must chain string representations with a hyphen, and
// leave the parent context untouched (contexts are immutable values).
func TestContext_ExtensionWithChainsStringRep(t *testing.T) {
	root := Root()
	if root.AsStr() != "" {
		t.Fatalf("expected the root context to have an empty string form, got %q", root.AsStr())
	}
	c1 := root.ExtensionWith(FilterInner)
	if c1.AsStr() != "FilterInner" {
		t.Errorf("expected %q, got %q", "FilterInner", c1.AsStr())
	}
	c2 := c1.ExtensionWith(Exists)
	if c2.AsStr() != "FilterInner-Exists" {
		t.Errorf("expected %q, got %q", "FilterInner-Exists", c2.AsStr())
	}
	if root.AsStr() != "" {
		t.Error("expected extending c1 to leave root unchanged")
	}
}

// Contains must find an entry anywhere on the path, not just at the tip.
func TestContext_Contains(t *testing.T) {
	ctx := Root().ExtensionWith(FilterInner).ExtensionWith(Exists)
	if !ctx.Contains(FilterInner) {
		t.Error("expected Contains to find FilterInner on the path")
	}
	if ctx.Contains(GroupInner) {
		t.Error("expected Contains to not find an entry never appended")
	}
}

// FromPath must reconstruct the same context ExtensionWith would, applied
// one entry at a time.
func TestContext_FromPathMatchesExtensionWith(t *testing.T) {
	built := Root().ExtensionWith(FilterInner).ExtensionWith(FilterExpression)
	fromPath := FromPath([]PathEntry{FilterInner, FilterExpression})
	if !built.Equal(fromPath) {
		t.Errorf("expected FromPath to match chained ExtensionWith, got %q vs %q", fromPath.AsStr(), built.AsStr())
	}
}

// Two identical contexts are always in scope of each other; InScope at a
// shared prefix requires every diverging entry on the left to expose
// variables downward.
func TestContext_InScope_IdenticalAlwaysInScope(t *testing.T) {
	ctx := Root().ExtensionWith(FilterInner)
	if !ctx.InScope(ctx, false) {
		t.Error("expected a context to always be in scope of itself")
	}
}

// Equivalent requires the same variable name even when both contexts
// spell an identical FilterExpression-Exists path.
func TestVariableInContext_Equivalent_RequiresSameName(t *testing.T) {
	left := Root().ExtensionWith(FilterExpression).ExtensionWith(Exists)
	right := Root().ExtensionWith(FilterExpression).ExtensionWith(Exists)
	vc := NewVariableInContext(NewVariable("x"), left)
	// Even though both sides spell "Exists" identically, this asserts the
	// same-name check: a variable of a different name is never equivalent.
	if vc.Equivalent(NewVariable("y"), right) {
		t.Error("expected Equivalent to require the same variable name")
	}
	if !vc.SameName(NewVariable("x")) {
		t.Error("expected SameName to match on identical variable names")
	}
}

// PathEntry.String renders an indexed entry as Kind(idx).
func TestPathEntry_StringRendersIndex(t *testing.T) {
	e := InRight(3)
	if e.String() != "InRight(3)" {
		t.Errorf("expected %q, got %q", "InRight(3)", e.String())
	}
	if FilterInner.String() != "FilterInner" {
		t.Errorf("expected a non-indexed entry to render bare, got %q", FilterInner.String())
	}
}
