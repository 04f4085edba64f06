package models

import "testing"

func TestFindPlan(t *testing.T) {
	plan, ok := FindPlan("pro")
	if !ok {
		t.Fatalf("expected pro plan to exist")
	}
	if plan.Price != 20 || plan.Credits != 500 {
		t.Fatalf("unexpected pro plan %+v", plan)
	}
}

func TestFindPlanUnknown(t *testing.T) {
	if _, ok := FindPlan("enterprise"); ok {
		t.Fatalf("expected unknown plan to be rejected")
	}
}

func TestPlanCatalog(t *testing.T) {
	if len(Plans) != 3 {
		t.Fatalf("unexpected catalog size %d", len(Plans))
	}
	seen := map[string]bool{}
	for _, p := range Plans {
		if seen[p.ID] {
			t.Fatalf("duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Price <= 0 || p.Credits <= 0 {
			t.Fatalf("plan %q has non-positive price or credits", p.ID)
		}
	}
	for _, id := range []string{"basic", "pro", "premium"} {
		if !seen[id] {
			t.Fatalf("missing plan %q", id)
		}
	}
}
