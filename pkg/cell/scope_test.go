package cell

import "testing"

func TestScopeTrackedAssignmentSchedulesRender(t *testing.T) {
	g := NewGraph()
	s := NewScope(g, nil)
	s.Declare("count", 0)

	s.Assign("count", 1)
	if s.Renders() != 1 {
		t.Errorf("expected 1 render after tracked assignment, got %d", s.Renders())
	}

	// Assignment is what triggers, not value difference.
	s.Assign("count", 1)
	if s.Renders() != 2 {
		t.Errorf("expected a render per assignment, got %d", s.Renders())
	}
}

func TestScopeBatchCoalescesRenders(t *testing.T) {
	g := NewGraph()
	s := NewScope(g, nil)
	s.Declare("a", 0)
	s.Declare("b", 0)

	g.Batch(func() {
		s.Assign("a", 1)
		s.Assign("a", 2)
		s.Assign("b", 3)
	})

	if s.Renders() != 1 {
		t.Errorf("expected one re-render per flush regardless of assignment count, got %d", s.Renders())
	}
}

func TestScopeShadowAssignmentIsSilent(t *testing.T) {
	g := NewGraph()
	s := NewScope(g, nil)
	s.Declare("count", 1)

	block := s.Child()
	block.Declare("count", 10) // shadows the outer binding

	block.Assign("count", 99)
	if s.Renders() != 0 {
		t.Errorf("shadow assignment must not schedule a re-render, got %d", s.Renders())
	}

	if v, _ := block.Lookup("count"); v != 99 {
		t.Errorf("inner lookup should see the shadow value, got %v", v)
	}
	if v, _ := s.Lookup("count"); v != 1 {
		t.Errorf("outer binding must be untouched by the shadow, got %v", v)
	}
}

func TestScopeChildAssignResolvesOuter(t *testing.T) {
	g := NewGraph()
	s := NewScope(g, nil)
	s.Declare("count", 0)

	block := s.Child() // no shadow declared: assignment resolves outward

	block.Assign("count", 5)
	if s.Renders() != 1 {
		t.Errorf("assignment resolving to a tracked outer binding should render, got %d", s.Renders())
	}
	if v, _ := s.Lookup("count"); v != 5 {
		t.Errorf("expected outer binding updated to 5, got %v", v)
	}
}

func TestScopeAssignUnknownName(t *testing.T) {
	g := NewGraph()
	s := NewScope(g, nil)

	if s.Assign("missing", 1) {
		t.Error("assigning an undeclared name should report false")
	}
	if _, ok := s.Lookup("missing"); ok {
		t.Error("lookup of an undeclared name should report false")
	}
}

func TestScopeAliasedMutationDoesNotRetrigger(t *testing.T) {
	type box struct{ N int }

	g := NewGraph()
	s := NewScope(g, nil)

	b := &box{N: 1}
	s.Declare("box", b)
	if s.Renders() != 0 {
		t.Fatalf("declare should not render, got %d", s.Renders())
	}

	// Mutating through a retained alias is invisible to the scope.
	b.N = 42
	if s.Renders() != 0 {
		t.Errorf("aliased mutation must not schedule a re-render, got %d", s.Renders())
	}

	// Reassigning the binding itself is what retriggers.
	s.Assign("box", b)
	if s.Renders() != 1 {
		t.Errorf("reassignment should schedule a re-render, got %d", s.Renders())
	}
}

func TestScopeRenderCallback(t *testing.T) {
	g := NewGraph()

	var rendered []int
	var s *Scope
	s = NewScope(g, func() {
		v, _ := s.Lookup("count")
		rendered = append(rendered, v.(int))
	})
	s.Declare("count", 0)

	s.Assign("count", 1)
	s.Assign("count", 2)

	if len(rendered) != 2 || rendered[0] != 1 || rendered[1] != 2 {
		t.Errorf("render should observe committed values, got %v", rendered)
	}
}

func TestScopeBindingSubscribe(t *testing.T) {
	g := NewGraph()
	s := NewScope(g, nil)
	s.Declare("count", 0)

	c, ok := s.Binding("count")
	if !ok {
		t.Fatal("expected tracked binding to expose its cell")
	}

	var got []any
	c.Subscribe(func(v any) { got = append(got, v) })

	s.Assign("count", 7)
	if len(got) != 2 || got[1] != 7 {
		t.Errorf("expected binding subscription to observe assignments, got %v", got)
	}

	block := s.Child()
	block.Declare("shadow", 0)
	if _, ok := block.Binding("shadow"); ok {
		t.Error("shadows must not expose a cell")
	}
}
