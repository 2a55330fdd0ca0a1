package cell

import "testing"

func TestListContainerOperationsAreTracked(t *testing.T) {
	g := NewGraph()
	l := NewList(g, 1, 2, 3)

	notifies := 0
	var last []int
	l.Subscribe(func(v []int) { notifies++; last = v })

	l.SetAt(0, 10)
	l.Append(4)
	l.RemoveAt(1)
	l.Update(func(items []int) []int { return append(items, 99) })

	if notifies != 5 { // initial + 4 container mutations
		t.Errorf("expected 5 notifications, got %d", notifies)
	}
	want := []int{10, 3, 4, 99}
	if len(last) != len(want) {
		t.Fatalf("expected %v, got %v", want, last)
	}
	for i := range want {
		if last[i] != want[i] {
			t.Errorf("expected %v, got %v", want, last)
			break
		}
	}
}

func TestSlotValueKindDetaches(t *testing.T) {
	g := NewGraph()
	l := NewList(g, 1, 2, 3)

	notifies := 0
	l.Subscribe(func([]int) { notifies++ })

	slot := l.Slot(1)
	slot.Set(42)

	if !slot.Detached() {
		t.Error("value-kind slot write should detach into a local copy")
	}
	if slot.Get() != 42 {
		t.Errorf("detached slot should read its local copy, got %d", slot.Get())
	}
	if l.At(1) != 2 {
		t.Errorf("container slot must be untouched, got %d", l.At(1))
	}
	if notifies != 1 {
		t.Errorf("value-kind slot write must schedule nothing, got %d notifications", notifies)
	}
}

func TestSlotReferenceKindWritesThrough(t *testing.T) {
	type item struct{ Name string }

	g := NewGraph()
	a, b := &item{"a"}, &item{"b"}
	l := NewList(g, a, b)

	notifies := 0
	l.Subscribe(func([]*item) { notifies++ })

	slot := l.Slot(1)
	c := &item{"c"}
	slot.Set(c)

	if slot.Detached() {
		t.Error("reference-kind slot write should not detach")
	}
	if l.At(1) != c {
		t.Error("reference-kind slot write should reach the container slot")
	}
	if notifies != 2 { // initial + write-through
		t.Errorf("reference-kind slot write should be tracked, got %d notifications", notifies)
	}
}

func TestSlotReadsContainerUntilDetached(t *testing.T) {
	g := NewGraph()
	l := NewList(g, 5, 6)

	slot := l.Slot(0)
	if slot.Get() != 5 {
		t.Errorf("expected 5, got %d", slot.Get())
	}

	l.SetAt(0, 50)
	if slot.Get() != 50 {
		t.Errorf("attached slot should track the container, got %d", slot.Get())
	}
}

func TestListAsDerivedDependency(t *testing.T) {
	g := NewGraph()
	l := NewList(g, 1, 2, 3)

	total := Derive(g, When(l), func() int {
		sum := 0
		for _, v := range l.Get() {
			sum += v
		}
		return sum
	})

	if total.Get() != 6 {
		t.Errorf("expected 6, got %d", total.Get())
	}

	l.Append(4)
	if total.Get() != 10 {
		t.Errorf("expected 10 after append, got %d", total.Get())
	}
}

func TestIsReferenceKind(t *testing.T) {
	if isReferenceKind[int]() {
		t.Error("int should be a value kind")
	}
	if isReferenceKind[struct{ X int }]() {
		t.Error("struct should be a value kind")
	}
	if !isReferenceKind[*int]() {
		t.Error("pointer should be a reference kind")
	}
	if !isReferenceKind[map[string]int]() {
		t.Error("map should be a reference kind")
	}
	if !isReferenceKind[[]int]() {
		t.Error("slice should be a reference kind")
	}
	if !isReferenceKind[any]() {
		t.Error("interface should be a reference kind")
	}
}
