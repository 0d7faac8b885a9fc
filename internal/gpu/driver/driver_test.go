package driver

import "testing"

type stub struct{ name string }

func (s stub) Name() string                   { return s.name }
func (s stub) Language() Language             { return LanguageGo }
func (s stub) Platforms() ([]Platform, error) { return nil, nil }

func TestDriversOrderedByPriority(t *testing.T) {
	Register("test-late", 50, stub{"test-late"})
	Register("test-early", -50, stub{"test-early"})
	Register("test-tie", 50, stub{"test-tie"})
	defer func() {
		Unregister("test-late")
		Unregister("test-early")
		Unregister("test-tie")
	}()

	var got []string
	for _, d := range Drivers() {
		got = append(got, d.Name())
	}
	want := []string{"test-early", "test-late", "test-tie"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}

	if _, ok := Lookup("test-early"); !ok {
		t.Error("Lookup failed for a registered driver")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("test-dup", 0, stub{"test-dup"})
	defer Unregister("test-dup")
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	Register("test-dup", 0, stub{"test-dup"})
}

func TestNDRange(t *testing.T) {
	nd := NDRange{Global: []int{4, 8}, Local: []int{2, 2}}
	if nd.Items() != 32 || nd.Dims() != 2 {
		t.Errorf("Unexpected geometry %d items, %d dims", nd.Items(), nd.Dims())
	}
	if nd.String() == "" {
		t.Error("Empty String")
	}
}
