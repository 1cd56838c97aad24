package cfgfile

import (
	"math"
	"reflect"
	"testing"
)

func TestValue_DefaultInsertedOnce(t *testing.T) {
	s := New()

	got := s.Value("Steve", "distanceOverride", Double(8))
	if !got.Equal(Double(8)) {
		t.Fatalf("first read: got %#v want 8.0", got)
	}
	if v, ok := s.Peek("Steve", "distanceOverride"); !ok || !v.Equal(Double(8)) {
		t.Fatalf("default not stored: %#v ok=%v", v, ok)
	}
	got = s.Value("Steve", "distanceOverride", Double(8))
	if !got.Equal(Double(8)) {
		t.Fatalf("second read: got %#v want 8.0", got)
	}
	got = s.Value("Steve", "distanceOverride", Double(99))
	if !got.Equal(Double(8)) {
		t.Fatalf("third read with other default: got %#v want first default 8.0", got)
	}
}

func TestSection_Materializes(t *testing.T) {
	s := New()
	if s.HasSection("Alex") {
		t.Fatalf("unexpected section before lookup")
	}
	sec := s.Section("Alex")
	if len(sec) != 0 {
		t.Fatalf("new section not empty: %v", sec)
	}
	if !reflect.DeepEqual(s.SectionNames(), []string{"Alex"}) {
		t.Fatalf("names=%v", s.SectionNames())
	}

	// The returned section is live.
	sec["k"] = Int(1)
	if v, ok := s.Peek("Alex", "k"); !ok || !v.Equal(Int(1)) {
		t.Fatalf("section is not live: %#v ok=%v", v, ok)
	}
}

func TestPeek_DoesNotMaterialize(t *testing.T) {
	s := New()
	if _, ok := s.Peek("ghost", "k"); ok {
		t.Fatalf("peek found a value in an empty store")
	}
	if s.Len() != 0 {
		t.Fatalf("peek materialized a section: %v", s.SectionNames())
	}
	if s.DeleteKey("ghost", "k") {
		t.Fatalf("delete reported a missing key as present")
	}
	if s.Len() != 0 {
		t.Fatalf("delete materialized a section: %v", s.SectionNames())
	}
}

func TestReplaceAndDeleteSection(t *testing.T) {
	s := New()
	s.SetValue("p", "a", Int(1))
	s.SetValue("p", "b", Int(2))
	s.ReplaceSection("p", Section{"c": Bool(true)})
	if _, ok := s.Peek("p", "a"); ok {
		t.Fatalf("replace kept old keys")
	}
	if v, _ := s.Peek("p", "c"); !v.Equal(Bool(true)) {
		t.Fatalf("replace lost new key: %#v", v)
	}
	s.ReplaceSection("q", nil)
	if !s.HasSection("q") {
		t.Fatalf("nil replace did not create section")
	}

	s.DeleteSection("p")
	s.DeleteSection("never-existed")
	if !reflect.DeepEqual(s.SectionNames(), []string{"q"}) {
		t.Fatalf("names=%v", s.SectionNames())
	}
}

func TestTypedReaders_Coercion(t *testing.T) {
	s := New()
	s.SetValue("", "x", Double(3.9))
	s.SetValue("", "neg", Double(-3.9))
	s.SetValue("", "n", Int(7))
	s.SetValue("", "name", String("Herobrine"))
	s.SetValue("", "flag", Bool(true))

	if got := s.Int("", "x", 42); got != 3 {
		t.Fatalf("Int(3.9)=%d want 3", got)
	}
	if got := s.Int("", "neg", 42); got != -3 {
		t.Fatalf("Int(-3.9)=%d want -3", got)
	}
	if got := s.Double("", "n", 1.5); got != 7 {
		t.Fatalf("Double(7)=%v want 7", got)
	}
	if got := s.Int("", "name", 42); got != 42 {
		t.Fatalf("Int(string)=%d want default", got)
	}
	if got := s.Double("", "flag", 1.5); got != 1.5 {
		t.Fatalf("Double(bool)=%v want default", got)
	}
	if got := s.Bool("", "n", true); got != true {
		t.Fatalf("Bool(int)=%v want default", got)
	}
	if got := s.Bool("", "flag", false); got != true {
		t.Fatalf("Bool(true)=%v", got)
	}

	if got := s.String("", "x", "d"); got != "3.9" {
		t.Fatalf("String(3.9)=%q", got)
	}
	if got := s.String("", "n", "d"); got != "7" {
		t.Fatalf("String(7)=%q", got)
	}
	if got := s.String("", "flag", "d"); got != "true" {
		t.Fatalf("String(true)=%q", got)
	}

	// Mismatched reads keep the stored value untouched.
	if v, _ := s.Peek("", "name"); !v.Equal(String("Herobrine")) {
		t.Fatalf("typed read overwrote value: %#v", v)
	}
}

func TestTypedReaders_InsertDefault(t *testing.T) {
	s := New()
	if got := s.Int("p", "hits", 5); got != 5 {
		t.Fatalf("Int miss=%d", got)
	}
	if v, ok := s.Peek("p", "hits"); !ok || !v.Equal(Int(5)) {
		t.Fatalf("Int miss did not insert default: %#v ok=%v", v, ok)
	}
	if got := s.String("p", "title", "none"); got != "none" {
		t.Fatalf("String miss=%q", got)
	}
	if v, _ := s.Peek("p", "title"); v.Kind() != KindString {
		t.Fatalf("String miss stored kind %v", v.Kind())
	}
}

func TestTruncDouble_Saturates(t *testing.T) {
	if got := truncDouble(math.NaN()); got != 0 {
		t.Fatalf("NaN -> %d", got)
	}
	if got := truncDouble(math.Inf(1)); got != math.MaxInt64 {
		t.Fatalf("+Inf -> %d", got)
	}
	if got := truncDouble(math.Inf(-1)); got != math.MinInt64 {
		t.Fatalf("-Inf -> %d", got)
	}
}

func TestFormatDouble(t *testing.T) {
	cases := map[float64]string{
		0:       "0.0",
		3:       "3.0",
		4.5:     "4.5",
		-0.25:   "-0.25",
		0.001:   "0.001",
		1e6:     "1000000.0",
		1e7:     "1.0e+07",
		1e21:    "1.0e+21",
		1.5e-10: "1.5e-10",
	}
	for in, want := range cases {
		if got := FormatDouble(in); got != want {
			t.Fatalf("FormatDouble(%v)=%q want %q", in, got, want)
		}
	}
}
