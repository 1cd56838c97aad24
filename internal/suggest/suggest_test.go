package suggest

import (
	"reflect"
	"testing"

	"scarify.ai/internal/cfgfile"
	"scarify.ai/internal/scarify"
)

func testRegistry() *scarify.Registry {
	store := cfgfile.ParseString("motd=\"hi\"\n[Herobrine]\ndistanceOverride=20.0\n[Notch]\n", nil)
	return scarify.New(store, "", nil)
}

func TestProvider_Modes(t *testing.T) {
	reg := testRegistry()
	online := []string{"Steve", "Alex", "Notch"}

	cases := []struct {
		name   string
		p      *Provider
		prefix string
		want   []string
	}{
		{"world only", New().SearchInWorld(), "", []string{"Alex", "Notch", "Steve"}},
		{"world minus known", New().SearchInWorld().ExcludeKnown(reg), "", []string{"Alex", "Steve"}},
		{"known only", New().SearchKnown(reg), "", []string{"Herobrine", "Notch"}},
		{"world plus known", New().SearchInWorld().SearchKnown(reg), "", []string{"Alex", "Herobrine", "Notch", "Steve"}},
		{"known with key", New().SearchKnown(reg).CheckForKey(scarify.KeyDistanceOverride), "", []string{"Herobrine"}},
		{"prefix is case-insensitive", New().SearchInWorld().SearchKnown(reg), "he", []string{"Herobrine"}},
		{"nothing configured", New(), "", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.p.Suggest(online, tc.prefix)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestProvider_KeyCheckDoesNotMaterialize(t *testing.T) {
	reg := testRegistry()
	before := reg.Store().SectionNames()
	_ = New().SearchInWorld().SearchKnown(reg).CheckForKey(scarify.KeyDistanceOverride).Suggest([]string{"Steve"}, "")
	if after := reg.Store().SectionNames(); !reflect.DeepEqual(before, after) {
		t.Fatalf("suggestions changed the store: %v -> %v", before, after)
	}
}
