package backend

import (
	"reflect"
	"testing"
)

func TestSortVersions(t *testing.T) {
	vs := []string{"v1.9", "v1.10", "0.2.0", "latest", "v2"}
	SortVersions(vs)

	want := []string{"v2", "v1.10", "v1.9", "0.2.0", "latest"}
	if !reflect.DeepEqual(vs, want) {
		t.Fatalf("got %v, want %v", vs, want)
	}
}

func TestGroupSystems(t *testing.T) {
	systems := GroupSystems([][2]string{
		{"polymer", "0.0.1"},
		{"uncharted", "1.0"},
		{"polymer", "0.0.10"},
	})

	if v, ok := Latest(systems, "polymer"); !ok || v != "0.0.10" {
		t.Fatalf("Latest(polymer) = %q, %v", v, ok)
	}
	if _, ok := Latest(systems, "missing"); ok {
		t.Fatal("Latest(missing) should be false")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		label, abbr, want string
	}{
		{"fault_line", "", "Fault Line"},
		{"", "STRIKE-dip", "Strike Dip"},
		{"", "", "Unknown"},
		{"sample  site", "x", "Sample Site"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.label, tt.abbr); got != tt.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.label, tt.abbr, got, tt.want)
		}
	}
}
