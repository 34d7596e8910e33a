package settings

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// The most specific layer wins: 2 over the global 10 over the default 5.
func TestMerge_Precedence(t *testing.T) {
	global := Settings{KeyCacheDuration: int64(10)}
	inst := FromAttributes(map[string]string{"cacheDuration": "2"})

	got := Merge(Defaults(), global, inst)
	if d := got.CacheDuration(); d != 2*time.Minute {
		t.Fatalf("CacheDuration = %v, want 2m", d)
	}

	if d := Merge(Defaults(), global).CacheDuration(); d != 10*time.Minute {
		t.Fatalf("without instance layer = %v, want 10m", d)
	}
	if d := Defaults().CacheDuration(); d != 5*time.Minute {
		t.Fatalf("defaults = %v, want 5m", d)
	}
}

// Nested tables merge key by key instead of being replaced wholesale.
func TestMerge_DeepTables(t *testing.T) {
	base := Settings{"layout": map[string]any{"columns": 3.0, "gap": "1rem"}}
	over := Settings{"layout": Settings{"columns": 4.0}, "theme": "dark"}

	got := Merge(base, over)
	want := Settings{
		"layout": map[string]any{"columns": 4.0, "gap": "1rem"},
		"theme":  "dark",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Merge mismatch (-want +got):\n%s", diff)
	}

	// Inputs are left untouched.
	if base["layout"].(map[string]any)["columns"] != 3.0 {
		t.Fatal("Merge mutated its input")
	}
}

func TestFromAttributes(t *testing.T) {
	got := FromAttributes(map[string]string{
		"source":               "/page-a #content",
		"wmPlugin":             "load",
		"cacheDuration":        "2",
		"lazy":                 "true",
		"hidden":               "false",
		"version":              "1.10",
		"ratio":                "1.5",
		"zip":                  "02134x",
		"layout__columns":      "3",
		"layout__gap":          "1rem",
		"metadataBelowTitle":   " Date, AUTHOR ,tags",
		"metadataAboveTitle":   "category",
		"metadataBelowExcerpt": "",
	})
	want := Settings{
		"source":        "/page-a #content",
		"wmPlugin":      "load",
		"cacheDuration": 2.0,
		"lazy":          true,
		"hidden":        false,
		"version":       "1.10",
		"ratio":         1.5,
		"zip":           "02134x",
		"layout": map[string]any{
			"columns": 3.0,
			"gap":     "1rem",
		},
		"metadataBelowTitle":   []string{"date", "author", "tags"},
		"metadataAboveTitle":   []string{"category"},
		"metadataBelowExcerpt": "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromAttributes mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"True", "True"},
		{"42", 42.0},
		{"-0.5", -0.5},
		{"0.25", 0.25},
		{"1.10", "1.10"},
		{"2.0", "2.0"},
		{"05", "05"},
		{"1e3", "1e3"},
		{"0x1p4", "0x1p4"},
		{"+1", "+1"},
		{"12px", "12px"},
		{"", ""},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
	}
	for _, c := range cases {
		if diff := cmp.Diff(c.want, Coerce(c.in)); diff != "" {
			t.Fatalf("Coerce(%q) (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestCacheDuration_Types(t *testing.T) {
	cases := []struct {
		s    Settings
		want time.Duration
	}{
		{Settings{}, 5 * time.Minute},
		{Settings{KeyCacheDuration: 0.5}, 30 * time.Second},
		{Settings{KeyCacheDuration: int64(0)}, 0},
		{Settings{KeyCacheDuration: -1.0}, -time.Minute},
		{Settings{KeyCacheDuration: "3"}, 3 * time.Minute},
		{Settings{KeyCacheDuration: true}, 5 * time.Minute},
		{Settings{KeyCacheDuration: 1e12}, time.Duration(math.MaxInt64)},
		{Settings{KeyCacheDuration: "1e12"}, time.Duration(math.MaxInt64)},
		{Settings{KeyCacheDuration: -1e12}, time.Duration(math.MinInt64)},
	}
	for _, c := range cases {
		if got := c.s.CacheDuration(); got != c.want {
			t.Fatalf("%v: CacheDuration = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestLookupAndTable(t *testing.T) {
	s := Settings{"a": map[string]any{"b": map[string]any{"c": 1.0}}, "x": "y"}
	if v, ok := s.Lookup("a", "b", "c"); !ok || v != 1.0 {
		t.Fatalf("Lookup = %v,%v", v, ok)
	}
	if _, ok := s.Lookup("x", "y"); ok {
		t.Fatal("lookup through a scalar must miss")
	}
	if _, err := s.Table("x"); !errors.Is(err, ErrNotTable) {
		t.Fatalf("Table(x) err = %v", err)
	}
	if tb, err := s.Table("missing"); err != nil || len(tb) != 0 {
		t.Fatalf("Table(missing) = %v,%v", tb, err)
	}
}

func TestDecodeAndLoadFile(t *testing.T) {
	s, err := Decode(strings.NewReader("cacheDuration = 10\n[layout]\ncolumns = 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if d := s.CacheDuration(); d != 10*time.Minute {
		t.Fatalf("CacheDuration = %v", d)
	}
	if v, _ := s.Lookup("layout", "columns"); v != int64(2) {
		t.Fatalf("layout.columns = %#v", v)
	}

	if _, err := Decode(strings.NewReader("cacheDuration = ")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadFile(missing) err = %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte("cacheDuration = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Settings, 8)
	err := Watch(ctx, path, func(s Settings, err error) {
		if err == nil {
			got <- s
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("cacheDuration = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if s.CacheDuration() == 7*time.Minute {
				return
			}
		case <-timeout:
			t.Fatal("no reload observed")
		}
	}
}
