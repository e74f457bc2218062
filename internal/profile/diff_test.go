package profile

import (
	"reflect"
	"strings"
	"testing"
)

func TestDiffIdenticalIsNil(t *testing.T) {
	texts := []string{
		"",
		"one line",
		"## Likes\n\n### Jazz\nModal stuff.\n",
	}
	for _, text := range texts {
		if d := Diff(text, text); d != nil {
			t.Errorf("Diff(X, X) must be nil, got %+v for %q", d, text)
		}
	}
}

func TestDiffReorderingIsNil(t *testing.T) {
	last := "alpha\nbeta\ngamma"
	current := "gamma\nalpha\nbeta"

	if d := Diff(last, current); d != nil {
		t.Errorf("permuting lines must yield nil, got %+v", d)
	}
}

func TestDiffAddedAndRemoved(t *testing.T) {
	last := "keep one\ndrop me\nkeep two"
	current := "keep one\nkeep two\nnew line"

	d := Diff(last, current)
	if d == nil {
		t.Fatal("expected a delta")
	}
	if !reflect.DeepEqual(d.Added, []string{"new line"}) {
		t.Errorf("added = %v", d.Added)
	}
	if !reflect.DeepEqual(d.Removed, []string{"drop me"}) {
		t.Errorf("removed = %v", d.Removed)
	}
}

func TestDiffEditedLineShowsAsRemovePlusAdd(t *testing.T) {
	d := Diff("likes ambient music", "likes ambient musics")
	if d == nil {
		t.Fatal("expected a delta")
	}
	if len(d.Added) != 1 || len(d.Removed) != 1 {
		t.Errorf("one-character edit must be one removed + one added, got %+v", d)
	}
}

func TestDiffIgnoresBlankLines(t *testing.T) {
	if d := Diff("a\n\nb", "a\n   \n\nb\n"); d != nil {
		t.Errorf("whitespace-only differences must yield nil, got %+v", d)
	}
}

func TestDiffPreservesRelativeOrder(t *testing.T) {
	last := "r1\ncommon\nr2"
	current := "a1\ncommon\na2"

	d := Diff(last, current)
	if d == nil {
		t.Fatal("expected a delta")
	}
	if !reflect.DeepEqual(d.Added, []string{"a1", "a2"}) {
		t.Errorf("added order = %v", d.Added)
	}
	if !reflect.DeepEqual(d.Removed, []string{"r1", "r2"}) {
		t.Errorf("removed order = %v", d.Removed)
	}
}

func TestPromptSectionFormat(t *testing.T) {
	d := Diff("old taste", "new taste")
	if d == nil {
		t.Fatal("expected a delta")
	}

	section := d.PromptSection()
	if !strings.Contains(section, "Added:\n+ new taste") {
		t.Errorf("missing added block:\n%s", section)
	}
	if !strings.Contains(section, "Removed:\n- old taste") {
		t.Errorf("missing removed block:\n%s", section)
	}
	if strings.Index(section, "Added:") > strings.Index(section, "Removed:") {
		t.Error("added block must precede removed block")
	}
}
