package grammar

import "testing"

func TestParseFilenameKinds(t *testing.T) {
	esc := DefaultEscapes()

	cases := []struct {
		name string
		kind Kind
	}{
		{"PAGE_3;name=home", KindPage},
		{"KEY_2,5;disabled", KindKey},
		{"KEY_ROW_1_COL_2", KindKey},
		{"IMAGE;layer=1", KindImage},
		{"TEXT;line=0;text=hi", KindText},
		{"ON_PRESS;wait=100", KindEvent},
		{"VAR_COLOR;value=red", KindVar},
	}
	for _, c := range cases {
		n, ok := ParseFilename(c.name, esc)
		if !ok {
			t.Fatalf("expected %q to parse", c.name)
		}
		if n.Kind != c.kind {
			t.Errorf("%q: got kind %v, want %v", c.name, n.Kind, c.kind)
		}
	}
}

func TestParseFilenameRejectsMalformed(t *testing.T) {
	esc := DefaultEscapes()
	if _, ok := ParseFilename("NOT_A_KIND", esc); ok {
		t.Error("expected NOT_A_KIND to fail to parse")
	}
	if _, ok := ParseFilename("VAR_FOO_", esc); ok {
		t.Error("trailing underscore variable name must be rejected")
	}
	if _, ok := ParseFilename("IMAGE;=bad", esc); ok {
		t.Error("empty option key must be rejected")
	}
}

func TestBareFlagIsBooleanTrue(t *testing.T) {
	n, ok := ParseFilename("IMAGE;crop", DefaultEscapes())
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if n.Opts["crop"].Scalar != "true" {
		t.Errorf("bare flag should be true, got %q", n.Opts["crop"].Scalar)
	}
}

func TestIndexedSubOptions(t *testing.T) {
	n, ok := ParseFilename("IMAGE;margin.top=5;margin.left=2", DefaultEscapes())
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	v := n.Opts["margin"]
	if !v.IsTuple {
		t.Fatal("expected margin to be recorded as a tuple override")
	}
	if v.Parts["top"] != "5" || v.Parts["left"] != "2" {
		t.Errorf("unexpected parts: %+v", v.Parts)
	}
}

func TestMergeSubOptions(t *testing.T) {
	got := MergeSubOptions("1,2,3,4", map[string]string{"top": "9", "2": "7"})
	want := "9,2,7,4"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	esc := DefaultEscapes()
	raw := `TEXT;text=a^b\\c`
	n, ok := ParseFilename(raw, esc)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if n.Opts["text"].Scalar != "a;b/c" {
		t.Errorf("got %q", n.Opts["text"].Scalar)
	}
}

func TestRoundTripComposeParse(t *testing.T) {
	esc := DefaultEscapes()
	orig := Name{
		Kind: KindKey,
		Main: map[string]string{"row": "1", "col": "2"},
		Opts: map[string]Value{
			"name": {Scalar: "vol-up"},
		},
	}
	filename := ComposeFilename(orig, esc)
	parsed, ok := ParseFilename(filename, esc)
	if !ok {
		t.Fatalf("round-trip parse of %q failed", filename)
	}
	if parsed.Kind != orig.Kind || parsed.Main["row"] != "1" || parsed.Main["col"] != "2" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
	if parsed.Opts["name"].Scalar != "vol-up" {
		t.Errorf("round trip option mismatch: %+v", parsed.Opts)
	}
}
