package expr

import "testing"

func noVars(name string, idx *int, lineCount bool) (Value, bool) { return Value{}, false }

func TestArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"1 + 2", "3"},
		{"7 % 2", "1"},
		{"7 || 2", "3"},
		{"1 / 2", "0.5"},
		{"2 * 3 + 1", "7"},
		{"\"a\" + \"b\"", "ab"},
		{"1 < 2", "true"},
		{"1 == 1.0", "true"},
		{"not true", "false"},
		{"true and false", "false"},
		{"true or false", "true"},
		{"\"ell\" in \"hello\"", "true"},
	}
	for _, c := range cases {
		v, err := Eval(c.expr, noVars)
		if err != nil {
			t.Fatalf("%s: %v", c.expr, err)
		}
		if v.AsString() != c.want {
			t.Errorf("%s: got %s, want %s", c.expr, v.AsString(), c.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0", noVars); err == nil {
		t.Error("expected division by zero error")
	}
}

func TestUnknownIdentifier(t *testing.T) {
	if _, err := Eval("nope", noVars); err == nil {
		t.Error("expected unknown identifier error")
	}
}

func TestFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"round(2.6)", "3"},
		{"min(3, 1, 2)", "1"},
		{"max(3, 1, 2)", "3"},
		{"if(1 == 1, \"a\", \"b\")", "a"},
		{"if(1 == 2, \"a\", \"b\")", "b"},
		{"format(2, \"02\")", "02"},
		{"int(\"42\")", "42"},
		{"str(42)", "42"},
	}
	for _, c := range cases {
		v, err := Eval(c.expr, noVars)
		if err != nil {
			t.Fatalf("%s: %v", c.expr, err)
		}
		if v.AsString() != c.want {
			t.Errorf("%s: got %s, want %s", c.expr, v.AsString(), c.want)
		}
	}
}

func TestInterpolateBraceAndDollar(t *testing.T) {
	lookup := func(name string, idx *int, lineCount bool) (Value, bool) {
		switch name {
		case "X":
			return Int(5), true
		case "MULTI":
			if lineCount {
				return Int(3), true
			}
			if idx != nil {
				return Str([]string{"a", "b", "c"}[*idx]), true
			}
			return Str("a\nb\nc"), true
		}
		return Value{}, false
	}
	out, err := Interpolate("val={$X + 1}", lookup)
	if err != nil {
		t.Fatal(err)
	}
	if out != "val=6" {
		t.Errorf("got %q", out)
	}

	out2, err := Interpolate("$MULTI[1]/{$MULTI[#]}", lookup)
	if err != nil {
		t.Fatal(err)
	}
	if out2 != "b/3" {
		t.Errorf("got %q", out2)
	}
}

func TestInterpolateUnresolvedVariable(t *testing.T) {
	if _, err := Interpolate("$NOPE", noVars); err == nil {
		t.Error("expected unresolved variable error")
	}
}
