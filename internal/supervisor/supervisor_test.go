package supervisor

import (
	"testing"
	"time"
)

type fakePager struct{ got string }

func (f *fakePager) GoTo(target string) error { f.got = target; return nil }

type fakeVarWriter struct{ calls int }

func (f *fakeVarWriter) WriteVar(scope, dir, name, value string, toFile bool) error {
	f.calls++
	return nil
}

type fakeBrightness struct{ delta bool; value int }

func (f *fakeBrightness) Adjust(delta bool, value int) error {
	f.delta, f.value = delta, value
	return nil
}

func TestPressReleasePlainFires(t *testing.T) {
	spec := Spec{Action: ActionPage, PageTarget: "__next__", Wait: 0}
	r := NewRunner(nil, spec)
	pager := &fakePager{}
	r.Press(pager, nil, nil)
	time.Sleep(20 * time.Millisecond)
	if pager.got != "__next__" {
		t.Errorf("expected page action to fire, got %q", pager.got)
	}
	r.Release(pager, nil, nil, 10*time.Millisecond)
}

func TestDurationMaxCancelsOverlongPress(t *testing.T) {
	spec := Spec{Action: ActionBrightness, BrightnessValue: 10, DurationMax: 30 * time.Millisecond}
	r := NewRunner(nil, spec)
	br := &fakeBrightness{}
	r.Press(nil, nil, br)
	time.Sleep(50 * time.Millisecond)
	if br.value != 0 {
		t.Errorf("expected no fire before release when duration-max armed, got value %d", br.value)
	}
	r.Release(nil, nil, br, 60*time.Millisecond)
	if br.value != 0 {
		t.Errorf("expected fire to be cancelled when held exceeds duration-max")
	}
}

func TestDurationMaxFiresWithinWindow(t *testing.T) {
	spec := Spec{Action: ActionBrightness, BrightnessValue: 25, DurationMax: 200 * time.Millisecond}
	r := NewRunner(nil, spec)
	br := &fakeBrightness{}
	r.Press(nil, nil, br)
	r.Release(nil, nil, br, 50*time.Millisecond)
	if br.value != 25 {
		t.Errorf("expected fire on release within duration-max, got %d", br.value)
	}
}

func TestFireOnReleaseFiresAtReleaseEdgeNotPress(t *testing.T) {
	spec := Spec{Action: ActionBrightness, BrightnessValue: 42}
	r := NewRunner(nil, spec)
	br := &fakeBrightness{}
	// A release-kind runner never arms on press.
	if br.value != 0 {
		t.Fatalf("expected no fire before release, got %d", br.value)
	}
	r.FireOnRelease(nil, nil, br, 10*time.Millisecond)
	if br.value != 42 {
		t.Errorf("expected fire at the release edge, got %d", br.value)
	}
}

func TestFireOnReleaseGatedByDurationMin(t *testing.T) {
	spec := Spec{Action: ActionBrightness, BrightnessValue: 42, DurationMin: 200 * time.Millisecond}
	r := NewRunner(nil, spec)
	br := &fakeBrightness{}
	r.FireOnRelease(nil, nil, br, 50*time.Millisecond)
	if br.value != 0 {
		t.Errorf("expected no fire when held < duration-min, got %d", br.value)
	}

	r2 := NewRunner(nil, spec)
	br2 := &fakeBrightness{}
	r2.FireOnRelease(nil, nil, br2, 250*time.Millisecond)
	if br2.value != 42 {
		t.Errorf("expected fire when held >= duration-min, got %d", br2.value)
	}
}

func TestParsePageSpecOption(t *testing.T) {
	if delta, v := ParsePageSpecOption("+10"); !delta || v != 10 {
		t.Errorf("got delta=%v v=%d", delta, v)
	}
	if delta, v := ParsePageSpecOption("60"); delta || v != 60 {
		t.Errorf("got delta=%v v=%d", delta, v)
	}
}
