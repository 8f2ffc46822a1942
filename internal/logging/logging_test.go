package logging

import (
	"context"
	"strings"
	"testing"
)

func TestSetLevelParsesKnownNames(t *testing.T) {
	SetLevel("debug")
	if level.Level().String() != "DEBUG" {
		t.Errorf("level = %s, want DEBUG", level.Level())
	}
	SetLevel("bogus")
	if level.Level().String() != "INFO" {
		t.Errorf("level = %s, want INFO fallback", level.Level())
	}
}

func TestToJournalKeyUppercasesAndSanitizes(t *testing.T) {
	got := toJournalKey("page.current-id")
	if got != "PAGE_CURRENT_ID" {
		t.Errorf("toJournalKey = %q", got)
	}
}

func TestWithSpanAttachesToContext(t *testing.T) {
	ctx := WithSpan(context.Background(), "press-1")
	v := ctx.Value(spanKey)
	if v == nil || !strings.Contains(v.(string), "press-1") {
		t.Errorf("span not attached: %v", v)
	}
}
