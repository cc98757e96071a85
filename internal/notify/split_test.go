package notify

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessageShortTextUntouched(t *testing.T) {
	got := splitMessage("короткое сообщение", 4096)
	if len(got) != 1 || got[0] != "короткое сообщение" {
		t.Fatalf("got %#v", got)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(strings.Repeat("я", 50))
		b.WriteString("\n\n")
	}
	text := b.String()

	chunks := splitMessage(text, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 200 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, utf8.RuneCountInString(c))
		}
		// Lines stay whole: every chunk is made of complete 50-rune lines.
		for _, line := range strings.Split(c, "\n") {
			if line != "" && utf8.RuneCountInString(line) != 50 {
				t.Fatalf("chunk %d split a line: %q", i, line)
			}
		}
		if strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d has trailing newline", i)
		}
		if c == "" {
			t.Fatalf("chunk %d is empty", i)
		}
	}

	// Nothing lost: content modulo newlines is preserved.
	joined := strings.ReplaceAll(strings.Join(chunks, ""), "\n", "")
	if joined != strings.ReplaceAll(text, "\n", "") {
		t.Fatal("content lost during split")
	}
}

func TestSplitMessageHardSplitWithoutNewlines(t *testing.T) {
	text := strings.Repeat("ж", 1000)
	chunks := splitMessage(text, 300)
	total := 0
	for i, c := range chunks {
		n := utf8.RuneCountInString(c)
		if n > 300 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
		total += n
	}
	if total != 1000 {
		t.Fatalf("rune count %d, want 1000", total)
	}
}

func TestSplitMessageAvoidsCuttingTags(t *testing.T) {
	line := "текст <b>жирное имя товара которое длиннее обычного</b> хвост"
	text := strings.Repeat(line+"\n", 30)
	for _, c := range splitMessage(text, 120) {
		opens := strings.Count(c, "<")
		closes := strings.Count(c, ">")
		if opens != closes {
			t.Fatalf("chunk splits a tag: %q", c)
		}
	}
}

func TestSplitMessageZeroLimitDefaults(t *testing.T) {
	text := strings.Repeat("a", 5000)
	chunks := splitMessage(text, 0)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (4096 default)", len(chunks))
	}
}
