package tokenizer

import (
	"strings"
	"testing"
)

func TestCountTokensEmptyVsNonEmpty(t *testing.T) {
	tok := New(KindCL100K)
	if n := tok.CountTokens(""); n != 0 {
		t.Fatalf("empty string: got %d, want 0", n)
	}
	if n := tok.CountTokens("a"); n < 1 {
		t.Fatalf("non-empty string: got %d, want >= 1", n)
	}
}

func TestCountTokensMultiByte(t *testing.T) {
	tok := New(KindCL100K)
	ascii := strings.Repeat("a", 40)
	multibyte := strings.Repeat("中", 40) // same rune count, 3x the bytes
	if tok.CountTokens(ascii) != tok.CountTokens(multibyte) {
		t.Fatalf("token count should depend on rune count, not byte count")
	}
}

func TestCountTokensForMessagesOverhead(t *testing.T) {
	tok := New(KindHeuristic)
	msgs := []Message{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "hi"}}
	single := tok.CountTokens("hello") + tok.CountTokens("hi")
	withOverhead := tok.CountTokensForMessages(msgs)
	if withOverhead != single+2*perMessageOverhead {
		t.Fatalf("got %d, want %d", withOverhead, single+2*perMessageOverhead)
	}
}

func TestTruncateToBudgetRespectsBudget(t *testing.T) {
	tok := New(KindCL100K)
	text := strings.Repeat("word ", 200)
	for _, budget := range []int{1, 5, 20, 100} {
		slice, cost := tok.TruncateToBudget(text, budget)
		if cost > budget {
			t.Fatalf("budget %d: cost %d exceeds budget", budget, cost)
		}
		if !strings.HasPrefix(text, slice) {
			t.Fatalf("budget %d: result %q is not a prefix of input", budget, slice)
		}
	}
}

func TestTruncateToBudgetUnicodeBoundary(t *testing.T) {
	tok := New(KindCL100K)
	text := strings.Repeat("中文", 100)
	slice, _ := tok.TruncateToBudget(text, 10)
	if !strings.HasPrefix(text, slice) {
		t.Fatalf("result must be a valid prefix of the original text")
	}
	for _, r := range slice {
		_ = r // ranging validates UTF-8 decoding implicitly
	}
}

func TestTruncateToBudgetUnderLimitReturnsWholeText(t *testing.T) {
	tok := New(KindCL100K)
	text := "short text"
	slice, cost := tok.TruncateToBudget(text, 1000)
	if slice != text {
		t.Fatalf("expected unchanged text, got %q", slice)
	}
	if cost != tok.CountTokens(text) {
		t.Fatalf("cost mismatch: got %d want %d", cost, tok.CountTokens(text))
	}
}

func TestUnknownKindFallsBackToHeuristic(t *testing.T) {
	tok := New(Kind("bogus"))
	if tok.Kind() != KindHeuristic {
		t.Fatalf("expected fallback to heuristic, got %s", tok.Kind())
	}
}
