package storage

import "testing"

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := CosineSimilarity(a, b); sim < 0.999 {
		t.Fatalf("expected identical vectors to score ~1, got %v", sim)
	}
	orthogonal := []float32{0, 1, 0}
	if sim := CosineSimilarity(a, orthogonal); sim > 0.001 {
		t.Fatalf("expected orthogonal vectors to score ~0, got %v", sim)
	}
}

func TestCosineSimilarityMismatchedLengthReturnsZero(t *testing.T) {
	if sim := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); sim != 0 {
		t.Fatalf("expected 0 for mismatched lengths, got %v", sim)
	}
}

func TestTermOverlapScore(t *testing.T) {
	terms := TokenizeForScoring("find the config file")
	if score := TermOverlapScore("the config file lives in /etc", terms); score <= 0 {
		t.Fatalf("expected positive overlap score, got %v", score)
	}
	if score := TermOverlapScore("completely unrelated text", terms); score >= 0.5 {
		t.Fatalf("expected low overlap score for unrelated content, got %v", score)
	}
}

func TestTermOverlapScoreNoTerms(t *testing.T) {
	if score := TermOverlapScore("anything", nil); score != 0 {
		t.Fatalf("expected 0 for no terms, got %v", score)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	original := []float32{0.1, -0.2, 3.5, 0}
	encoded := EncodeEmbedding(original)
	decoded := DecodeEmbedding(encoded)
	if len(decoded) != len(original) {
		t.Fatalf("expected %d floats, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("expected %v at index %d, got %v", original[i], i, decoded[i])
		}
	}
}
