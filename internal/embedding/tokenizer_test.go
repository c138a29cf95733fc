package embedding

import "testing"

func TestWordTokenizer(t *testing.T) {
	tok := &WordTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tok.Tokenize("roll two dice", 8)

	if len(inputIDs) != 8 || len(attentionMask) != 8 || len(tokenTypeIDs) != 8 {
		t.Fatalf("lengths = %d/%d/%d, want 8", len(inputIDs), len(attentionMask), len(tokenTypeIDs))
	}
	if inputIDs[0] != 101 {
		t.Errorf("inputIDs[0] = %d, want [CLS]", inputIDs[0])
	}
	// 3 words then [SEP] at position 4.
	if inputIDs[4] != 102 {
		t.Errorf("inputIDs[4] = %d, want [SEP]", inputIDs[4])
	}
	for i := 0; i <= 4; i++ {
		if attentionMask[i] != 1 {
			t.Errorf("attentionMask[%d] = %d, want 1", i, attentionMask[i])
		}
	}
	for i := 5; i < 8; i++ {
		if attentionMask[i] != 0 {
			t.Errorf("attentionMask[%d] = %d, want 0 (padding)", i, attentionMask[i])
		}
	}
}

func TestWordTokenizer_TruncatesLongInput(t *testing.T) {
	tok := &WordTokenizer{}
	inputIDs, attentionMask, _ := tok.Tokenize("a b c d e f g h i j", 4)

	if len(inputIDs) != 4 {
		t.Fatalf("len = %d, want 4", len(inputIDs))
	}
	if inputIDs[3] != 102 {
		t.Errorf("inputIDs[3] = %d, want [SEP] after truncation", inputIDs[3])
	}
	for i, m := range attentionMask {
		if m != 1 {
			t.Errorf("attentionMask[%d] = %d, want all 1 when full", i, m)
		}
	}
}

func TestWordTokenizer_Deterministic(t *testing.T) {
	tok := &WordTokenizer{}
	a, _, _ := tok.Tokenize("move three spaces", 16)
	b, _, _ := tok.Tokenize("move three spaces", 16)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("token ids differ at %d", i)
		}
	}
}
