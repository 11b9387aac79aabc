package IO

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestExportVocabJSON(t *testing.T) {
	tok := newTestTokenizer(t)
	v := BuildVocabulary(tok)
	if len(v.IDToToken) != tok.VocabSize() || len(v.TokenToID) != tok.VocabSize() {
		t.Fatalf("names are not unique: %d ids, %d names", len(v.IDToToken), len(v.TokenToID))
	}
	if v.TokenToID["NoteOn_60"] != 4+60-21 {
		t.Fatalf("NoteOn_60 = %d", v.TokenToID["NoteOn_60"])
	}
	p := filepath.Join(t.TempDir(), "vocab.json")
	if err := ExportVocabJSON(p, v); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	var back struct {
		TokenToID map[string]int
		IDToToken []string
	}
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.IDToToken[1] != "BOS" || back.TokenToID["PAD"] != 0 {
		t.Fatalf("unexpected content")
	}
}
