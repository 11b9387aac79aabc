package IO

import (
	"encoding/json"
	"os"
	"strings"
)

// Vocabulary is the readable id <-> token mapping written next to the shards.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// BuildVocabulary names every id of tok.
func BuildVocabulary(tok Tokenizer) Vocabulary {
	v := Vocabulary{TokenToID: map[string]int{}, IDToToken: make([]string, tok.VocabSize())}
	for id := range v.IDToToken {
		name := tok.Token(id)
		v.IDToToken[id] = name
		v.TokenToID[name] = id
	}
	return v
}

// Token joins the base token names of a BPE piece with "+".
func (b *BPE) Token(id int) string {
	if id < 0 || id >= len(b.pieces) || b.pieces[id] == nil {
		return b.base.Token(-1)
	}
	names := make([]string, len(b.pieces[id]))
	for i, base := range b.pieces[id] {
		names[i] = b.base.Token(base)
	}
	return strings.Join(names, "+")
}

func ExportVocabJSON(path string, v Vocabulary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	data := map[string]any{
		"TokenToID": v.TokenToID,
		"IDToToken": v.IDToToken,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
