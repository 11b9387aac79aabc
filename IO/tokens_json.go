package IO

import (
	"encoding/json"
	"fmt"
	"os"
)

// TokenFile is the on-disk token schema: one id list per track.
type TokenFile struct {
	IDs [][]int `json:"ids"`
}

// ReadTokensJSON returns the ids of every track in a token file. A file
// without at least one track is malformed.
func ReadTokensJSON(path string) ([][]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFile, path, err)
	}
	if len(tf.IDs) == 0 {
		return nil, fmt.Errorf("%w: %s: no \"ids\" tracks", ErrMalformedFile, path)
	}
	return tf.IDs, nil
}

func WriteTokensJSON(path string, tracks [][]int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(TokenFile{IDs: tracks}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
