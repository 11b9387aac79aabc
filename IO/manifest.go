package IO

import (
	"encoding/json"
	"os"
	"time"

	"github.com/manningwu07/MidiGPT/params"
)

type SplitInfo struct {
	Prefix  string `json:"prefix"`
	Samples int    `json:"samples"`
	Shards  int    `json:"shards"`
}

// Manifest describes an export for the trainer.
type Manifest struct {
	RunID       string                 `json:"run_id"`
	CreatedAt   time.Time              `json:"created_at"`
	VocabSize   int                    `json:"vocab_size"`
	PadID       int                    `json:"pad_id"`
	BOSID       int                    `json:"bos_id"`
	EOSID       int                    `json:"eos_id"`
	IgnoreIndex int                    `json:"ignore_index"`
	MinSeqLen   int                    `json:"min_seq_len"`
	MaxSeqLen   int                    `json:"max_seq_len"`
	Sources     int                    `json:"sources"`
	Skipped     int                    `json:"skipped"`
	Tokenizer   params.TokenizerConfig `json:"tokenizer"`
	Model       params.ModelConfig     `json:"model"`
	Training    params.TrainingConfig  `json:"training"`
	Train       SplitInfo              `json:"train"`
	Val         SplitInfo              `json:"val"`
}

func WriteManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	f, err := os.Open(path)
	if err != nil {
		return m, err
	}
	defer f.Close()
	err = json.NewDecoder(f).Decode(&m)
	return m, err
}
