package params

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig marks a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// IgnoreIndex is the label value the loss skips (out of vocabulary).
const IgnoreIndex = -100

type Config struct {
	Data       DataConfig       `json:"data"`
	Tokenizer  TokenizerConfig  `json:"tokenizer"`
	Model      ModelConfig      `json:"model"`
	Training   TrainingConfig   `json:"training"`
	Generation GenerationConfig `json:"generation"`
	Server     ServerConfig     `json:"server"`
	Logging    Logging          `json:"logging"`
}

// DataConfig controls discovery, windowing and splitting.
type DataConfig struct {
	SourceDir     string   `json:"source_dir"`     // root searched for sources
	Patterns      []string `json:"patterns"`       // filepathx globs relative to SourceDir
	OutDir        string   `json:"out_dir"`        // shards + manifest.json
	MinSeqLen     int      `json:"min_seq_len"`    // shortest window kept
	MaxSeqLen     int      `json:"max_seq_len"`    // window length
	ValFrac       float64  `json:"val_frac"`       // fraction held out for validation
	Seed          uint64   `json:"seed"`           // split + shuffle seed
	MaxShardBytes int64    `json:"max_shard_bytes"`
	SkipMalformed bool     `json:"skip_malformed"` // warn and continue instead of aborting
}

// TokenizerConfig describes the MIDILike base vocabulary. SpecialTokens
// are placed first, in order; the first four are PAD, BOS, EOS and MASK.
type TokenizerConfig struct {
	SpecialTokens []string `json:"special_tokens"`
	PitchLow      int      `json:"pitch_low"`  // inclusive
	PitchHigh     int      `json:"pitch_high"` // exclusive
	NumVelocities int      `json:"num_velocities"`
	BeatRes       int      `json:"beat_res"`        // time steps per quarter note
	MaxShiftBeats int      `json:"max_shift_beats"` // longest single TimeShift
	BPEPath       string   `json:"bpe_path"`        // tokenizer.json, or a directory holding vocab.json + merges.txt
	BPEVocabSize  int      `json:"bpe_vocab_size"`  // >0 trains into BPEPath at export when it is missing
}

// ModelConfig is passed through to the trainer. VocabSize is filled from
// the tokenizer at export time.
type ModelConfig struct {
	DModel       int `json:"d_model"`     // model width
	HiddenSize   int `json:"hidden_size"` // MLP hidden
	VocabSize    int `json:"vocab_size"`  // |V|
	NumHeads     int `json:"num_heads"`   // attention heads
	Layers       int `json:"layers"`
	MaxPositions int `json:"max_positions"` // context length
}

type TrainingConfig struct {
	BatchSize       int     `json:"batch_size"`      // per device
	EvalBatchSize   int     `json:"eval_batch_size"` // per device
	GradAccumSteps  int     `json:"grad_accum_steps"`
	LearningRate    float64 `json:"learning_rate"`
	WeightDecay     float64 `json:"weight_decay"` // AdamW-style; 0 disables
	GradClip        float64 `json:"grad_clip"`    // <=0 disables
	MaxSteps        int     `json:"max_steps"`
	WarmupRatio     float64 `json:"warmup_ratio"`
	LRScheduler     string  `json:"lr_scheduler"` // cosine_with_restarts | cosine | linear
	EvalEverySteps  int     `json:"eval_every_steps"`
	LogEverySteps   int     `json:"log_every_steps"`
	SaveEverySteps  int     `json:"save_every_steps"` // checkpoint every N optimizer steps (0=disable)
	SaveTotalLimit  int     `json:"save_total_limit"`
	Patience        int     `json:"patience"` // early stopping, in evaluations
	Seed            int     `json:"seed"`
	MixedPrecision  bool    `json:"mixed_precision"`
	GradCheckpoints bool    `json:"grad_checkpoints"`
}

// GenerationConfig is sent with every /generate request.
type GenerationConfig struct {
	ResultsDir        string  `json:"results_dir"`
	BatchSize         int     `json:"batch_size"`
	MaxPromptLen      int     `json:"max_prompt_len"` // prompts are cut to their last N tokens; 0 keeps all
	MaxNewTokens      int     `json:"max_new_tokens"`
	NumBeams          int     `json:"num_beams"`
	DoSample          bool    `json:"do_sample"`
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p"`
	EpsilonCutoff     float64 `json:"epsilon_cutoff"`
	EtaCutoff         float64 `json:"eta_cutoff"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	Limit             int     `json:"limit"` // stop after N prompts; 0 = whole split
}

type ServerConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type Logging struct {
	Level string `json:"level"` // debug | info | warn | error
}

// Defaults returns the configuration used when no JSON override is given.
func Defaults() Config {
	return Config{
		Data: DataConfig{
			SourceDir:     "../data/midi",
			Patterns:      []string{"**/*.mid", "**/*.midi", "**/*.json"},
			OutDir:        "../data/tokens",
			MinSeqLen:     256,
			MaxSeqLen:     1024,
			ValFrac:       0.3,
			Seed:          444,
			MaxShardBytes: 2 * 1024 * 1024 * 1024, // 2GB per shard
		},
		Tokenizer: TokenizerConfig{
			SpecialTokens: []string{"PAD", "BOS", "EOS", "MASK"},
			PitchLow:      21,
			PitchHigh:     109,
			NumVelocities: 32,
			BeatRes:       8,
			MaxShiftBeats: 4,
			BPEPath:       "../data/bpe",
		},
		Model: ModelConfig{
			DModel:       512,
			HiddenSize:   2048,
			NumHeads:     8, // dHead = DModel/NumHeads
			Layers:       8,
			MaxPositions: 8192,
		},
		Training: TrainingConfig{
			BatchSize:       16,
			EvalBatchSize:   24,
			GradAccumSteps:  3,
			LearningRate:    1e-4,
			WeightDecay:     0.01,
			GradClip:        3.0,
			MaxSteps:        20_000,
			WarmupRatio:     0.3,
			LRScheduler:     "cosine_with_restarts",
			EvalEverySteps:  1000,
			LogEverySteps:   20,
			SaveEverySteps:  1000,
			SaveTotalLimit:  5,
			Patience:        5,
			Seed:            444,
			MixedPrecision:  true,
			GradCheckpoints: true,
		},
		Generation: GenerationConfig{
			ResultsDir:        "../data/gen_res",
			BatchSize:         4,
			MaxNewTokens:      200,
			NumBeams:          1,
			DoSample:          true,
			Temperature:       0.9,
			TopK:              15,
			TopP:              0.95,
			EpsilonCutoff:     3e-4,
			EtaCutoff:         1e-3,
			RepetitionPenalty: 1.0,
		},
		Server: ServerConfig{
			URL:            "http://127.0.0.1:8000",
			TimeoutSeconds: 300,
		},
		Logging: Logging{Level: "info"},
	}
}

// Validate reports the first unusable field.
func (c Config) Validate() error {
	d := c.Data
	switch {
	case d.MinSeqLen <= 0:
		return fmt.Errorf("%w: data.min_seq_len must be > 0, got %d", ErrInvalidConfig, d.MinSeqLen)
	case d.MaxSeqLen < d.MinSeqLen:
		return fmt.Errorf("%w: data.max_seq_len %d < min_seq_len %d", ErrInvalidConfig, d.MaxSeqLen, d.MinSeqLen)
	case d.ValFrac < 0 || d.ValFrac >= 1:
		return fmt.Errorf("%w: data.val_frac must be in [0,1), got %g", ErrInvalidConfig, d.ValFrac)
	case d.MaxShardBytes <= 0:
		return fmt.Errorf("%w: data.max_shard_bytes must be > 0", ErrInvalidConfig)
	case len(d.Patterns) == 0:
		return fmt.Errorf("%w: data.patterns is empty", ErrInvalidConfig)
	}
	if err := c.Tokenizer.Validate(); err != nil {
		return err
	}
	m := c.Model
	if m.NumHeads <= 0 || m.DModel%m.NumHeads != 0 {
		return fmt.Errorf("%w: model.d_model %d not divisible by num_heads %d", ErrInvalidConfig, m.DModel, m.NumHeads)
	}
	if m.MaxPositions < d.MaxSeqLen {
		return fmt.Errorf("%w: model.max_positions %d < data.max_seq_len %d", ErrInvalidConfig, m.MaxPositions, d.MaxSeqLen)
	}
	t := c.Training
	if t.BatchSize <= 0 || t.EvalBatchSize <= 0 || t.GradAccumSteps <= 0 {
		return fmt.Errorf("%w: training batch sizes and grad_accum_steps must be > 0", ErrInvalidConfig)
	}
	if t.WarmupRatio < 0 || t.WarmupRatio > 1 {
		return fmt.Errorf("%w: training.warmup_ratio must be in [0,1], got %g", ErrInvalidConfig, t.WarmupRatio)
	}
	switch t.LRScheduler {
	case "cosine_with_restarts", "cosine", "linear":
	default:
		return fmt.Errorf("%w: unknown training.lr_scheduler %q", ErrInvalidConfig, t.LRScheduler)
	}
	g := c.Generation
	if g.BatchSize <= 0 || g.MaxNewTokens <= 0 || g.NumBeams <= 0 {
		return fmt.Errorf("%w: generation batch_size, max_new_tokens and num_beams must be > 0", ErrInvalidConfig)
	}
	if g.MaxPromptLen < 0 || g.Limit < 0 {
		return fmt.Errorf("%w: generation.max_prompt_len and limit must be >= 0", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("%w: server.url is empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

func (t TokenizerConfig) Validate() error {
	switch {
	case len(t.SpecialTokens) < 4:
		return fmt.Errorf("%w: tokenizer.special_tokens needs PAD, BOS, EOS, MASK", ErrInvalidConfig)
	case t.PitchLow < 0 || t.PitchHigh > 128 || t.PitchLow >= t.PitchHigh:
		return fmt.Errorf("%w: tokenizer pitch range [%d,%d) outside [0,128)", ErrInvalidConfig, t.PitchLow, t.PitchHigh)
	case t.NumVelocities <= 0 || t.NumVelocities > 127:
		return fmt.Errorf("%w: tokenizer.num_velocities must be in [1,127]", ErrInvalidConfig)
	case t.BeatRes <= 0 || t.MaxShiftBeats <= 0:
		return fmt.Errorf("%w: tokenizer beat_res and max_shift_beats must be > 0", ErrInvalidConfig)
	case t.BPEVocabSize < 0:
		return fmt.Errorf("%w: tokenizer.bpe_vocab_size must be >= 0", ErrInvalidConfig)
	}
	return nil
}
