package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manningwu07/MidiGPT/IO"
	"github.com/manningwu07/MidiGPT/collate"
	"github.com/manningwu07/MidiGPT/dataset"
	"github.com/manningwu07/MidiGPT/generate"
	"github.com/manningwu07/MidiGPT/metrics"
	"github.com/manningwu07/MidiGPT/params"
)

var (
	exportFlag   bool
	evalFlag     bool
	generateFlag bool
	cliFlag      bool
	forceFlag    bool
	configPath   string
)

func init() {
	flag.BoolVar(&exportFlag, "export", false, "Tokenize, window and export train/val shards plus manifest.json")
	flag.BoolVar(&evalFlag, "eval", false, "Score next-token accuracy of the model server on the val shards")
	flag.BoolVar(&generateFlag, "generate", false, "Generate continuations for the val shards")
	flag.BoolVar(&cliFlag, "cli", false, "Interactive: continue MIDI/JSON files typed on stdin")
	flag.BoolVar(&forceFlag, "force", false, "Force re-export even if cache exists")
	flag.StringVar(&configPath, "config", "", "JSON file overriding the default configuration")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := params.LoadJSON(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	runID := uuid.NewString()
	log := newLogger(cfg.Logging.Level).With("run_id", runID)
	slog.SetDefault(log)

	tok, err := IO.LoadTokenizer(cfg.Tokenizer)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	log.Info("tokenizer ready", "type", fmt.Sprintf("%T", tok), "vocab", tok.VocabSize())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case exportFlag:
		return export(cfg, tok, runID, log)
	case evalFlag:
		return evaluate(ctx, cfg, tok)
	case generateFlag:
		return generateVal(ctx, cfg, tok, log)
	case cliFlag:
		return ChatCLI(ctx, cfg, tok, log)
	}
	fmt.Println("No flag passed. Use --export for preprocessing, --eval, --generate or --cli.")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

func splitPrefix(cfg params.Config, split string) string {
	return filepath.Join(cfg.Data.OutDir, split)
}

func export(cfg params.Config, tok IO.Tokenizer, runID string, log *slog.Logger) error {
	trainPrefix, valPrefix := splitPrefix(cfg, "train"), splitPrefix(cfg, "val")
	if !IO.ShardMissing(trainPrefix) && !forceFlag {
		fmt.Println("⚡ Using cached train/val shards (pass --force to rebuild)")
		return nil
	}
	fmt.Println("Tokenizing sources & exporting datasets...")

	paths, err := IO.FindSources(cfg.Data.SourceDir, cfg.Data.Patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no sources under %s matching %v", dataset.ErrEmptyDataset, cfg.Data.SourceDir, cfg.Data.Patterns)
	}
	if cfg.Tokenizer.BPEVocabSize > 0 && !IO.BPEExists(cfg.Tokenizer.BPEPath) {
		if tok, err = trainBPE(cfg, paths, log); err != nil {
			return err
		}
		fmt.Printf("✅ Trained BPE tokenizer (%d tokens) into %s\n", tok.VocabSize(), cfg.Tokenizer.BPEPath)
	}
	start := time.Now()
	ds, err := dataset.Build(paths, IO.FileLoader{Tokenizer: tok}, dataset.BuildOptions{
		MinSeqLen:     cfg.Data.MinSeqLen,
		MaxSeqLen:     cfg.Data.MaxSeqLen,
		SkipMalformed: cfg.Data.SkipMalformed,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	st := ds.Stats()
	log.Info("dataset built", "files", st.Files, "skipped", st.Skipped, "windows", st.Windows,
		"mean_len", st.MeanLen, "std_len", st.StdLen, "dur", time.Since(start))

	train, val, err := dataset.RandomSplit(ds, cfg.Data.ValFrac, cfg.Data.Seed)
	if err != nil {
		return err
	}
	m := IO.Manifest{
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		VocabSize:   tok.VocabSize(),
		PadID:       tok.PadID(),
		BOSID:       tok.BOSID(),
		EOSID:       tok.EOSID(),
		IgnoreIndex: params.IgnoreIndex,
		MinSeqLen:   cfg.Data.MinSeqLen,
		MaxSeqLen:   cfg.Data.MaxSeqLen,
		Sources:     st.Files,
		Skipped:     st.Skipped,
		Tokenizer:   cfg.Tokenizer,
		Model:       cfg.Model,
		Training:    cfg.Training,
	}
	m.Model.VocabSize = tok.VocabSize()

	for _, s := range []struct {
		name   string
		prefix string
		sub    *dataset.Subset
		info   *IO.SplitInfo
	}{{"train", trainPrefix, train, &m.Train}, {"val", valPrefix, val, &m.Val}} {
		windows, err := subsetWindows(s.sub)
		if err != nil {
			return err
		}
		shards, err := IO.ExportShards(windows, s.prefix, cfg.Data.MaxShardBytes)
		if err != nil {
			return fmt.Errorf("export %s: %w", s.name, err)
		}
		*s.info = IO.SplitInfo{Prefix: filepath.Base(s.prefix), Samples: len(windows), Shards: shards}
		fmt.Printf("✅ Exported %s: %d windows in %d shard(s)\n", s.name, len(windows), shards)
	}

	if err := IO.ExportVocabJSON(filepath.Join(cfg.Data.OutDir, "vocab.json"), IO.BuildVocabulary(tok)); err != nil {
		return err
	}
	fmt.Println("✅ Exported vocab.json")
	if err := IO.WriteManifest(filepath.Join(cfg.Data.OutDir, "manifest.json"), m); err != nil {
		return err
	}
	fmt.Println("✨ Export complete")
	return nil
}

// trainBPE learns the BPE vocabulary from the MIDI sources. Token JSON
// sources are skipped since their ids may already be BPE ids.
func trainBPE(cfg params.Config, paths []string, log *slog.Logger) (*IO.BPE, error) {
	base, err := IO.NewMIDILike(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	loader := IO.FileLoader{Tokenizer: base}
	var seqs [][]int
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".json") {
			continue
		}
		ids, err := loader.Load(p)
		if err != nil {
			if cfg.Data.SkipMalformed {
				log.Warn("skipping bpe source", "path", p, "err", err)
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", dataset.ErrMalformedInput, p, err)
		}
		seqs = append(seqs, ids)
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: no MIDI sources to train bpe on", dataset.ErrEmptyDataset)
	}
	return IO.TrainBPE(seqs, base, cfg.Tokenizer.BPEVocabSize, cfg.Tokenizer.BPEPath)
}

func subsetWindows(sub *dataset.Subset) ([][]int, error) {
	out := make([][]int, 0, sub.Len())
	for i := 0; i < sub.Len(); i++ {
		s, err := sub.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s.InputIDs)
	}
	return out, nil
}

func loadSplit(cfg params.Config, split string) (*dataset.Dataset, error) {
	prefix := splitPrefix(cfg, split)
	if IO.ShardMissing(prefix) {
		return nil, fmt.Errorf("no %s shards at %s; run --export first", split, prefix)
	}
	windows, err := IO.ReadShards(prefix)
	if err != nil {
		return nil, err
	}
	return dataset.FromWindows(windows)
}

func evaluate(ctx context.Context, cfg params.Config, tok IO.Tokenizer) error {
	ds, err := loadSplit(cfg, "val")
	if err != nil {
		return err
	}
	batches, err := dataset.Batches(ds, cfg.Training.EvalBatchSize, false, 0)
	if err != nil {
		return err
	}
	model := generate.NewRemoteModel(cfg.Server, tok.PadID())
	res, err := generate.Evaluate(ctx, model, batches, collate.NewTrainCollator(tok.PadID()),
		metrics.Accuracy{IgnoreIndex: params.IgnoreIndex})
	if err != nil {
		return err
	}
	fmt.Printf("Eval - Acc: %.4f, Tokens: %.0f, Batches: %.0f\n", res["accuracy"], res["tokens"], res["batches"])
	return nil
}

func generateVal(ctx context.Context, cfg params.Config, tok IO.Tokenizer, log *slog.Logger) error {
	ds, err := loadSplit(cfg, "val")
	if err != nil {
		return err
	}
	n := ds.Len()
	if cfg.Generation.Limit > 0 {
		n = min(n, cfg.Generation.Limit)
	}
	samples := make([]dataset.Sample, 0, n)
	for i := 0; i < n; i++ {
		s, err := ds.Get(i)
		if err != nil {
			return err
		}
		samples = append(samples, s)
	}
	g := newGenerator(cfg, tok, log)
	next, err := g.Run(ctx, collate.Prompts(samples, cfg.Generation.MaxPromptLen), 0)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Printf("Interrupted after %d results\n", next)
		}
		return err
	}
	fmt.Printf("✅ Wrote %d results to %s\n", next, cfg.Generation.ResultsDir)
	return nil
}

func newGenerator(cfg params.Config, tok IO.Tokenizer, log *slog.Logger) generate.Generator {
	return generate.Generator{
		Model:    generate.NewRemoteModel(cfg.Server, tok.PadID()),
		Collator: collate.GenCollator{BOSID: tok.BOSID(), PadID: tok.PadID()},
		Config:   cfg.Generation,
		Sink: generate.ResultWriter{
			Dir:             cfg.Generation.ResultsDir,
			Tokenizer:       tok,
			TicksPerQuarter: 480,
			Tempo:           120,
		},
		Logger: log,
	}
}
