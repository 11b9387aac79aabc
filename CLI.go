package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/manningwu07/MidiGPT/IO"
	"github.com/manningwu07/MidiGPT/params"
)

// ChatCLI reads MIDI or token JSON paths from stdin and writes one
// continuation per file to the results directory.
func ChatCLI(ctx context.Context, cfg params.Config, tok IO.Tokenizer, log *slog.Logger) error {
	reader := bufio.NewReader(os.Stdin)
	loader := IO.FileLoader{Tokenizer: tok}
	g := newGenerator(cfg, tok, log)
	next := 0
	fmt.Println("Continuing MIDI files via the model server. Type a path, or 'exit' to quit.")
	for {
		fmt.Print("File: ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "exit" || (input == "" && err != nil) {
			return nil
		}
		if input == "" {
			continue
		}

		ids, lerr := loader.Load(input)
		if lerr != nil {
			fmt.Println("Error:", lerr)
			continue
		}
		if n := cfg.Generation.MaxPromptLen; n > 0 && len(ids) > n {
			ids = ids[len(ids)-n:]
		}
		next, err = g.Run(ctx, [][]int{ids}, next)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Println("Error:", err)
			continue
		}
		fmt.Printf("Wrote %s/%d.mid (%d prompt tokens)\n", cfg.Generation.ResultsDir, next-1, len(ids))
	}
}
