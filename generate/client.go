package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manningwu07/MidiGPT/collate"
	"github.com/manningwu07/MidiGPT/params"
)

// Model continues left-padded prompts. It returns only the new tokens
// of each row.
type Model interface {
	Generate(ctx context.Context, prompts collate.Matrix, cfg params.GenerationConfig) ([][]int, error)
}

// Predictor returns the arg-max token at every position of a training batch.
type Predictor interface {
	Predict(ctx context.Context, batch collate.TrainBatch) (collate.Matrix, error)
}

// RemoteModel talks to the Python model server.
type RemoteModel struct {
	BaseURL string
	PadID   int
	Client  *http.Client
}

func NewRemoteModel(cfg params.ServerConfig, padID int) *RemoteModel {
	return &RemoteModel{
		BaseURL: strings.TrimRight(cfg.URL, "/"),
		PadID:   padID,
		Client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

type generateRequest struct {
	IDs               [][]int `json:"ids"`
	PadTokenID        int     `json:"pad_token_id"`
	MaxNewTokens      int     `json:"max_new_tokens"`
	NumBeams          int     `json:"num_beams"`
	DoSample          bool    `json:"do_sample"`
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p"`
	EpsilonCutoff     float64 `json:"epsilon_cutoff"`
	EtaCutoff         float64 `json:"eta_cutoff"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

type generateResponse struct {
	IDs [][]int `json:"ids"`
}

type predictRequest struct {
	InputIDs [][]int `json:"input_ids"`
	Labels   [][]int `json:"labels"`
}

type predictResponse struct {
	Predictions [][]int `json:"predictions"`
}

func (m *RemoteModel) Generate(ctx context.Context, prompts collate.Matrix, cfg params.GenerationConfig) ([][]int, error) {
	req := generateRequest{
		IDs:               prompts.ToRows(),
		PadTokenID:        m.PadID,
		MaxNewTokens:      cfg.MaxNewTokens,
		NumBeams:          cfg.NumBeams,
		DoSample:          cfg.DoSample,
		Temperature:       cfg.Temperature,
		TopK:              cfg.TopK,
		TopP:              cfg.TopP,
		EpsilonCutoff:     cfg.EpsilonCutoff,
		EtaCutoff:         cfg.EtaCutoff,
		RepetitionPenalty: cfg.RepetitionPenalty,
	}
	var resp generateResponse
	if err := m.post(ctx, "/generate", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) != prompts.Rows {
		return nil, fmt.Errorf("%w: server returned %d rows for %d prompts", collate.ErrShape, len(resp.IDs), prompts.Rows)
	}
	return resp.IDs, nil
}

func (m *RemoteModel) Predict(ctx context.Context, batch collate.TrainBatch) (collate.Matrix, error) {
	req := predictRequest{InputIDs: batch.InputIDs.ToRows(), Labels: batch.Labels.ToRows()}
	var resp predictResponse
	if err := m.post(ctx, "/predict", req, &resp); err != nil {
		return collate.Matrix{}, err
	}
	preds, err := collate.FromRows(resp.Predictions)
	if err != nil {
		return collate.Matrix{}, fmt.Errorf("predict: %w", err)
	}
	if !collate.SameShape(preds, batch.Labels) {
		return collate.Matrix{}, fmt.Errorf("%w: predictions %dx%d for batch %dx%d", collate.ErrShape,
			preds.Rows, preds.Cols, batch.Labels.Rows, batch.Labels.Cols)
	}
	return preds, nil
}

func (m *RemoteModel) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		snippet := raw
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return fmt.Errorf("%s: server returned %s: %s", path, resp.Status, bytes.TrimSpace(snippet))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
