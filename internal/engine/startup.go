package engine

import (
	"context"
	"fmt"
	"io"
)

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// ModelPuller is a backend that serves locally stored models.
type ModelPuller interface {
	IsRunning(ctx context.Context) bool
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// EnsureReady checks that a local backend is reachable and has model,
// pulling it with progress output written to w when missing. Engines that
// do not serve local models are left alone.
func EnsureReady(ctx context.Context, e Engine, model string, w io.Writer) error {
	if l, ok := e.(*Limited); ok {
		e = l.Unwrap()
	}
	p, ok := e.(ModelPuller)
	if !ok {
		return nil
	}
	return ensureModel(ctx, p, model, w)
}

func ensureModel(ctx context.Context, p ModelPuller, model string, w io.Writer) error {
	if !p.IsRunning(ctx) {
		return fmt.Errorf("local inference engine is not running; start it with: ollama serve")
	}
	if model == "" || p.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := p.PullModel(ctx, model, func(pp PullProgress) {
		if pp.Total > 0 {
			pct := float64(pp.Completed) / float64(pp.Total) * 100
			fmt.Fprintf(w, "  %s %.0f%%\n", pp.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", pp.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
