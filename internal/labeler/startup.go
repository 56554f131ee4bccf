package labeler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ollama/ollama/api"
)

// EnsureReady checks that Ollama is running and the vision model is
// available, pulling it with progress written to w when missing.
func EnsureReady(ctx context.Context, c *Client, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return errors.New("Ollama is not running. Start it with: ollama serve")
	}

	if c.HasModel(ctx, c.model) {
		fmt.Fprintf(w, "model %s: ready\n", c.model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", c.model)
	err := c.api.Pull(ctx, &api.PullRequest{Model: c.model}, func(p api.ProgressResponse) error {
		if p.Total > 0 {
			pct := float64(p.Completed) / float64(p.Total) * 100
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", c.model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", c.model)
	return nil
}
