package providers

import (
	"context"
	"fmt"
	"strings"

	"stock-alert-service/internal/models"
)

// runWithContext runs a blocking send and returns early with the context
// error if ctx ends first. The send keeps running in the background.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send aborted: %w", ctx.Err())
	}
}

func filter(contacts []string, keep func(string) bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range contacts {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] || !keep(c) {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func plainText(msg models.Message) string {
	return fmt.Sprintf("%s\n\n%s", msg.Subject, msg.Body)
}
