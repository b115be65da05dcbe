package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"renovai/server/internal/domain"
	"renovai/server/internal/providers/openai"
	"renovai/server/internal/providers/replicate"
)

const styleSystemPrompt = "Condense the image caption to a short style name."

// Captioner produces a natural-language caption for raw image bytes. The
// output may carry one or several strings; the first one wins.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (replicate.Output, error)
}

// TextCompleter returns a single completion for an ordered conversation.
type TextCompleter interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
}

// StyleExtractor turns reference images into short style labels: one caption
// call and one condense call per image.
type StyleExtractor struct {
	captioner Captioner
	completer TextCompleter
	limit     int
}

// NewStyleExtractor builds an extractor that processes at most limit images
// concurrently.
func NewStyleExtractor(captioner Captioner, completer TextCompleter, limit int) *StyleExtractor {
	if limit <= 0 {
		limit = 4
	}
	return &StyleExtractor{captioner: captioner, completer: completer, limit: limit}
}

// ExtractStyles returns one label per input image, in input order. A failure
// on any image cancels the remaining work and the whole call fails; no
// partial list is ever returned.
func (e *StyleExtractor) ExtractStyles(ctx context.Context, images [][]byte) ([]string, error) {
	labels := make([]string, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			label, err := e.extractOne(ctx, img)
			if err != nil {
				return fmt.Errorf("styles: image %d: %w", i, err)
			}
			labels[i] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return labels, nil
}

func (e *StyleExtractor) extractOne(ctx context.Context, img []byte) (string, error) {
	out, err := e.captioner.Caption(ctx, img)
	if err != nil {
		return "", fmt.Errorf("caption: %w: %v", domain.ErrUpstream, err)
	}
	caption, ok := out.First()
	if !ok || strings.TrimSpace(caption) == "" {
		return "", fmt.Errorf("caption: empty response: %w", domain.ErrUpstream)
	}
	label, err := e.completer.Complete(ctx, []openai.Message{
		openai.System(styleSystemPrompt),
		openai.User(caption),
	})
	if err != nil {
		return "", fmt.Errorf("condense: %w: %v", domain.ErrUpstream, err)
	}
	return strings.TrimSpace(label), nil
}
