package pipeline

import (
	"context"
	"fmt"

	"renovai/server/internal/domain"
	"renovai/server/internal/providers/replicate"
	"renovai/server/internal/storage"
)

// Synthesizer runs the conditioned-synthesis model once.
type Synthesizer interface {
	Synthesize(ctx context.Context, req replicate.SynthesisRequest) (replicate.Output, error)
}

// RenderComposer assembles the synthesis request and persists the resulting
// render.
type RenderComposer struct {
	synth   Synthesizer
	fetcher FileFetcher
	store   *storage.Store
}

// NewRenderComposer wires the synthesis service, fetcher and artifact store.
func NewRenderComposer(synth Synthesizer, fetcher FileFetcher, store *storage.Store) *RenderComposer {
	return &RenderComposer{synth: synth, fetcher: fetcher, store: store}
}

// Compose renders the base image under the given prompt and control payload.
// When the service returns several results only the first is used, matching
// the control builder's first-wins policy.
func (r *RenderComposer) Compose(ctx context.Context, base storage.Artifact, payload ControlPayload, prompt, negativePrompt string, seed *int) (storage.Artifact, error) {
	baseData, err := r.store.Read(base)
	if err != nil {
		return storage.Artifact{}, err
	}
	controlData, err := r.store.Read(payload.ControlImage)
	if err != nil {
		return storage.Artifact{}, err
	}
	out, err := r.synth.Synthesize(ctx, replicate.SynthesisRequest{
		Image:          baseData,
		ControlImage:   controlData,
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		Seed:           seed,
	})
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("render: %w: %v", domain.ErrUpstream, err)
	}
	resultURL, ok := out.First()
	if !ok {
		return storage.Artifact{}, fmt.Errorf("render: empty synthesis output: %w", domain.ErrUpstream)
	}
	data, err := r.fetcher.Download(ctx, resultURL)
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("render: fetch result: %w: %v", domain.ErrUpstream, err)
	}
	render, err := r.store.Save(data, storage.KindRender, "")
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("render: persist result: %w", err)
	}
	return render, nil
}
