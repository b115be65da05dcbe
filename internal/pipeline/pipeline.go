// Package pipeline sequences the room-renovation stages: preprocess a room
// photo into masks, analyze reference images into design guidelines, and
// transform the room under a prompt and a mask-derived control image. Every
// external model service is an injected collaborator.
package pipeline

import (
	"context"

	"renovai/server/internal/infra"
	"renovai/server/internal/jobs"
	"renovai/server/internal/storage"
)

// Deps enumerates the collaborators the orchestrator sequences. No component
// depends back on the pipeline.
type Deps struct {
	Store     *storage.Store
	Registry  *jobs.Registry
	Segmenter *Segmenter
	Styles    *StyleExtractor
	Rules     *RuleSynthesizer
	Control   *ControlBuilder
	Composer  *RenderComposer
	Logger    infra.Logger
}

// Pipeline is the request-level driver. It holds no per-job state beyond the
// registry entry written at preprocess time; repeated calls with the same
// inputs create new artifacts.
type Pipeline struct {
	store     *storage.Store
	registry  *jobs.Registry
	segmenter *Segmenter
	styles    *StyleExtractor
	rules     *RuleSynthesizer
	control   *ControlBuilder
	composer  *RenderComposer
	logger    infra.Logger
}

// New assembles the orchestrator.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		store:     deps.Store,
		registry:  deps.Registry,
		segmenter: deps.Segmenter,
		styles:    deps.Styles,
		rules:     deps.Rules,
		control:   deps.Control,
		composer:  deps.Composer,
		logger:    deps.Logger,
	}
}

// PreprocessResult is the response body of the preprocess operation.
type PreprocessResult struct {
	JobID    string   `json:"jobId"`
	MaskURIs []string `json:"maskURIs"`
	Original string   `json:"original"`
}

// AnalyzeResult is the response body of the analysis operation.
type AnalyzeResult struct {
	JobID       string   `json:"jobId"`
	Styles      []string `json:"styles"`
	DesignRules string   `json:"designRules"`
}

// TransformParams are the inputs of the transform operation.
type TransformParams struct {
	JobID          string
	Prompt         string
	NegativePrompt string
	MaskPaths      []string
	Seed           *int
	Edits          *LayoutEdits
}

// TransformResult is the response body of the transform operation.
type TransformResult struct {
	ResultURI string `json:"resultURI"`
}

// Preprocess persists the room photo as the job's original artifact,
// registers the job, and segments the photo into mask artifacts.
func (p *Pipeline) Preprocess(ctx context.Context, photo []byte, filename string) (*PreprocessResult, error) {
	original, err := p.store.Save(photo, storage.KindOriginal, filename)
	if err != nil {
		return nil, err
	}
	jobID := storage.JobID(original)
	p.registry.Register(jobID, original)

	masks, err := p.segmenter.Segment(ctx, photo)
	if err != nil {
		return nil, err
	}
	maskURIs := make([]string, len(masks))
	for i, m := range masks {
		maskURIs[i] = p.store.ResolveURI(m)
	}
	p.logger.Info().
		Str("job_id", jobID).
		Int("masks", len(masks)).
		Msg("pipeline: preprocess completed")
	return &PreprocessResult{
		JobID:    jobID,
		MaskURIs: maskURIs,
		Original: p.store.ResolveURI(original),
	}, nil
}

// Analyze extracts a style label per reference image and synthesizes the
// combined design guideline text. The jobId is opaque pass-through; it is
// not checked against the registry here.
func (p *Pipeline) Analyze(ctx context.Context, jobID string, styleImages [][]byte) (*AnalyzeResult, error) {
	styles, err := p.styles.ExtractStyles(ctx, styleImages)
	if err != nil {
		return nil, err
	}
	rules, err := p.rules.Synthesize(ctx, styles)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("job_id", jobID).
		Int("styles", len(styles)).
		Msg("pipeline: analysis completed")
	return &AnalyzeResult{JobID: jobID, Styles: styles, DesignRules: rules}, nil
}

// Transform resolves the job's original through the registry, builds the
// control payload from the supplied masks and optional edits, and composes
// the final render.
func (p *Pipeline) Transform(ctx context.Context, params TransformParams) (*TransformResult, error) {
	original, err := p.registry.Lookup(params.JobID)
	if err != nil {
		return nil, err
	}
	masks := make([]storage.Artifact, 0, len(params.MaskPaths))
	for _, ref := range params.MaskPaths {
		if ref == "" {
			continue
		}
		mask, err := p.store.Resolve(ref, storage.KindMask)
		if err != nil {
			return nil, err
		}
		masks = append(masks, mask)
	}
	payload, err := p.control.Build(masks, params.Edits)
	if err != nil {
		return nil, err
	}
	render, err := p.composer.Compose(ctx, original, payload, params.Prompt, params.NegativePrompt, params.Seed)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("job_id", params.JobID).
		Str("render", render.Name).
		Msg("pipeline: transform completed")
	return &TransformResult{ResultURI: p.store.ResolveURI(render)}, nil
}
