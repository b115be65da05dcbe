// Package replicate is a thin client for the Replicate predictions API. It
// covers the three model families the pipeline drives: image captioning,
// segmentation, and control-conditioned synthesis.
package replicate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"renovai/server/internal/infra"
)

// ErrMissingAPIToken indicates the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Pinned model versions. Overridable through Options for staging against
// newer checkpoints.
const (
	DefaultCaptionVersion   = "salesforce/blip2:2ef6d6db0544a5049d2b8670a601390f3465f3e88741cd26b9c7724d83eeaa5e"
	DefaultSegmentVersion   = "facebookresearch/segment-anything:6bcc945c97e7b98bfcd8a56c8d0dafebde28aa5d8e7b3df8a54de9d0f006c09c"
	DefaultSynthesisVersion = "lllyasviel/control_v11p_sd15_canny:0b0e1b11830c80558b65fb7d884fd252916f1bdd0a4f2c5444c9481cbdae36e2"
	DefaultSegmentModelSize = "vit_h"
)

// Options configures the Replicate client.
type Options struct {
	APIToken         string
	BaseURL          string
	CaptionVersion   string
	SegmentVersion   string
	SynthesisVersion string
	SegmentModelSize string
	HTTPClient       *http.Client
	Logger           *infra.Logger
	RequestTimeout   time.Duration
}

// Client performs HTTP calls against the Replicate predictions endpoint.
type Client struct {
	apiToken         string
	baseURL          string
	captionVersion   string
	segmentVersion   string
	synthesisVersion string
	segmentModelSize string
	httpClient       *http.Client
	logger           *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiToken:         strings.TrimSpace(opts.APIToken),
		baseURL:          baseURL,
		captionVersion:   defaultString(opts.CaptionVersion, DefaultCaptionVersion),
		segmentVersion:   defaultString(opts.SegmentVersion, DefaultSegmentVersion),
		synthesisVersion: defaultString(opts.SynthesisVersion, DefaultSynthesisVersion),
		segmentModelSize: defaultString(opts.SegmentModelSize, DefaultSegmentModelSize),
		httpClient:       httpClient,
		logger:           logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

type predictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type predictionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output Output `json:"output"`
	Error  string `json:"error"`
}

// Run executes one prediction synchronously (Prefer: wait) and returns its
// output.
func (c *Client) Run(ctx context.Context, version string, input map[string]any) (Output, error) {
	if !c.HasCredentials() {
		return Output{}, ErrMissingAPIToken
	}
	body, err := json.Marshal(predictionRequest{Version: version, Input: input})
	if err != nil {
		return Output{}, fmt.Errorf("replicate: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Prefer", "wait")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Output{}, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Output{}, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded predictionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Output{}, fmt.Errorf("replicate: decode response: %w", err)
	}
	if decoded.Error != "" {
		return Output{}, fmt.Errorf("replicate: prediction %s failed: %s", decoded.ID, decoded.Error)
	}
	if decoded.Status != "" && decoded.Status != "succeeded" {
		return Output{}, fmt.Errorf("replicate: prediction %s ended with status %s", decoded.ID, decoded.Status)
	}
	c.logger.Debug().
		Str("prediction_id", decoded.ID).
		Str("version", version).
		Int("outputs", decoded.Output.Len()).
		Msg("replicate: prediction completed")
	return decoded.Output, nil
}

// Caption runs the captioning model over one image.
func (c *Client) Caption(ctx context.Context, image []byte) (Output, error) {
	return c.Run(ctx, c.captionVersion, map[string]any{
		"image": dataURI(image),
	})
}

// SegmentMasks runs the segmentation model over one image and returns the
// mask file URIs in the order the service produced them.
func (c *Client) SegmentMasks(ctx context.Context, image []byte) ([]string, error) {
	out, err := c.Run(ctx, c.segmentVersion, map[string]any{
		"image":      dataURI(image),
		"model_type": c.segmentModelSize,
	})
	if err != nil {
		return nil, err
	}
	return out.Values(), nil
}

// SynthesisRequest carries the inputs for one conditioned render.
type SynthesisRequest struct {
	Image          []byte
	ControlImage   []byte
	Prompt         string
	NegativePrompt string
	Seed           *int
}

// Synthesize runs the control-conditioned synthesis model once.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (Output, error) {
	input := map[string]any{
		"image":         dataURI(req.Image),
		"control_image": dataURI(req.ControlImage),
		"prompt":        req.Prompt,
	}
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		input["negative_prompt"] = neg
	}
	if req.Seed != nil {
		input["seed"] = *req.Seed
	}
	return c.Run(ctx, c.synthesisVersion, input)
}

// Download fetches a file the service produced.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(fileURL))
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("replicate: invalid file url: %s", fileURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read file: %w", err)
	}
	return data, nil
}

func dataURI(image []byte) string {
	mime := http.DetectContentType(image)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
