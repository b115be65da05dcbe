package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"renovai/server/internal/domain"
	"renovai/server/internal/infra"
	"renovai/server/internal/pipeline"
)

type stubService struct {
	preprocess func(ctx context.Context, photo []byte, filename string) (*pipeline.PreprocessResult, error)
	analyze    func(ctx context.Context, jobID string, styleImages [][]byte) (*pipeline.AnalyzeResult, error)
	transform  func(ctx context.Context, params pipeline.TransformParams) (*pipeline.TransformResult, error)
}

func (s *stubService) Preprocess(ctx context.Context, photo []byte, filename string) (*pipeline.PreprocessResult, error) {
	return s.preprocess(ctx, photo, filename)
}

func (s *stubService) Analyze(ctx context.Context, jobID string, styleImages [][]byte) (*pipeline.AnalyzeResult, error) {
	return s.analyze(ctx, jobID, styleImages)
}

func (s *stubService) Transform(ctx context.Context, params pipeline.TransformParams) (*pipeline.TransformResult, error) {
	return s.transform(ctx, params)
}

func newTestApp(svc Service) *App {
	return NewApp(svc, infra.Logger(zerolog.New(io.Discard)))
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for name, data := range files {
		idx := strings.IndexByte(name, '|')
		field, filename := name[:idx], name[idx+1:]
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write form file %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestPreprocessHandler(t *testing.T) {
	var gotFilename string
	app := newTestApp(&stubService{
		preprocess: func(ctx context.Context, photo []byte, filename string) (*pipeline.PreprocessResult, error) {
			gotFilename = filename
			if string(photo) != "photo-bytes" {
				return nil, fmt.Errorf("unexpected photo payload")
			}
			return &pipeline.PreprocessResult{
				JobID:    "original_j1",
				MaskURIs: []string{"/uploads/mask_a_0.png"},
				Original: "/uploads/original_j1.jpg",
			}, nil
		},
	})

	body, contentType := multipartBody(t, nil, map[string][]byte{"photo|room.jpg": []byte("photo-bytes")})
	req := httptest.NewRequest(http.MethodPost, "/api/v2/preprocess", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Preprocess(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotFilename != "room.jpg" {
		t.Fatalf("filename = %q", gotFilename)
	}
	var out pipeline.PreprocessResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.JobID != "original_j1" || len(out.MaskURIs) != 1 {
		t.Fatalf("response = %+v", out)
	}
}

func TestPreprocessMissingPhoto(t *testing.T) {
	app := newTestApp(&stubService{})
	body, contentType := multipartBody(t, map[string]string{"other": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/preprocess", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Preprocess(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPreprocessRejectsUnsupportedType(t *testing.T) {
	app := newTestApp(&stubService{})
	body, contentType := multipartBody(t, nil, map[string][]byte{"photo|room.gif": []byte("gif")})
	req := httptest.NewRequest(http.MethodPost, "/api/v2/preprocess", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Preprocess(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unsupported type", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAnalyzeHandler(t *testing.T) {
	app := newTestApp(&stubService{
		analyze: func(ctx context.Context, jobID string, styleImages [][]byte) (*pipeline.AnalyzeResult, error) {
			if jobID != "job-1" {
				return nil, fmt.Errorf("job id = %q", jobID)
			}
			if len(styleImages) != 2 {
				return nil, fmt.Errorf("style images = %d", len(styleImages))
			}
			return &pipeline.AnalyzeResult{
				JobID:       jobID,
				Styles:      []string{"Scandinavian", "Industrial"},
				DesignRules: "Mix light woods with raw steel.",
			}, nil
		},
	})

	body, contentType := multipartBody(t, map[string]string{"jobId": "job-1"}, map[string][]byte{
		"styleImages|ref1.jpg": []byte("ref-one"),
		"styleImages|ref2.png": []byte("ref-two"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v2/architectural-analysis", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out pipeline.AnalyzeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Styles) != 2 || out.DesignRules == "" {
		t.Fatalf("response = %+v", out)
	}
}

func TestAnalyzeRequiresJobID(t *testing.T) {
	app := newTestApp(&stubService{})
	body, contentType := multipartBody(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/architectural-analysis", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Analyze(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTransformHandlerParsesFields(t *testing.T) {
	var got pipeline.TransformParams
	app := newTestApp(&stubService{
		transform: func(ctx context.Context, params pipeline.TransformParams) (*pipeline.TransformResult, error) {
			got = params
			return &pipeline.TransformResult{ResultURI: "/uploads/render_r1.png"}, nil
		},
	})

	form := url.Values{}
	form.Set("jobId", "original_j1")
	form.Set("prompt", "bright scandinavian kitchen")
	form.Set("negativePrompt", "cartoon")
	form.Add("maskPaths", "/uploads/mask_a_0.png")
	form.Add("maskPaths", "/uploads/mask_b_1.png")
	form.Set("seed", "99")
	form.Set("edits", `{"crop":{"x":1,"y":2,"width":3,"height":4},"rotate":90}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/transform-image", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.Transform(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got.JobID != "original_j1" || got.Prompt != "bright scandinavian kitchen" || got.NegativePrompt != "cartoon" {
		t.Fatalf("params = %+v", got)
	}
	if len(got.MaskPaths) != 2 {
		t.Fatalf("mask paths = %v", got.MaskPaths)
	}
	if got.Seed == nil || *got.Seed != 99 {
		t.Fatalf("seed = %v", got.Seed)
	}
	// Unknown edit keys are ignored; the crop survives.
	if got.Edits == nil || got.Edits.Crop == nil || got.Edits.Crop.Width != 3 {
		t.Fatalf("edits = %+v", got.Edits)
	}
	var out pipeline.TransformResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ResultURI != "/uploads/render_r1.png" {
		t.Fatalf("result uri = %q", out.ResultURI)
	}
}

func TestTransformRequiresJobIDAndPrompt(t *testing.T) {
	app := newTestApp(&stubService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v2/transform-image", strings.NewReader("jobId=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.Transform(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTransformInvalidSeed(t *testing.T) {
	app := newTestApp(&stubService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v2/transform-image",
		strings.NewReader("jobId=x&prompt=p&seed=notanumber"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.Transform(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("jobs: unknown job: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("control: bad bytes: %w", domain.ErrDecode), http.StatusBadRequest},
		{fmt.Errorf("control: crop: %w", domain.ErrInvalidEdit), http.StatusUnprocessableEntity},
		{fmt.Errorf("segment: %w", domain.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		app := newTestApp(&stubService{
			transform: func(ctx context.Context, params pipeline.TransformParams) (*pipeline.TransformResult, error) {
				return nil, tc.err
			},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v2/transform-image",
			strings.NewReader("jobId=x&prompt=p"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		app.Transform(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("err %v → status %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}
