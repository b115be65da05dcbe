package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"renovai/server/internal/pipeline"
)

const (
	maxUploadBytes     = 15 << 20 // per file
	maxMultipartMemory = 32 << 20
)

var allowedUploadExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// Preprocess accepts the room photo, segments it, and returns the job id
// together with the mask and original URIs.
func (a *App) Preprocess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	photo, header, err := r.FormFile("photo")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "photo field is required")
		return
	}
	defer photo.Close()
	data, err := readUpload(photo, header)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_upload", err.Error())
		return
	}
	result, err := a.Pipeline.Preprocess(r.Context(), data, header.Filename)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// Analyze accepts reference style images and returns the extracted style
// labels and the combined design-guideline text.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	jobID := strings.TrimSpace(r.FormValue("jobId"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId field is required")
		return
	}
	var images [][]byte
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["styleImages"] {
			f, err := header.Open()
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_upload", "cannot open style image")
				return
			}
			data, err := readUpload(f, header)
			f.Close()
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_upload", err.Error())
				return
			}
			images = append(images, data)
		}
	}
	result, err := a.Pipeline.Analyze(r.Context(), jobID, images)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// Transform renders the job's room photo under the prompt, conditioned on
// the selected mask (optionally cropped).
func (a *App) Transform(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid form")
		return
	}
	params := pipeline.TransformParams{
		JobID:          strings.TrimSpace(r.FormValue("jobId")),
		Prompt:         strings.TrimSpace(r.FormValue("prompt")),
		NegativePrompt: strings.TrimSpace(r.FormValue("negativePrompt")),
		MaskPaths:      r.Form["maskPaths"],
	}
	if params.JobID == "" || params.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId and prompt fields are required")
		return
	}
	if raw := strings.TrimSpace(r.FormValue("seed")); raw != "" {
		seed, err := strconv.Atoi(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "seed must be an integer")
			return
		}
		params.Seed = &seed
	}
	if raw := strings.TrimSpace(r.FormValue("edits")); raw != "" {
		var edits pipeline.LayoutEdits
		if err := json.Unmarshal([]byte(raw), &edits); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "edits must be a JSON object")
			return
		}
		params.Edits = &edits
	}
	result, err := a.Pipeline.Transform(r.Context(), params)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// readUpload enforces the upload limits before handing bytes to the
// pipeline: 15 MiB per file, common web image formats only.
func readUpload(f multipart.File, header *multipart.FileHeader) ([]byte, error) {
	if header.Size > maxUploadBytes {
		return nil, fmt.Errorf("file %s exceeds the %d MiB limit", header.Filename, maxUploadBytes>>20)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedUploadExts[ext]; !ok {
		return nil, fmt.Errorf("unsupported file type %q (allowed: jpeg, png, webp)", ext)
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("file %s exceeds the %d MiB limit", header.Filename, maxUploadBytes>>20)
	}
	return data, nil
}
