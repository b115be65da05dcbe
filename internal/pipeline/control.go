package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/jpeg"

	"renovai/server/internal/domain"
	"renovai/server/internal/storage"
)

// CropRect is a crop region in pixel coordinates relative to the image's
// top-left corner.
type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LayoutEdits carries the geometric edits a client may request before
// rendering. Crop is the only supported edit; unknown keys in the wire form
// are ignored.
type LayoutEdits struct {
	Crop *CropRect `json:"crop"`
}

// ControlPayload is the structural-conditioning input for synthesis: exactly
// one control image per render.
type ControlPayload struct {
	ControlImage storage.Artifact
}

// ControlBuilder derives the control image from a selected mask plus
// optional edits.
type ControlBuilder struct {
	store *storage.Store
}

// NewControlBuilder wires the artifact store.
func NewControlBuilder(store *storage.Store) *ControlBuilder {
	return &ControlBuilder{store: store}
}

// Build selects the first supplied mask as the control image, however many
// masks were given. A crop edit writes the cropped result as a new artifact
// and the payload references that copy; the source mask is never touched.
// Crop rectangles outside the image extents are rejected, not clamped.
func (b *ControlBuilder) Build(masks []storage.Artifact, edits *LayoutEdits) (ControlPayload, error) {
	if len(masks) == 0 {
		return ControlPayload{}, fmt.Errorf("control: no masks supplied: %w", domain.ErrInvalidEdit)
	}
	control := masks[0]
	if edits == nil || edits.Crop == nil {
		return ControlPayload{ControlImage: control}, nil
	}
	cropped, err := b.crop(control, *edits.Crop)
	if err != nil {
		return ControlPayload{}, err
	}
	return ControlPayload{ControlImage: cropped}, nil
}

func (b *ControlBuilder) crop(mask storage.Artifact, c CropRect) (storage.Artifact, error) {
	data, err := b.store.Read(mask)
	if err != nil {
		return storage.Artifact{}, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("control: decode %s: %w", mask.Name, domain.ErrDecode)
	}
	bounds := src.Bounds()
	if c.Width <= 0 || c.Height <= 0 || c.X < 0 || c.Y < 0 ||
		c.X+c.Width > bounds.Dx() || c.Y+c.Height > bounds.Dy() {
		return storage.Artifact{}, fmt.Errorf("control: crop %dx%d+%d+%d exceeds %dx%d image: %w",
			c.Width, c.Height, c.X, c.Y, bounds.Dx(), bounds.Dy(), domain.ErrInvalidEdit)
	}
	out := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(out, out.Bounds(), src, bounds.Min.Add(image.Pt(c.X, c.Y)), draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return storage.Artifact{}, fmt.Errorf("control: encode crop: %w", err)
	}
	cropped, err := b.store.Save(buf.Bytes(), storage.KindTemp, "")
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("control: persist crop: %w", err)
	}
	return cropped, nil
}
