package pipeline

import (
	"context"
	"fmt"

	"renovai/server/internal/domain"
	"renovai/server/internal/storage"
)

// MaskService segments a room photo and returns mask file URIs in service
// order.
type MaskService interface {
	SegmentMasks(ctx context.Context, image []byte) ([]string, error)
}

// FileFetcher downloads a file a model service produced.
type FileFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Segmenter materializes segmentation masks as stored artifacts.
type Segmenter struct {
	svc     MaskService
	fetcher FileFetcher
	store   *storage.Store
}

// NewSegmenter wires the segmentation service, fetcher and artifact store.
func NewSegmenter(svc MaskService, fetcher FileFetcher, store *storage.Store) *Segmenter {
	return &Segmenter{svc: svc, fetcher: fetcher, store: store}
}

// Segment runs one segmentation call and persists every returned mask, in
// the order the service produced them. Mask order is not stable across
// invocations; callers must only rely on the indexes echoed back within the
// same call. Any failure aborts the whole set.
func (s *Segmenter) Segment(ctx context.Context, photo []byte) ([]storage.Artifact, error) {
	uris, err := s.svc.SegmentMasks(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("segment: %w: %v", domain.ErrUpstream, err)
	}
	masks := make([]storage.Artifact, 0, len(uris))
	for i, uri := range uris {
		data, err := s.fetcher.Download(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("segment: fetch mask %d: %w: %v", i, domain.ErrUpstream, err)
		}
		mask, err := s.store.SaveMask(data, i)
		if err != nil {
			return nil, fmt.Errorf("segment: persist mask %d: %w", i, err)
		}
		masks = append(masks, mask)
	}
	return masks, nil
}
