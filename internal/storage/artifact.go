package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"renovai/server/internal/domain"
)

// Kind tags the role an artifact plays in the pipeline.
type Kind string

const (
	KindOriginal Kind = "original"
	KindMask     Kind = "mask"
	KindRender   Kind = "render"
	KindTemp     Kind = "temp"
)

// Artifact is a persisted binary with a generated unique name. The external
// URI is a pure function of Name (see Store.ResolveURI).
type Artifact struct {
	Name string
	Kind Kind
}

// Store persists artifacts under a flat directory. It is append-only: names
// embed a fresh UUID so writes never collide, and nothing is ever deleted
// during the life of the process.
type Store struct {
	root      string
	publicURL string
}

// NewStore initializes a Store rooted at root. publicURL is the path prefix
// under which the root is served to clients (for example "/uploads").
func NewStore(root, publicURL string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure root: %w", err)
	}
	return &Store{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root returns the directory the store writes into.
func (s *Store) Root() string {
	return s.root
}

// Save writes data under a new unique name and returns the artifact. The
// extension is taken from sourceName when the kind is original (default
// ".jpg"); masks, renders and temps are always PNG.
func (s *Store) Save(data []byte, kind Kind, sourceName string) (Artifact, error) {
	name := fmt.Sprintf("%s_%s%s", kind, uuid.New().String(), extensionFor(kind, sourceName))
	return s.write(name, kind, data)
}

// SaveMask persists one segmentation mask, embedding the ordinal index the
// segmentation service returned it at.
func (s *Store) SaveMask(data []byte, index int) (Artifact, error) {
	name := fmt.Sprintf("mask_%s_%d.png", uuid.New().String(), index)
	return s.write(name, KindMask, data)
}

func (s *Store) write(name string, kind Kind, data []byte) (Artifact, error) {
	full := filepath.Join(s.root, name)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Artifact{}, fmt.Errorf("storage: create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return Artifact{}, fmt.Errorf("storage: close %s: %w", name, err)
	}
	return Artifact{Name: name, Kind: kind}, nil
}

// Open returns a reader over the artifact's bytes.
func (s *Store) Open(a Artifact) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, a.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: open %s: %w", a.Name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: open %s: %w", a.Name, err)
	}
	return f, nil
}

// Read returns the artifact's bytes in full.
func (s *Store) Read(a Artifact) ([]byte, error) {
	f, err := s.Open(a)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", a.Name, err)
	}
	return data, nil
}

// ResolveURI maps an artifact to its externally fetchable path. Deterministic
// in the artifact name alone.
func (s *Store) ResolveURI(a Artifact) string {
	return s.publicURL + "/" + a.Name
}

// Resolve maps a client-supplied artifact path or URI back to a stored
// artifact. Only the basename is honored, so callers cannot escape the root.
func (s *Store) Resolve(ref string, kind Kind) (Artifact, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(ref), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return Artifact{}, fmt.Errorf("storage: invalid artifact reference %q: %w", ref, domain.ErrNotFound)
	}
	if _, err := os.Stat(filepath.Join(s.root, name)); err != nil {
		return Artifact{}, fmt.Errorf("storage: resolve %s: %w", name, domain.ErrNotFound)
	}
	return Artifact{Name: name, Kind: kind}, nil
}

// JobID derives the job identifier from an original artifact: its filename
// stem.
func JobID(a Artifact) string {
	return strings.TrimSuffix(a.Name, filepath.Ext(a.Name))
}

func extensionFor(kind Kind, sourceName string) string {
	if kind != KindOriginal {
		return ".png"
	}
	if ext := strings.ToLower(filepath.Ext(sourceName)); ext != "" {
		return ext
	}
	return ".jpg"
}
