package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// untitled names artifacts whose title produces an empty slug.
const untitled = "untitled"

// Store persists artifacts as <name>.png, <name>.json and <name>.html under
// a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create output dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// FileBase maps a slug onto a single path element. Path separators and NUL
// become '_'; an empty slug becomes "untitled".
func FileBase(slug string) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, slug)
	if base == "" || base == "." || base == ".." {
		return untitled
	}
	return base
}

// Path returns where the file with the given extension is written for a.
func (s *Store) Path(a *Artifact, ext string) string {
	return filepath.Join(s.dir, FileBase(a.Slug())+ext)
}

// Save writes the artifact's files and returns their paths. The screenshot
// file is skipped when the artifact has none.
func (s *Store) Save(a *Artifact) ([]string, error) {
	var written []string

	if shot, ok := a.Screenshot(); ok {
		p := s.Path(a, ".png")
		if err := os.WriteFile(p, shot, 0o644); err != nil {
			return written, fmt.Errorf("artifact: write screenshot: %w", err)
		}
		written = append(written, p)
	}

	doc, err := a.MarshalJSON()
	if err != nil {
		return written, fmt.Errorf("artifact: encode: %w", err)
	}
	p := s.Path(a, ".json")
	if err := os.WriteFile(p, doc, 0o644); err != nil {
		return written, fmt.Errorf("artifact: write json: %w", err)
	}
	written = append(written, p)

	p = s.Path(a, ".html")
	if err := os.WriteFile(p, []byte(a.Markup()), 0o644); err != nil {
		return written, fmt.Errorf("artifact: write markup: %w", err)
	}
	written = append(written, p)

	slog.Debug("artifact saved", "url", a.URL(), "files", written)
	return written, nil
}

// WriteExtra writes an additional rendition next to the artifact's files.
// ext may be given with or without its leading dot.
func (s *Store) WriteExtra(a *Artifact, ext string, data []byte) (string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	p := s.Path(a, ext)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", ext, err)
	}
	return p, nil
}

// Load reads back the JSON document saved for slug.
func (s *Store) Load(slug string) (*Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, FileBase(slug)+".json"))
	if err != nil {
		return nil, fmt.Errorf("artifact: read: %w", err)
	}
	var a Artifact
	if err := a.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &a, nil
}
