package identity

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

var ErrReloadFailed = errors.New("identity: gallery reload failed")

// StaffEntry is one known staff member with a reference embedding.
// Several entries may share a name when multiple photos exist.
type StaffEntry struct {
	Name      string
	Embedding []float32
}

// Gallery holds the staff reference embeddings. Reload builds a fresh
// set from the photo directory and swaps it in atomically, so matchers
// reading concurrently never see a half-built gallery. A failed reload
// keeps the previous entries.
type Gallery struct {
	dir     string
	enc     Encoder
	entries atomic.Pointer[[]StaffEntry]
}

func NewGallery(dir string, enc Encoder) *Gallery {
	g := &Gallery{dir: dir, enc: enc}
	empty := []StaffEntry{}
	g.entries.Store(&empty)
	return g
}

func (g *Gallery) Entries() []StaffEntry {
	return *g.entries.Load()
}

// Reload re-encodes every photo in the gallery directory. Photos are
// named "<staff>.jpg"; an optional "_<n>" suffix allows several photos
// of the same person.
func (g *Gallery) Reload() error {
	files, err := os.ReadDir(g.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReloadFailed, err)
	}

	fresh := make([]StaffEntry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !isImageFile(f.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(g.dir, f.Name()))
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrReloadFailed, f.Name(), err)
		}
		emb, err := g.enc.Encode(data)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrReloadFailed, f.Name(), err)
		}
		fresh = append(fresh, StaffEntry{Name: staffName(f.Name()), Embedding: emb})
	}

	g.entries.Store(&fresh)
	log.Printf("Staff gallery reloaded: %d entries from %s", len(fresh), g.dir)
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// staffName derives the staff name from a photo filename, dropping the
// extension and any "_<n>" duplicate suffix.
func staffName(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if i := strings.LastIndex(name, "_"); i > 0 {
		if suffix := name[i+1:]; suffix != "" && isDigits(suffix) {
			name = name[:i]
		}
	}
	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
