package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Manifest records, per indexed path, the content hash and chunk count from
// the last successful indexing of that path. Chunk ids are deterministic,
// so hash plus count is enough to skip unchanged files and to delete a
// path's chunks without listing the store.
type Manifest struct {
	// Version for schema compatibility
	Version string `json:"version"`
	// UpdatedAt is the timestamp of the last save
	UpdatedAt time.Time `json:"updated_at"`
	// Model identifies the embedding model the index was built with; it is
	// fixed at project creation.
	Model string `json:"model"`
	// Dimension is the embedding dimensionality, fixed with the model.
	Dimension int `json:"dimension"`
	// Files maps repo-relative path to its indexing record
	Files map[string]*FileEntry `json:"files"`
}

// FileEntry is the per-path indexing record.
type FileEntry struct {
	ContentHash string `json:"content_hash"`
	ChunkCount  int    `json:"chunk_count"`
}

const manifestVersion = "1"
const manifestFileName = "manifest.json"

// NewManifest creates an empty manifest bound to an embedding model.
func NewManifest(model string, dimension int) *Manifest {
	return &Manifest{
		Version:   manifestVersion,
		Model:     model,
		Dimension: dimension,
		Files:     make(map[string]*FileEntry),
	}
}

// LoadManifest loads the manifest from the state directory. Returns
// nil (no error) if no manifest exists yet (first run).
func LoadManifest(stateDir string) (*Manifest, error) {
	path := filepath.Join(stateDir, manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Files == nil {
		m.Files = make(map[string]*FileEntry)
	}
	return &m, nil
}

// Save persists the manifest to the state directory, creating it if
// needed. The write goes through a temp file and rename so a crash can
// never leave a torn manifest.
func (m *Manifest) Save(stateDir string) error {
	m.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(stateDir, manifestFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(stateDir, manifestFileName))
}

// Clone returns a deep copy, seeding the next run's manifest from the
// previous one.
func (m *Manifest) Clone() *Manifest {
	out := NewManifest(m.Model, m.Dimension)
	for path, entry := range m.Files {
		e := *entry
		out.Files[path] = &e
	}
	return out
}

// HashContent computes the SHA-256 content hash used for change detection.
func HashContent(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
