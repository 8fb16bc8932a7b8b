// Package sha256 derives content digests used to name page snapshots.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
)

// Hasher digests page URLs and bodies.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SnapshotPath names the object for a page body: <prefix>/<stage>/<runID>/<digest(url)>.html.
// Keying on the URL keeps one object per company page per run.
func (h *Hasher) SnapshotPath(prefix, stage, runID, pageURL string) string {
	digest, _ := h.Hash([]byte(pageURL))
	return path.Join(prefix, stage, runID, digest+".html")
}
