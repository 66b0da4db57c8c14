package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/evalops/evalsync/internal/types"
)

// fileState is the fingerprint of one source file taken during a pass, plus
// whether its content differs from the ledger.
type fileState struct {
	path    string // ledger key, relative to the data dir
	size    int64
	modTime time.Time
	sha256  string
	changed bool
}

// fingerprintFile stats and, when needed, hashes one source file. A prior
// ledger row with matching size and mtime lends its hash so clean re-runs
// never read file contents. Force disables that shortcut: a forced pass
// recomputes every hash from the bytes on disk.
func fingerprintFile(abs, rel string, prior *types.UnitState, force bool) (fileState, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return fileState{}, fmt.Errorf("failed to stat %s: %w", rel, err)
	}

	st := fileState{
		path:    rel,
		size:    info.Size(),
		modTime: info.ModTime(),
	}

	if !force && prior != nil && prior.Unchanged(st.size, st.modTime) {
		st.sha256 = prior.SHA256
		return st, nil
	}

	sum, err := hashFile(abs)
	if err != nil {
		return fileState{}, fmt.Errorf("failed to hash %s: %w", rel, err)
	}
	st.sha256 = sum
	st.changed = prior == nil || prior.SHA256 != sum
	return st, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
