// Package integrity seals the governance state files with a SHA-256
// manifest and detects later out-of-band modification. Appends made
// through the pipeline also change the files; reseal after them.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ppiankov/metadag/internal/store"
)

// ManifestFile is the manifest name inside the state directory.
const ManifestFile = "version.lock"

// TamperLogFile receives one JSON line per detected mismatch.
const TamperLogFile = "tamper.jsonl"

// ErrNoManifest is returned by Verify when the state was never sealed.
var ErrNoManifest = errors.New("integrity: no manifest")

// ErrTampered is returned by Verify when files differ from the manifest.
var ErrTampered = errors.New("integrity: state files differ from manifest")

// TrackedFiles are the state files a manifest covers, relative to the
// state directory. Missing files are skipped when sealing.
var TrackedFiles = []string{
	store.LedgerFile,
	store.VetoIndexFile,
	store.AuditLogFile,
	store.DriftLogFile,
	store.TranslationLog,
	store.SQLiteFile,
}

// Manifest records per-file digests and a structure hash over all of them.
type Manifest struct {
	Version       string            `json:"version"`
	SealedAt      time.Time         `json:"sealed_at"`
	StructureHash string            `json:"structure_hash"`
	Files         map[string]string `json:"files"`
}

// Snapshot hashes the tracked files in stateDir and writes the manifest.
func Snapshot(stateDir, version string) (Manifest, error) {
	files, err := hashTracked(stateDir)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		Version:       version,
		SealedAt:      time.Now().UTC(),
		StructureHash: structureHash(files),
		Files:         files,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("integrity: encode manifest: %w", err)
	}
	path := filepath.Join(stateDir, ManifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return Manifest{}, fmt.Errorf("integrity: write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Manifest{}, fmt.Errorf("integrity: write manifest: %w", err)
	}
	return m, nil
}

// LoadManifest reads the manifest in stateDir.
func LoadManifest(stateDir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, ErrNoManifest
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("integrity: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("integrity: parse manifest: %w", err)
	}
	return m, nil
}

func hashTracked(stateDir string) (map[string]string, error) {
	files := make(map[string]string)
	for _, rel := range TrackedFiles {
		sum, err := hashFile(filepath.Join(stateDir, rel))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("integrity: hash %s: %w", rel, err)
		}
		files[rel] = sum
	}
	return files, nil
}

// structureHash digests sorted name and file-hash pairs.
func structureHash(files map[string]string) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte(files[name]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
