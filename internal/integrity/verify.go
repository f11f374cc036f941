package integrity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Report is the outcome of comparing the state files with the manifest.
type Report struct {
	Valid         bool     `json:"valid"`
	ExpectedHash  string   `json:"expected_hash"`
	ActualHash    string   `json:"actual_hash"`
	Changed       []string `json:"changed,omitempty"`
	Missing       []string `json:"missing,omitempty"`
	Added         []string `json:"added,omitempty"`
	TamperLogPath string   `json:"tamper_log,omitempty"`
}

// TamperEvent records one manifest mismatch.
type TamperEvent struct {
	Timestamp    string   `json:"timestamp"`
	StateDir     string   `json:"state_dir"`
	ExpectedHash string   `json:"expected_hash"`
	ActualHash   string   `json:"actual_hash"`
	Changed      []string `json:"changed,omitempty"`
	Missing      []string `json:"missing,omitempty"`
	Added        []string `json:"added,omitempty"`
	Hostname     string   `json:"hostname"`
	Type         string   `json:"type"`
}

// Verify recomputes the digests in stateDir and compares them with the
// manifest. On mismatch a tamper event is appended to the tamper log and
// the returned error wraps ErrTampered.
func Verify(stateDir string) (Report, error) {
	m, err := LoadManifest(stateDir)
	if err != nil {
		return Report{}, err
	}
	files, err := hashTracked(stateDir)
	if err != nil {
		return Report{}, err
	}

	r := Report{ExpectedHash: m.StructureHash, ActualHash: structureHash(files)}
	for name, want := range m.Files {
		got, ok := files[name]
		switch {
		case !ok:
			r.Missing = append(r.Missing, name)
		case got != want:
			r.Changed = append(r.Changed, name)
		}
	}
	for name := range files {
		if _, ok := m.Files[name]; !ok {
			r.Added = append(r.Added, name)
		}
	}
	sort.Strings(r.Changed)
	sort.Strings(r.Missing)
	sort.Strings(r.Added)

	r.Valid = r.ExpectedHash == r.ActualHash && len(r.Changed)+len(r.Missing)+len(r.Added) == 0
	if r.Valid {
		return r, nil
	}

	event := TamperEvent{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		StateDir:     stateDir,
		ExpectedHash: r.ExpectedHash,
		ActualHash:   r.ActualHash,
		Changed:      r.Changed,
		Missing:      r.Missing,
		Added:        r.Added,
		Type:         "state_tamper",
	}
	event.Hostname, _ = os.Hostname()
	r.TamperLogPath = filepath.Join(stateDir, TamperLogFile)
	if err := writeTamperEvent(r.TamperLogPath, event); err != nil {
		return r, fmt.Errorf("%w (tamper log: %v)", ErrTampered, err)
	}
	return r, ErrTampered
}

func writeTamperEvent(path string, event TamperEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
