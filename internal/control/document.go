package control

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is the on-disk control file's shape: command flags (one-shot
// except panic_stop) plus a free-form bag of tunable overrides.
type Document struct {
	PanicStop            bool           `json:"panic_stop,omitempty"`
	Resume               bool           `json:"resume,omitempty"`
	ReloadInstrumentsNow bool           `json:"reload_instruments_now,omitempty"`
	ForceFlatten         bool           `json:"force_flatten,omitempty"`
	ForceReauth          bool           `json:"force_reauth,omitempty"`
	Overrides            map[string]any `json:"-"`
	raw                  map[string]any
}

var oneShotKeys = []string{"resume", "reload_instruments_now", "force_flatten", "force_reauth"}

// ReadDocument reads and parses the control file. A missing file is not an
// error: it returns an empty Document, matching the operator simply not
// having created one yet.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Document{Overrides: map[string]any{}}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read control document: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// A malformed control document is treated the same as an absent one:
		// trading must not stall on an operator typo.
		return Document{Overrides: map[string]any{}}, nil
	}

	doc := Document{raw: raw, Overrides: map[string]any{}}
	doc.PanicStop, _ = raw["panic_stop"].(bool)
	doc.Resume, _ = raw["resume"].(bool)
	doc.ReloadInstrumentsNow, _ = raw["reload_instruments_now"].(bool)
	doc.ForceFlatten, _ = raw["force_flatten"].(bool)
	doc.ForceReauth, _ = raw["force_reauth"].(bool)

	for k, v := range raw {
		switch k {
		case "panic_stop", "resume", "reload_instruments_now", "force_flatten", "force_reauth":
		default:
			doc.Overrides[k] = v
		}
	}
	return doc, nil
}

// ClearOneShotFlags rewrites the control document with every one-shot flag
// reset to false, so a command fires exactly once. Uses a write-temp-then-
// rename so a crash mid-write never leaves a truncated control file behind.
func ClearOneShotFlags(path string, doc Document) error {
	if doc.raw == nil {
		return nil
	}
	for _, k := range oneShotKeys {
		if _, present := doc.raw[k]; present {
			doc.raw[k] = false
		}
	}
	return writeAtomic(path, doc.raw)
}

func writeAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal control document: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".control-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp control file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp control file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp control file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp control file: %w", err)
	}
	return nil
}
