package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// Load reads the persisted event set. A missing file is an empty set; a
// file that cannot be parsed is an error so a later Save cannot discard it.
func Load(path string) ([]model.EventRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("no existing events file, starting fresh", zap.String("path", path))
		return []model.EventRecord{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "events: read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.EventRecord{}, nil
	}

	var out []model.EventRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "events: parse %s", path)
	}
	if out == nil {
		out = []model.EventRecord{}
	}
	zap.L().Info("loaded existing events", zap.String("path", path), zap.Int("count", len(out)))
	return out, nil
}

// Save writes the whole event set as one snapshot, replacing the file
// atomically.
func Save(path string, records []model.EventRecord) error {
	if records == nil {
		records = []model.EventRecord{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return eris.Wrap(err, "events: marshal")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "events: create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".events-*.json")
	if err != nil {
		return eris.Wrap(err, "events: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "events: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "events: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "events: replace %s", path)
	}

	zap.L().Info("saved events", zap.String("path", path), zap.Int("count", len(records)))
	return nil
}
