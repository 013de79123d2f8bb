// Package fetcher downloads resolved bulletins to local storage.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// Fetcher downloads a remote document.
type Fetcher interface {
	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// FileName returns the local file name for the n-th (1-based) bulletin.
func FileName(n int) string {
	return fmt.Sprintf("bulletin_%d.pdf", n)
}

// FetchAll downloads every resolved link once, in first-appearance order,
// into destDir. Each download is a single attempt; failures are logged and
// left out of the result.
func FetchAll(ctx context.Context, f Fetcher, resolutions model.Resolutions, destDir string) ([]model.DocumentHandle, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetcher: create %s", destDir)
	}

	log := zap.L().With(zap.String("component", "fetcher"))

	var handles []model.DocumentHandle
	for i, res := range resolutions.Resolved() {
		path := filepath.Join(destDir, FileName(i+1))
		n, err := f.DownloadToFile(ctx, res.Link, path)
		if err != nil {
			log.Warn("bulletin download failed",
				zap.String("endpoint", res.Endpoint),
				zap.String("link", res.Link),
				zap.Error(err),
			)
			continue
		}
		log.Debug("bulletin downloaded",
			zap.String("link", res.Link),
			zap.String("path", path),
			zap.Int64("bytes", n),
		)
		handles = append(handles, model.DocumentHandle{
			Endpoint:  res.Endpoint,
			Link:      res.Link,
			LocalPath: path,
		})
	}

	log.Info("bulletins downloaded",
		zap.Int("downloaded", len(handles)),
		zap.Int("resolved", len(resolutions.Resolved())),
	)
	return handles, nil
}
