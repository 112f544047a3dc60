package poller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirectorySource serves the newest JPEG dropped into a directory. Camera
// gateways that cannot speak HTTP can simply write stills to a shared folder.
type DirectorySource struct {
	Dir string
}

func (d *DirectorySource) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame dir: %w", err)
	}

	var newest string
	var newestAt time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = e.Name()
			newestAt = info.ModTime()
		}
	}
	if newest == "" {
		return nil, fmt.Errorf("no frames in %s", d.Dir)
	}
	return os.ReadFile(filepath.Join(d.Dir, newest))
}
