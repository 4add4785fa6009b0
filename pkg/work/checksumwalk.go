package work

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/vulntor/jobkit/pkg/jobs"
)

const KindChecksumWalk = "checksum-walk"

func init() {
	Register(KindChecksumWalk, func(id string, params map[string]any) (jobs.Executor, error) {
		root, err := cast.ToStringE(params["root"])
		if err != nil || root == "" {
			return nil, fmt.Errorf("checksum-walk requires a 'root' directory param")
		}
		return &ChecksumWalk{id: id, root: root}, nil
	})
}

// ChecksumWalk hashes every regular file under a directory tree. It
// checkpoints between files, so cancellation and pause latency is bounded
// by the largest single file.
type ChecksumWalk struct {
	id   string
	root string

	// Sums maps relative paths to hex SHA-256 digests after a
	// successful run.
	Sums map[string]string
}

func (w *ChecksumWalk) ID() string   { return w.id }
func (w *ChecksumWalk) Kind() string { return KindChecksumWalk }

func (w *ChecksumWalk) Run(ctx context.Context, task *jobs.Task) error {
	var files []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", w.root, err)
	}

	w.Sums = make(map[string]string, len(files))
	for i, path := range files {
		if err := task.Checkpoint(ctx); err != nil {
			return err
		}

		sum, err := hashFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		w.Sums[rel] = sum
		task.Progress(i+1, len(files), rel)
	}

	log.Debug().Str("job_id", w.id).Int("files", len(files)).Msg("Checksum walk finished")
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
