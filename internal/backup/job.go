package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Job periodically uploads the subscription database file to S3, grounded
// in the trade-archival job this bot does not need: a copy of the source
// of truth that survives disk loss, not a history feature (the spec's
// "feed history archival" non-goal is about post retention, not disaster
// recovery of the store itself).
type Job struct {
	writer  *Writer
	dbPath  string
	logger  *slog.Logger
	retain  int
	reader  *Reader
}

// NewJob creates a backup job for the database at dbPath. retain is how
// many backups to keep, counting the one just uploaded, before older ones
// are pruned (0 disables pruning).
func NewJob(writer *Writer, reader *Reader, dbPath string, retain int, logger *slog.Logger) *Job {
	return &Job{
		writer: writer,
		reader: reader,
		dbPath: dbPath,
		retain: retain,
		logger: logger.With(slog.String("component", "backup")),
	}
}

// Run performs a single backup: upload the current database file, then
// prune old backups beyond the retention count.
func (j *Job) Run(ctx context.Context) error {
	f, err := os.Open(j.dbPath)
	if err != nil {
		return fmt.Errorf("backup: opening database: %w", err)
	}
	defer f.Close()

	path := objectPath(time.Now().UTC())
	if err := j.writer.Put(ctx, path, f, "application/octet-stream"); err != nil {
		return fmt.Errorf("backup: uploading database: %w", err)
	}
	j.logger.Info("database backed up", slog.String("path", path))

	if j.retain > 0 {
		if err := j.prune(ctx); err != nil {
			j.logger.Warn("pruning old backups", slog.Any("error", err))
		}
	}

	return nil
}

func (j *Job) prune(ctx context.Context) error {
	objects, err := j.reader.List(ctx, "backup/")
	if err != nil {
		return err
	}
	if len(objects) <= j.retain {
		return nil
	}

	// Oldest first; LastModified from ListObjectsV2 is reliable enough for
	// pruning purposes without needing a second sort key.
	for i := 0; i < len(objects)-j.retain; i++ {
		oldest := objects[i]
		for k := i + 1; k < len(objects); k++ {
			if objects[k].LastModified.Before(oldest.LastModified) {
				objects[i], objects[k] = objects[k], objects[i]
				oldest = objects[i]
			}
		}
		if err := j.reader.Delete(ctx, oldest.Path); err != nil {
			return err
		}
		j.logger.Info("pruned old backup", slog.String("path", oldest.Path))
	}
	return nil
}

func objectPath(t time.Time) string {
	return fmt.Sprintf("backup/ksbot-%s.db", t.Format("20060102-150405"))
}
