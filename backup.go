package framestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danthegoodman1/framestore/s3"
	"github.com/danthegoodman1/framestore/utils"
)

// Backup writes a consistent snapshot of the container to dest. The
// snapshot is taken online, readers and writers are not blocked.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup destination %s already exists", dest)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("error in VACUUM INTO: %w", err)
	}
	logger.Debug().Str("path", s.path).Str("dest", dest).Msg("wrote backup")
	return nil
}

// BackupToS3 snapshots the container and uploads it. Returns the object
// key, which sorts by creation time.
func (s *Store) BackupToS3(ctx context.Context, prefix string) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("framestore-backup-%s.db", utils.GenRandomID("")))
	if err := s.Backup(ctx, tmp); err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	b, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("error in os.ReadFile: %w", err)
	}
	key := fmt.Sprintf("%s%s.db", prefix, utils.GenKSortedID("backup_"))
	contentType := "application/octet-stream"
	if _, err := s3.WriteBytesToS3(ctx, key, bytes.NewReader(b), &contentType); err != nil {
		return "", fmt.Errorf("error in s3.WriteBytesToS3: %w", err)
	}
	return key, nil
}

// RestoreFromS3 downloads a snapshot object to path. The file must not
// already exist; open it with Open afterwards.
func RestoreFromS3(ctx context.Context, key, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("restore destination %s already exists", path)
	}
	b, err := s3.ReadBytesFromS3(ctx, key)
	if err != nil {
		return fmt.Errorf("error in s3.ReadBytesFromS3: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("error in os.WriteFile: %w", err)
	}
	return nil
}
