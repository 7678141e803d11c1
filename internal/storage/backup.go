package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"gillean.network/gillean/internal/nodeerrors"
)

// BackupType mirrors storage.rs's BackupType (§4.7). Incremental and
// Differential both copy the full live database — bbolt has no native
// delta-snapshot primitive — but are recorded distinctly so a caller
// driving a backup schedule (e.g. hourly Incremental, nightly Full)
// can tell them apart in BackupInfo.
type BackupType int

const (
	BackupFull BackupType = iota
	BackupIncremental
	BackupDifferential
)

func (t BackupType) String() string {
	switch t {
	case BackupFull:
		return "Full"
	case BackupIncremental:
		return "Incremental"
	case BackupDifferential:
		return "Differential"
	default:
		return "Unknown"
	}
}

// BackupInfo mirrors storage.rs's BackupInfo: a record of one backup,
// kept in the backups bucket and also returned directly to the caller.
type BackupInfo struct {
	BackupID         string     `json:"backup_id"`
	CreatedAt        int64      `json:"created_at"`
	SizeBytes        int64      `json:"size_bytes"`
	BlockCount       uint64     `json:"block_count"`
	TransactionCount uint64     `json:"transaction_count"`
	IntegrityHash    string     `json:"integrity_hash"`
	BackupType       BackupType `json:"backup_type"`
}

// CreateBackup runs an integrity check (refusing to back up a database
// that already fails it), then copies the live database file via
// (*bbolt.Tx).CopyFile into backups/{uuid}.db, per §4.7/§6.
func (s *Store) CreateBackup(backupType BackupType, now int64) (*BackupInfo, error) {
	integrity, err := s.IntegrityCheck(now)
	if err != nil {
		return nil, err
	}
	if !integrity.IsValid {
		return nil, fmt.Errorf("%w: cannot create backup: data integrity check failed", nodeerrors.ErrStorageError)
	}

	if err := os.MkdirAll(s.backupDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create backup dir: %v", nodeerrors.ErrStorageError, err)
	}

	backupID := uuid.NewString()
	backupFile := filepath.Join(s.backupDir, backupID+".db")

	s.mu.Lock()
	err = s.db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(backupFile, 0600)
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: copy backup file: %v", nodeerrors.ErrStorageError, err)
	}

	fi, err := os.Stat(backupFile)
	if err != nil {
		return nil, fmt.Errorf("%w: stat backup file: %v", nodeerrors.ErrStorageError, err)
	}

	info := &BackupInfo{
		BackupID:         backupID,
		CreatedAt:        now,
		SizeBytes:        fi.Size(),
		BlockCount:       integrity.BlockCount,
		TransactionCount: integrity.TransactionCount,
		IntegrityHash:    integrity.Checksum,
		BackupType:       backupType,
	}
	if err := s.saveBackupInfo(info); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) saveBackupInfo(info *BackupInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("%w: marshal backup info: %v", nodeerrors.ErrStorageError, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBackups).Put([]byte(info.BackupID), data)
	})
}

// ListBackups returns every recorded backup, newest first.
func (s *Store) ListBackups() ([]*BackupInfo, error) {
	s.mu.Lock()
	var backups []*BackupInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBackups).ForEach(func(k, v []byte) error {
			info := &BackupInfo{}
			if err := json.Unmarshal(v, info); err != nil {
				return err
			}
			backups = append(backups, info)
			return nil
		})
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: list backups: %v", nodeerrors.ErrStorageError, err)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt > backups[j].CreatedAt })
	return backups, nil
}

// RestoreFromBackup replaces the live database with the contents of a
// previously created backup, per §4.7. It first takes a temporary Full
// backup of the current state (so a bad restore can itself be undone),
// then swaps the backup file into place. The underlying *bbolt.DB
// handle is closed for the swap and reopened on the restored file, so
// the Store stays usable after a successful restore; if the copy or the
// reopen fails, the handle is left closed.
func (s *Store) RestoreFromBackup(backupID string, now int64) error {
	backupFile := filepath.Join(s.backupDir, backupID+".db")
	if _, err := os.Stat(backupFile); err != nil {
		return fmt.Errorf("%w: backup file not found: %s", nodeerrors.ErrStorageError, backupFile)
	}

	tempBackup, err := s.CreateBackup(BackupFull, now)
	if err != nil {
		return fmt.Errorf("%w: create pre-restore safety backup: %v", nodeerrors.ErrStorageError, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close database before restore: %v", nodeerrors.ErrStorageError, err)
	}

	if err := copyFile(backupFile, s.path); err != nil {
		return fmt.Errorf("%w: restore from backup %s (pre-restore safety backup %s retained): %v",
			nodeerrors.ErrStorageError, backupID, tempBackup.BackupID, err)
	}

	db, err := bbolt.Open(s.path, 0600, nil)
	if err != nil {
		return fmt.Errorf("%w: reopen database after restore: %v", nodeerrors.ErrStorageError, err)
	}
	s.db = db
	return nil
}

// CleanupOldBackups removes every backup beyond the keepCount most
// recent, deleting both the backup file and its bucket record.
func (s *Store) CleanupOldBackups(keepCount int) (int, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= keepCount {
		return 0, nil
	}
	toRemove := backups[keepCount:]

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, b := range toRemove {
		backupFile := filepath.Join(s.backupDir, b.BackupID+".db")
		if err := os.Remove(backupFile); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("%w: remove backup file %s: %v", nodeerrors.ErrStorageError, backupFile, err)
		}
		err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketBackups).Delete([]byte(b.BackupID))
		})
		if err != nil {
			return removed, fmt.Errorf("%w: remove backup record %s: %v", nodeerrors.ErrStorageError, b.BackupID, err)
		}
		removed++
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}
