package storage

// BackupStatus summarizes how current the most recent backup is,
// mirroring storage.rs's BackupStatus.
type BackupStatus int

const (
	BackupStatusUpToDate BackupStatus = iota
	BackupStatusOutdated
	BackupStatusFailed
)

func (b BackupStatus) String() string {
	switch b {
	case BackupStatusUpToDate:
		return "UpToDate"
	case BackupStatusOutdated:
		return "Outdated"
	default:
		return "Failed"
	}
}

// staleBackupSeconds is how old the newest backup must be before
// StorageHealth reports it Outdated (storage.rs uses a 7-day window).
const staleBackupSeconds = 7 * 24 * 60 * 60

// StorageHealth is a point-in-time operational summary, mirroring
// storage.rs's StorageHealth.
type StorageHealth struct {
	LastIntegrityCheck *IntegrityCheckResult `json:"last_integrity_check"`
	BackupStatus       BackupStatus          `json:"backup_status"`
	CorruptionDetected bool                  `json:"corruption_detected"`
	DatabaseSizeBytes  int64                 `json:"database_size_bytes"`
}

// GetStorageHealth reports the store's current health: its last
// recorded integrity check, whether the newest backup is stale, and
// the database's on-disk size.
func (s *Store) GetStorageHealth(now int64) (*StorageHealth, error) {
	health := &StorageHealth{}

	check, ok, err := s.LastIntegrityCheck()
	if err != nil {
		return nil, err
	}
	if ok {
		health.LastIntegrityCheck = check
		health.CorruptionDetected = !check.IsValid
	}

	backups, err := s.ListBackups()
	if err != nil {
		return nil, err
	}
	switch {
	case len(backups) == 0:
		health.BackupStatus = BackupStatusFailed
	case now-backups[0].CreatedAt > staleBackupSeconds:
		health.BackupStatus = BackupStatusOutdated
	default:
		health.BackupStatus = BackupStatusUpToDate
	}

	size, err := s.Size()
	if err != nil {
		return nil, err
	}
	health.DatabaseSizeBytes = size
	return health, nil
}
