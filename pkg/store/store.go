package store

import (
	"github.com/afraznein/ktpfleet/pkg/types"
)

// Store is the interface for run-history persistence
type Store interface {
	// Deploys
	PutDeploy(record *types.DeployRecord) error
	ListDeploys(limit int) ([]*types.DeployRecord, error)

	// Backups
	PutBackup(record *types.BackupRecord) error
	ListBackups(limit int) ([]*types.BackupRecord, error)

	// Maintenance runs
	PutRun(record *types.MaintenanceRecord) error
	ListRuns(limit int) ([]*types.MaintenanceRecord, error)

	// Utility
	Close() error
}
