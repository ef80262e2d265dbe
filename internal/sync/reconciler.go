package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/store"
	"go.uber.org/zap"
)

// Checkpoint keys kept in sync_state.
const (
	KeyInstanceID      = "instance_id"
	KeyDirectorySynced = "directory_synced_at"
)

// Directory is the gateway's device-side address book.
type Directory interface {
	GetContacts(ctx context.Context) []store.Contact
	GetLIDMappings(ctx context.Context) []store.LIDMapping
}

// Reconciler manages sync checkpoints and folds the gateway's address book
// into the store after each connect.
type Reconciler struct {
	db     *store.DB
	dir    Directory
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewReconciler creates a new reconciler. dir may be nil.
func NewReconciler(db *store.DB, dir Directory, b *bus.Bus, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, dir: dir, bus: b, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value, or "" when unset.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// InstanceID returns the stable id of this session's store, creating it on
// first use. Watchers use it to tell a recreated instance from the old one.
func (r *Reconciler) InstanceID() (string, error) {
	id, err := r.GetCheckpoint(KeyInstanceID)
	if err != nil {
		return "", fmt.Errorf("read instance id: %w", err)
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if _, err := r.db.Exec(`INSERT OR IGNORE INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)`,
		KeyInstanceID, id, time.Now().UnixMilli()); err != nil {
		return "", fmt.Errorf("store instance id: %w", err)
	}
	// A concurrent writer may have won the insert.
	return r.GetCheckpoint(KeyInstanceID)
}

// SyncDirectory copies contacts and LID mappings from the gateway and merges
// LID chats into their phone number chats.
func (r *Reconciler) SyncDirectory(ctx context.Context) error {
	if r.dir == nil {
		return nil
	}
	if contacts := r.dir.GetContacts(ctx); len(contacts) > 0 {
		if err := r.db.BulkUpsertContacts(contacts); err != nil {
			return fmt.Errorf("upsert contacts: %w", err)
		}
	}
	if mappings := r.dir.GetLIDMappings(ctx); len(mappings) > 0 {
		if err := r.db.SyncLIDMap(mappings); err != nil {
			return fmt.Errorf("sync lid map: %w", err)
		}
		merged, err := r.db.ReconcileLIDs()
		if err != nil {
			return fmt.Errorf("reconcile lids: %w", err)
		}
		if merged > 0 {
			r.logger.Info("merged LID chats", zap.Int64("chats", merged))
		}
	}
	return r.UpdateCheckpoint(KeyDirectorySynced, strconv.FormatInt(time.Now().UnixMilli(), 10))
}

// Start runs SyncDirectory after every connect and history batch.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe(bus.NamespaceSync, 16)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind != bus.KindSyncConnected && evt.Kind != bus.KindSyncHistoryBatch {
					continue
				}
				if err := r.SyncDirectory(ctx); err != nil {
					r.logger.Warn("directory sync failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the background loop.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}
