package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/natemcgrady/web-based-ide/internal/database"
)

// DatabaseStore is the shared backend for multi-process deployments. Rows
// carry a TTL column: Get and ListByUser treat expired rows as misses,
// matching a cache with native per-key expiry, while All still surfaces
// them so the cleanup sweep can delete them. The user_id index doubles as
// the per-user set index.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

func (s *DatabaseStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var row database.SessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s.expired(&row) {
		return nil, nil
	}
	return fromRow(&row), nil
}

func (s *DatabaseStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	var rows []database.SessionRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	result := make([]*Session, 0, len(rows))
	for i := range rows {
		if s.expired(&rows[i]) {
			continue
		}
		result = append(result, fromRow(&rows[i]))
	}
	return result, nil
}

func (s *DatabaseStore) Upsert(ctx context.Context, sess *Session, ttl time.Duration) error {
	row := toRow(sess)
	row.TTLExpiresUnix = s.now().Add(ttl).Unix()
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *DatabaseStore) Remove(ctx context.Context, sessionID, userID string) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Delete(&database.SessionRow{}).Error
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// All returns every stored row, including TTL-expired ones. The cleanup
// sweep is the only caller and is what deletes expired rows; hiding them
// here would leave their records and sandboxes orphaned forever.
func (s *DatabaseStore) All(ctx context.Context) ([]*Session, error) {
	var rows []database.SessionRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}
	result := make([]*Session, 0, len(rows))
	for i := range rows {
		result = append(result, fromRow(&rows[i]))
	}
	return result, nil
}

func (s *DatabaseStore) expired(row *database.SessionRow) bool {
	return row.TTLExpiresUnix > 0 && s.now().Unix() > row.TTLExpiresUnix
}

func toRow(sess *Session) *database.SessionRow {
	return &database.SessionRow{
		SessionID:        sess.SessionID,
		UserID:           sess.UserID,
		ProjectID:        sess.ProjectID,
		SandboxID:        sess.SandboxID,
		Status:           string(sess.Status),
		Cwd:              sess.Cwd,
		PreviewPort:      sess.PreviewPort,
		PreviewCommandID: sess.PreviewCommandID,
		CreatedAt:        sess.CreatedAt,
		UpdatedAt:        sess.UpdatedAt,
		ExpiresAt:        sess.ExpiresAt,
	}
}

func fromRow(row *database.SessionRow) *Session {
	return &Session{
		SessionID:        row.SessionID,
		UserID:           row.UserID,
		ProjectID:        row.ProjectID,
		SandboxID:        row.SandboxID,
		Status:           Status(row.Status),
		Cwd:              row.Cwd,
		PreviewPort:      row.PreviewPort,
		PreviewCommandID: row.PreviewCommandID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		ExpiresAt:        row.ExpiresAt,
	}
}

var _ Store = (*DatabaseStore)(nil)
