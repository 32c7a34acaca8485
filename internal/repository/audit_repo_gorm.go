package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"techtrack/internal/model"
)

// AuditRow is the gorm mapping of the audit_entries table.
type AuditRow struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Action        string    `gorm:"not null;index"`
	OccurredAt    time.Time `gorm:"not null;index"`
	ActorUserID   int64
	ActorUsername string
	ActorIP       string
	Status        string `gorm:"not null"`
	Resource      string
	ErrorText     string
}

func (AuditRow) TableName() string {
	return "audit_entries"
}

type GormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Append(ctx context.Context, entry model.AuditEntry) error {
	row := AuditRow{
		Action:        entry.Action,
		OccurredAt:    entry.OccurredAt,
		ActorUserID:   entry.Actor.UserID,
		ActorUsername: entry.Actor.Username,
		ActorIP:       entry.Actor.IP,
		Status:        entry.Status,
		Resource:      entry.Resource,
		ErrorText:     entry.Error,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *GormAuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error) {
	var actorFilter *int64
	if actorID := strings.TrimSpace(query.ActorID); actorID != "" {
		id, err := strconv.ParseInt(actorID, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("parse actor id %q: %w", actorID, err)
		}
		actorFilter = &id
	}

	filtered := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&AuditRow{})
		if action := strings.TrimSpace(query.Action); action != "" {
			tx = tx.Where("lower(action) = lower(?)", action)
		}
		if actorFilter != nil {
			tx = tx.Where("actor_user_id = ?", *actorFilter)
		}
		if status := strings.TrimSpace(query.Status); status != "" {
			tx = tx.Where("lower(status) = lower(?)", status)
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	rows := make([]AuditRow, 0)
	err := filtered().Order("occurred_at DESC").Order("id DESC").
		Offset((query.Page - 1) * query.Limit).Limit(query.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}

	entries := make([]model.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, model.AuditEntry{
			ID:         row.ID,
			Action:     row.Action,
			OccurredAt: row.OccurredAt.UTC(),
			Actor:      model.AuditActor{UserID: row.ActorUserID, Username: row.ActorUsername, IP: row.ActorIP},
			Status:     row.Status,
			Resource:   row.Resource,
			Error:      row.ErrorText,
		})
	}

	return entries, int(total), nil
}
