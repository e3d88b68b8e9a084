package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EntityProduct = "product"
	EntityClient  = "client"
	EntityBill    = "bill"
	EntityExpense = "expense"
)

// entities maps an audit entity type onto a fresh model value. Only
// soft-deletable records are listed, so undo never removes rows.
var entities = map[string]func() any{
	EntityProduct: func() any { return &models.Product{} },
	EntityClient:  func() any { return &models.Client{} },
	EntityBill:    func() any { return &models.Bill{} },
	EntityExpense: func() any { return &models.Expense{} },
}

// restorable lists the entity types whose updates can be rolled back from
// the before snapshot. Bills are excluded because their lines live in a
// separate table.
var restorable = map[string]bool{
	EntityProduct: true,
	EntityClient:  true,
	EntityExpense: true,
}

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func WriteLog(db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record writes the entry and only logs a failure; the audited change has
// already been committed.
func Record(db *gorm.DB, log *zap.Logger, opts LogOptions) {
	if err := WriteLog(db, opts); err != nil {
		log.Warn("audit log not written",
			zap.String("entity", opts.EntityType),
			zap.Uint("entity_id", opts.EntityID),
			zap.Error(err))
	}
}

// UndoLog reverts the change recorded by entry logID and writes a matching
// undo entry. Create is reverted by soft-deleting, delete by restoring the
// soft-deleted row, update by writing the before snapshot back.
func UndoLog(db *gorm.DB, logID, userID uint, userName string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		if err := tx.First(&entry, logID).Error; err != nil {
			return apperror.FromDB(err, "Audit log", "")
		}
		if entry.IsUndone {
			return apperror.Validation("This change has already been undone")
		}

		factory, ok := entities[entry.EntityType]
		if !ok {
			return apperror.Validation(fmt.Sprintf("Unknown entity type: %s", entry.EntityType))
		}

		switch entry.Action {
		case models.AuditActionCreate:
			if err := tx.Delete(factory(), entry.EntityID).Error; err != nil {
				return apperror.Internal("undo create failed", err)
			}

		case models.AuditActionDelete:
			res := tx.Unscoped().Model(factory()).
				Where("id = ?", entry.EntityID).
				Update("deleted_at", nil)
			if res.Error != nil {
				return apperror.Internal("undo delete failed", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperror.NotFound("Deleted record no longer exists")
			}

		case models.AuditActionUpdate:
			if !restorable[entry.EntityType] {
				return apperror.Validation(fmt.Sprintf("Updates to %s cannot be undone", entry.EntityType))
			}
			if err := restoreEntity(tx, factory(), entry.EntityID, entry.BeforeData); err != nil {
				return err
			}

		default:
			return apperror.Validation("This action cannot be undone")
		}

		now := time.Now()
		if err := tx.Model(&entry).Updates(map[string]any{
			"is_undone": true,
			"undone_by": userID,
			"undone_at": now,
		}).Error; err != nil {
			return apperror.Internal("mark audit log failed", err)
		}

		undo := models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: "Undone: " + entry.Description,
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&undo).Error; err != nil {
			return apperror.Internal("write undo log failed", err)
		}
		return nil
	})
}

func restoreEntity(tx *gorm.DB, model any, id uint, data string) error {
	if data == "" || data == "null" {
		return apperror.Validation("No previous state recorded")
	}
	if err := json.Unmarshal([]byte(data), model); err != nil {
		return apperror.Internal("decode audit snapshot failed", err)
	}

	res := tx.Model(model).
		Where("id = ?", id).
		Select("*").
		Omit("id", "created_at", "deleted_at", clause.Associations).
		Updates(model)
	if res.Error != nil {
		return apperror.FromDB(res.Error, "Record", "")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Record no longer exists")
	}
	return nil
}
