package db

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"gorm.io/gorm"
)

// SchemaHealer repairs drift on tables owned by the acceptance pipeline.
// Repairs are strictly additive: missing tables are created and missing
// columns are added; nothing is altered or dropped.
type SchemaHealer struct {
	db     *gorm.DB
	models []any
	logg   *logger.Logger
	mu     sync.Mutex
}

// NewSchemaHealer returns a healer covering the supplied GORM models.
func NewSchemaHealer(db *gorm.DB, logg *logger.Logger, models ...any) *SchemaHealer {
	return &SchemaHealer{db: db, models: models, logg: logg}
}

// Heal creates missing tables and adds missing columns for every registered model.
func (h *SchemaHealer) Heal(ctx context.Context) error {
	if h == nil || h.db == nil {
		return fmt.Errorf("schema healer not configured")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := h.db.WithContext(ctx)
	migrator := conn.Migrator()
	for _, model := range h.models {
		if !migrator.HasTable(model) {
			if err := migrator.CreateTable(model); err != nil {
				return fmt.Errorf("create table for %T: %w", model, err)
			}
			h.info(ctx, model, "", "db.schema_heal.table_created")
			continue
		}

		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse schema for %T: %w", model, err)
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || migrator.HasColumn(model, field.DBName) {
				continue
			}
			if err := migrator.AddColumn(model, field.DBName); err != nil {
				return fmt.Errorf("add column %s.%s: %w", stmt.Schema.Table, field.DBName, err)
			}
			h.info(ctx, model, field.DBName, "db.schema_heal.column_added")
		}
	}
	return nil
}

// Run executes op. When op fails because a table or column is missing, one
// additive heal is attempted and op is retried once. Drift that survives the
// heal surfaces as CodeSchemaDrift. op must be self-contained (a whole
// transaction) because Postgres aborts a transaction after the failing statement.
func (h *SchemaHealer) Run(ctx context.Context, op func() error) error {
	err := op()
	if !IsUndefinedObject(err) {
		return err
	}
	if h == nil {
		return pkgerrors.Wrap(pkgerrors.CodeSchemaDrift, err, "schema update required")
	}

	if h.logg != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "db.schema_drift.detected")
	}
	if healErr := h.Heal(ctx); healErr != nil {
		if h.logg != nil {
			h.logg.Error(ctx, "db.schema_heal.failed", healErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeSchemaDrift, err, "schema update required")
	}

	err = op()
	if IsUndefinedObject(err) {
		return pkgerrors.Wrap(pkgerrors.CodeSchemaDrift, err, "schema update required")
	}
	return err
}

func (h *SchemaHealer) info(ctx context.Context, model any, column, msg string) {
	if h.logg == nil {
		return
	}
	fields := map[string]any{"model": fmt.Sprintf("%T", model)}
	if column != "" {
		fields["column"] = column
	}
	h.logg.Info(h.logg.WithFields(ctx, fields), msg)
}
