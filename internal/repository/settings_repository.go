package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

// SettingsRepo reads and writes system parameters and the payment
// front-end configuration.
type SettingsRepo struct{ DB *sqlx.DB }

func NewSettingsRepo(db *sqlx.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// Param returns the raw value of key.
func (r *SettingsRepo) Param(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.GetContext(ctx, &v, "SELECT value FROM system_parameters WHERE param_key=?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrParamNotFound
	}
	return v, err
}

// Params returns every parameter whose key starts with prefix.
func (r *SettingsRepo) Params(ctx context.Context, prefix string) (map[string]string, error) {
	var rows []model.SystemParameter
	if err := r.DB.SelectContext(ctx, &rows,
		"SELECT param_key,value,updated_at FROM system_parameters WHERE param_key LIKE ? ORDER BY param_key",
		prefix+"%"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, p := range rows {
		out[p.Key] = p.Value
	}
	return out, nil
}

// SetParam inserts or overwrites a parameter.
func (r *SettingsRepo) SetParam(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO system_parameters (param_key, value) VALUES (?,?) ON DUPLICATE KEY UPDATE value=VALUES(value)",
		key, value)
	return err
}

// ActiveFrontConfig returns the most recently updated active front config.
func (r *SettingsRepo) ActiveFrontConfig(ctx context.Context) (model.FrontConfig, error) {
	var fc model.FrontConfig
	err := r.DB.GetContext(ctx, &fc, `SELECT id,name,base_url,payment_path,active,auto_send_reminders,updated_at
		FROM payment_front_configs WHERE active=1 ORDER BY updated_at DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return fc, ErrFrontConfigNotFound
	}
	return fc, err
}

// SaveFrontConfig inserts a config. When it is active every other config is
// deactivated in the same transaction.
func (r *SettingsRepo) SaveFrontConfig(ctx context.Context, fc *model.FrontConfig) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if fc.Active {
		if _, err := tx.ExecContext(ctx, "UPDATE payment_front_configs SET active=0 WHERE active=1"); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO payment_front_configs (name, base_url, payment_path, active, auto_send_reminders) VALUES (?,?,?,?,?)",
		fc.Name, fc.BaseURL, fc.PaymentPath, fc.Active, fc.AutoSendReminders)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fc.ID = uint64(id)
	return tx.Commit()
}
