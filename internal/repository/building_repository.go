package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const buildingCols = "id,name,code,street,city,description,manager_id,active,created_at"

type BuildingRepo struct{ DB *sqlx.DB }

func NewBuildingRepo(db *sqlx.DB) *BuildingRepo { return &BuildingRepo{DB: db} }

// List returns active buildings, optionally filtered by a name/code/city
// substring.
func (r *BuildingRepo) List(ctx context.Context, q string) ([]model.Building, error) {
	query := "SELECT " + buildingCols + " FROM buildings WHERE active=1"
	var args []any
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + q + "%"
		query += " AND (name LIKE ? OR code LIKE ? OR city LIKE ?)"
		args = append(args, like, like, like)
	}
	query += " ORDER BY name"
	var out []model.Building
	err := r.DB.SelectContext(ctx, &out, query, args...)
	return out, err
}

// Get fetches one building.
func (r *BuildingRepo) Get(ctx context.Context, id uint64) (model.Building, error) {
	var b model.Building
	err := r.DB.GetContext(ctx, &b, "SELECT "+buildingCols+" FROM buildings WHERE id=?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBuildingNotFound
	}
	return b, err
}

// Stats aggregates property counts, rent and unpaid customer invoices for
// one building.
func (r *BuildingRepo) Stats(ctx context.Context, id uint64) (model.BuildingStats, error) {
	var s model.BuildingStats
	err := r.DB.GetContext(ctx, &s, `SELECT
		COUNT(*) AS property_count,
		COALESCE(SUM(p.status='occupied'),0) AS occupied_count,
		COALESCE(SUM(p.status='available'),0) AS available_count,
		COALESCE(SUM(p.monthly_rent),0) AS monthly_rent,
		(SELECT COALESCE(SUM(i.amount_residual),0)
		   FROM invoices i
		   JOIN rental_contracts c ON c.id=i.contract_id
		   JOIN properties p2 ON p2.id=c.property_id
		  WHERE p2.building_id=? AND i.move_type='out_invoice' AND i.state='posted'
		    AND i.payment_state<>'paid') AS unpaid_total
		FROM properties p WHERE p.building_id=?`, id, id)
	return s, err
}
