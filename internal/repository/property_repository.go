package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-rental-api/internal/model"
)

const propertySelect = `SELECT p.id,p.building_id,COALESCE(b.name,'') AS building_name,p.name,p.reference,
p.property_type,p.status,p.floor,p.surface,p.rooms,p.monthly_rent,p.charges,p.description,p.created_at
FROM properties p LEFT JOIN buildings b ON b.id=p.building_id`

// PropertyFilter narrows List. Zero values are ignored.
type PropertyFilter struct {
	Query      string
	Status     string
	BuildingID uint64
}

type PropertyRepo struct{ DB *sqlx.DB }

func NewPropertyRepo(db *sqlx.DB) *PropertyRepo { return &PropertyRepo{DB: db} }

// List returns properties matching f ordered by building then name.
func (r *PropertyRepo) List(ctx context.Context, f PropertyFilter) ([]model.Property, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(p.name LIKE ? OR p.reference LIKE ?)")
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	if f.Status != "" {
		where = append(where, "p.status=?")
		args = append(args, f.Status)
	}
	if f.BuildingID != 0 {
		where = append(where, "p.building_id=?")
		args = append(args, f.BuildingID)
	}
	q := propertySelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.name, p.name"
	var out []model.Property
	err := r.DB.SelectContext(ctx, &out, q, args...)
	return out, err
}

// Get fetches one property.
func (r *PropertyRepo) Get(ctx context.Context, id uint64) (model.Property, error) {
	var p model.Property
	err := r.DB.GetContext(ctx, &p, propertySelect+" WHERE p.id=?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrPropertyNotFound
	}
	return p, err
}

// ListRentedBy returns the properties under an active contract of tenant.
func (r *PropertyRepo) ListRentedBy(ctx context.Context, tenantID uint64) ([]model.Property, error) {
	var out []model.Property
	err := r.DB.SelectContext(ctx, &out, propertySelect+`
		JOIN rental_contracts c ON c.property_id=p.id
		WHERE c.tenant_id=? AND c.state='active' ORDER BY p.name`, tenantID)
	return out, err
}

// SetStatus updates a property's occupancy status.
func (r *PropertyRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE properties SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrPropertyNotFound)
}
