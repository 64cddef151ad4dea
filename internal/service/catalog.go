package service

import (
	"context"
	"errors"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

// BuildingDetail is a building with its aggregate figures.
type BuildingDetail struct {
	Building model.Building
	Stats    model.BuildingStats
}

// PropertyDetail is a property with its active contract, if any.
type PropertyDetail struct {
	Property model.Property
	Current  *model.Contract
}

// ContractDetail is a contract with its schedule and invoices.
type ContractDetail struct {
	Contract model.Contract
	Schedule []model.ScheduleEntry
	Invoices []model.Invoice
}

// Catalog serves the read side of the rental API.
type Catalog struct {
	buildings  BuildingStore
	properties PropertyStore
	contracts  ContractStore
	schedules  ScheduleStore
	invoices   InvoiceStore
}

func NewCatalog(b BuildingStore, p PropertyStore, c ContractStore, s ScheduleStore, i InvoiceStore) *Catalog {
	return &Catalog{buildings: b, properties: p, contracts: c, schedules: s, invoices: i}
}

func (c *Catalog) Buildings(ctx context.Context, q string) ([]model.Building, error) {
	out, err := c.buildings.List(ctx, q)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (c *Catalog) Building(ctx context.Context, id uint64) (BuildingDetail, error) {
	b, err := c.buildings.Get(ctx, id)
	if errors.Is(err, repository.ErrBuildingNotFound) {
		return BuildingDetail{}, apperr.NotFound("building_not_found", "building not found")
	}
	if err != nil {
		return BuildingDetail{}, apperr.Internal(err)
	}
	stats, err := c.buildings.Stats(ctx, id)
	if err != nil {
		return BuildingDetail{}, apperr.Internal(err)
	}
	return BuildingDetail{Building: b, Stats: stats}, nil
}

func (c *Catalog) Properties(ctx context.Context, f repository.PropertyFilter) ([]model.Property, error) {
	out, err := c.properties.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// RentedBy lists the properties a tenant currently occupies.
func (c *Catalog) RentedBy(ctx context.Context, tenantID uint64) ([]model.Property, error) {
	out, err := c.properties.ListRentedBy(ctx, tenantID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (c *Catalog) Property(ctx context.Context, id uint64) (PropertyDetail, error) {
	p, err := c.properties.Get(ctx, id)
	if errors.Is(err, repository.ErrPropertyNotFound) {
		return PropertyDetail{}, apperr.NotFound("property_not_found", "property not found")
	}
	if err != nil {
		return PropertyDetail{}, apperr.Internal(err)
	}
	d := PropertyDetail{Property: p}
	cur, err := c.contracts.ActiveForProperty(ctx, id)
	switch {
	case err == nil:
		d.Current = &cur
	case !errors.Is(err, repository.ErrContractNotFound):
		return d, apperr.Internal(err)
	}
	return d, nil
}

func (c *Catalog) Contracts(ctx context.Context, f repository.ContractFilter) ([]model.Contract, error) {
	out, err := c.contracts.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (c *Catalog) Contract(ctx context.Context, id uint64) (ContractDetail, error) {
	k, err := c.contracts.Get(ctx, id)
	if errors.Is(err, repository.ErrContractNotFound) {
		return ContractDetail{}, ErrContractNotFound
	}
	if err != nil {
		return ContractDetail{}, apperr.Internal(err)
	}
	d := ContractDetail{Contract: k}
	if d.Schedule, err = c.schedules.ListByContract(ctx, id); err != nil {
		return d, apperr.Internal(err)
	}
	if d.Invoices, err = c.invoices.List(ctx, repository.InvoiceFilter{ContractID: id}); err != nil {
		return d, apperr.Internal(err)
	}
	return d, nil
}
