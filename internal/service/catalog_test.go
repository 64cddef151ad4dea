package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/apperr"
	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
	"github.com/iliyamo/property-rental-api/internal/testutil"
)

func TestCatalogReads(t *testing.T) {
	buildings := &testutil.Buildings{
		Rows:      []model.Building{{ID: 1, Name: "Résidence Fann"}, {ID: 2, Name: "Immeuble Plateau"}},
		StatsByID: map[uint64]model.BuildingStats{1: {PropertyCount: 4, OccupiedCount: 3, MonthlyRent: decimal.NewFromInt(400000)}},
	}
	props := testutil.NewProperties(
		model.Property{ID: 20, BuildingID: ptr(uint64(1)), Name: "Apt 2B", Status: model.PropertyOccupied},
		model.Property{ID: 21, BuildingID: ptr(uint64(1)), Name: "Apt 3A", Status: model.PropertyAvailable},
	)
	contracts := testutil.NewContracts(model.Contract{ID: 5, TenantID: 3, PropertyID: 20, State: model.ContractActive})
	props.Contracts = contracts
	cat := NewCatalog(buildings, props, contracts, testutil.NewSchedules(), testutil.NewInvoices())
	ctx := context.Background()

	bs, err := cat.Buildings(ctx, "fann")
	require.NoError(t, err)
	require.Len(t, bs, 1)

	b, err := cat.Building(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 75.0, b.Stats.OccupancyRate())
	_, err = cat.Building(ctx, 9)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	free, err := cat.Properties(ctx, repository.PropertyFilter{Status: model.PropertyAvailable})
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, uint64(21), free[0].ID)

	p, err := cat.Property(ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, p.Current)
	assert.Equal(t, uint64(5), p.Current.ID)
	p, err = cat.Property(ctx, 21)
	require.NoError(t, err)
	assert.Nil(t, p.Current)

	rented, err := cat.RentedBy(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, rented, 1)

	d, err := cat.Contract(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), d.Contract.PropertyID)
	_, err = cat.Contract(ctx, 6)
	assert.ErrorIs(t, err, ErrContractNotFound)
}
