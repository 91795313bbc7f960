package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
)

// RankedDriver is a dispatch candidate together with the stats it was ranked by.
type RankedDriver struct {
	DriverID uuid.UUID
	Stats    model.DriverStats
}

// DriverDirectory answers which drivers may receive an order right now.
type DriverDirectory struct {
	drivers *repository.DriverRepository
}

func NewDriverDirectory(drivers *repository.DriverRepository) *DriverDirectory {
	return &DriverDirectory{drivers: drivers}
}

// ListEligibleDrivers returns free online drivers in the region, best first.
// When the region has nobody eligible the search widens to every region.
func (d *DriverDirectory) ListEligibleDrivers(ctx context.Context, regionID uuid.UUID, excluded []uuid.UUID) ([]RankedDriver, error) {
	ids, err := d.drivers.ListFreeOnline(ctx, &regionID, excluded)
	if err != nil {
		return nil, fmt.Errorf("list regional drivers: %w", err)
	}
	if len(ids) == 0 {
		ids, err = d.drivers.ListFreeOnline(ctx, nil, excluded)
		if err != nil {
			return nil, fmt.Errorf("list drivers: %w", err)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stats, err := d.drivers.StatsByDriverIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load driver stats: %w", err)
	}

	ranked := make([]RankedDriver, 0, len(ids))
	for _, id := range ids {
		s, ok := stats[id]
		if !ok {
			s = model.DefaultDriverStats(id)
		}
		ranked = append(ranked, RankedDriver{DriverID: id, Stats: s})
	}
	RankDrivers(ranked)
	return ranked, nil
}

// RankDrivers orders candidates by acceptance rate, then rating, then
// completed orders, all descending. Ties fall back to the driver id.
func RankDrivers(drivers []RankedDriver) {
	sort.Slice(drivers, func(i, j int) bool {
		a, b := drivers[i].Stats, drivers[j].Stats
		if a.AcceptanceRate != b.AcceptanceRate {
			return a.AcceptanceRate > b.AcceptanceRate
		}
		if a.AverageRating != b.AverageRating {
			return a.AverageRating > b.AverageRating
		}
		if a.CompletedOrders != b.CompletedOrders {
			return a.CompletedOrders > b.CompletedOrders
		}
		return drivers[i].DriverID.String() < drivers[j].DriverID.String()
	})
}
