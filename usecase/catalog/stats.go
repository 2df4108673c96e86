package catalog

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

// Stats is the dashboard summary, computed from the cache only.
type Stats struct {
	TotalOrders   int               `json:"totalOrders"`
	TotalOffers   int               `json:"totalOffers"`
	ActiveOffers  int               `json:"activeOffers"`
	TotalRevenue  float64           `json:"totalRevenue"`
	TotalServices int               `json:"totalServices"`
	RecentOrders  []json.RawMessage `json:"recentOrders"`
}

const recentOrders = 5

func (c *Coordinator) Stats(ctx context.Context) (*Stats, error) {
	all := repository.CacheFilter{All: true}
	orders, err := c.cache.List(ctx, domain.KindOrder, all)
	if err != nil {
		return nil, err
	}
	offers, err := c.cache.List(ctx, domain.KindOffer, all)
	if err != nil {
		return nil, err
	}
	services, err := c.cache.List(ctx, domain.KindService, all)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalOrders:   len(orders),
		TotalOffers:   len(offers),
		TotalServices: len(services),
		RecentOrders:  make([]json.RawMessage, 0, recentOrders),
	}
	for i := range offers {
		if offers[i].Label("status") == "live" {
			stats.ActiveOffers++
		}
	}
	for i := range orders {
		stats.TotalRevenue += gjson.GetBytes(orders[i].Payload, "amount").Float()
		if i < recentOrders {
			stats.RecentOrders = append(stats.RecentOrders, orders[i].Payload)
		}
	}
	return stats, nil
}
