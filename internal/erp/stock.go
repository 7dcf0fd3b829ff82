package erp

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/stock"
)

type binRow struct {
	Warehouse   string          `json:"warehouse"`
	ActualQty   decimal.Decimal `json:"actual_qty"`
	ReservedQty decimal.Decimal `json:"reserved_qty"`
}

// StockLevels reads the Bin doctype for an item and keeps the warehouses of the company.
// Available is actual minus reserved.
func (g *Gateway) StockLevels(ctx context.Context, company, itemCode string) ([]stock.Snapshot, error) {
	var bins []binRow
	err := g.client.ListDocuments(ctx, "Bin", Query{
		Filters: []Filter{Eq("item_code", itemCode)},
		Fields:  []string{"warehouse", "actual_qty", "reserved_qty"},
		Limit:   Unbounded,
	}, &bins)
	if err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		return nil, nil
	}

	allowed := map[string]bool{}
	if company != "" {
		var warehouses []struct {
			Name string `json:"name"`
		}
		err := g.client.ListDocuments(ctx, "Warehouse", Query{
			Filters: []Filter{Eq("company", company), Eq("is_group", 0)},
			Fields:  []string{"name"},
			Limit:   Unbounded,
		}, &warehouses)
		if err != nil {
			return nil, err
		}
		for _, w := range warehouses {
			allowed[w.Name] = true
		}
	}

	out := make([]stock.Snapshot, 0, len(bins))
	for _, b := range bins {
		if company != "" && !allowed[b.Warehouse] {
			continue
		}
		out = append(out, stock.Snapshot{
			ItemCode:  itemCode,
			Warehouse: b.Warehouse,
			Actual:    b.ActualQty,
			Reserved:  b.ReservedQty,
			Available: b.ActualQty.Sub(b.ReservedQty),
		})
	}
	return out, nil
}
