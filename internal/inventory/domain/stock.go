package domain

// Demand is a request to take Quantity units of a product out of stock.
type Demand struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Product is the slice of the catalog the ledger works with.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Image      string `json:"image"`
	Stock      int    `json:"stock"`
}

// Snapshot captures a product's sale attributes at the moment its stock was
// taken. It is what an order line item stores.
type Snapshot struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Image      string `json:"image"`
	Quantity   int    `json:"quantity"`
}

func (p Product) Snapshot(qty int) Snapshot {
	return Snapshot{
		ProductID:  p.ID,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Image:      p.Image,
		Quantity:   qty,
	}
}

// Shortage describes why a demand could not be met.
type Shortage struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}
