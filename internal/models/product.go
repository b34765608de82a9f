package models

// Product is a live catalog row as read inside the checkout transaction.
// Prices are integer euro cents.
type Product struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	SKU            string   `json:"sku"`
	Vintage        int      `json:"vintage"`
	Varietal       string   `json:"varietal"`
	Region         string   `json:"region"`
	AlcoholContent float64  `json:"alcohol_content"`
	VolumeML       int      `json:"volume_ml"`
	Certifications []string `json:"certifications,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	PriceCents     int64    `json:"price_cents"`
	StockQuantity  int      `json:"stock_quantity"`
	IsActive       bool     `json:"is_active"`
}

// Snapshot freezes the catalog fields of the product for embedding into an
// order line. Certifications are copied so later catalog edits cannot reach
// into a persisted order.
func (p *Product) Snapshot() ProductSnapshot {
	certs := make([]string, len(p.Certifications))
	copy(certs, p.Certifications)

	return ProductSnapshot{
		Name:           p.Name,
		SKU:            p.SKU,
		Vintage:        p.Vintage,
		Varietal:       p.Varietal,
		Region:         p.Region,
		AlcoholContent: p.AlcoholContent,
		VolumeML:       p.VolumeML,
		Certifications: certs,
		ImageURL:       p.ImageURL,
		UnitPriceCents: p.PriceCents,
	}
}

// CartLine is a requested position as submitted by the cart collaborator.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}
