package service

import (
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// ValidateStock checks requested quantities against live inventory and the
// product active flag. It must only be called on product rows read inside
// the checkout transaction; a check against rows read outside that
// transaction is a race, not a guarantee.
func ValidateStock(lines []models.CartLine, products map[string]models.Product) error {
	// The same product may appear on several cart lines; stock is judged
	// against the summed quantity per product, not per line.
	requested := make(map[string]int, len(lines))
	productOrder := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := products[line.ProductID]; !ok {
			// Unknown products fail the build later; the stock check only
			// judges lines that resolved to a live row.
			continue
		}
		if _, seen := requested[line.ProductID]; !seen {
			productOrder = append(productOrder, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	var issues []models.StockIssue
	for _, productID := range productOrder {
		product := products[productID]
		quantity := requested[productID]

		if !product.IsActive || quantity > product.StockQuantity {
			issues = append(issues, models.StockIssue{
				ProductID: productID,
				Requested: quantity,
				Available: product.StockQuantity,
				IsActive:  product.IsActive,
			})
		}
	}

	if len(issues) > 0 {
		return &models.StockConflictError{Issues: issues}
	}
	return nil
}
