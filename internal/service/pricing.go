package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// quoteCart prices a cart from the catalog. It is the only place prices are
// computed: order creation and payment intents both go through it, and any
// client-supplied price is ignored.
func quoteCart(ctx context.Context, products repository.ProductLookup, lines []model.CartLine) (*model.Quote, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity <= 0 || line.Quantity > model.MaxQuantity {
			return nil, ErrInvalidQuantity
		}
	}

	quote := &model.Quote{Lines: make([]model.QuoteLine, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		product, err := products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product %d: %w", line.ProductID, err)
		}
		if product == nil {
			return nil, &ProductNotFoundError{ID: line.ProductID}
		}
		quote.Lines = append(quote.Lines, model.QuoteLine{Product: *product, Quantity: line.Quantity})
		quote.Total = quote.Total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if _, err := quote.MinorUnits(); err != nil {
		return nil, ErrAmountTooLarge
	}
	return quote, nil
}
