package avatarsdk

import (
	"context"
	"net/http"
)

// Product is an affiliate product an avatar can present during a session.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"url,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// ListProductsResponse is the response for listing affiliate products.
type ListProductsResponse struct {
	Object string     `json:"object"`
	Data   []*Product `json:"data"`
}

// ListProducts returns the affiliate products configured for the account.
func (c *Client) ListProducts(ctx context.Context) ([]*Product, error) {
	var resp ListProductsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/products", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
