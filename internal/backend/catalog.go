package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mmeshcher/dukapay/internal/model"
)

type itemResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
}

// ListItems запрашивает снимок каталога доступных товаров.
func (c *Client) ListItems(ctx context.Context) ([]model.Item, error) {
	url, err := c.url("/api/items/")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: "failed to fetch available items"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serviceError(resp, "failed to fetch available items")
	}

	var items []itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := make([]model.Item, 0, len(items))
	for _, it := range items {
		result = append(result, model.Item{
			ID:          it.ID,
			Name:        it.Name,
			PriceCents:  int64(it.Price * 100),
			Stock:       it.Stock,
			Description: it.Description,
			PhotoURL:    it.ImageURL,
		})
	}

	return result, nil
}
