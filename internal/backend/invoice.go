package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mmeshcher/dukapay/internal/model"
)

type invoiceLineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int64 `json:"quantity"`
}

type createInvoiceRequest struct {
	UserID int64                `json:"user_id"`
	Items  []invoiceLineRequest `json:"items"`
}

type createInvoiceResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// CreateInvoice создаёт счёт из позиций корзины от имени указанного
// пользователя. Пустой список позиций и неположительные количества
// отклоняются до обращения к сервису счетов.
func (c *Client) CreateInvoice(ctx context.Context, userID int64, lines []model.CartLine) (*model.Invoice, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Message: "at least one item is required"}
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &ValidationError{Message: "item quantity must be positive"}
		}
	}

	url, err := c.url("/api/invoices/")
	if err != nil {
		return nil, err
	}

	payload := createInvoiceRequest{UserID: userID}
	for _, line := range lines {
		payload.Items = append(payload.Items, invoiceLineRequest{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: "failed to create invoice"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, serviceError(resp, "failed to create invoice")
	}

	var result createInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	status := model.StatusPending
	if result.Status != "" {
		status = model.StatusFromWire(result.Status)
	}

	return &model.Invoice{
		ID:     result.ID,
		UserID: userID,
		Status: status,
	}, nil
}

type invoiceLineResponse struct {
	ItemID   int64   `json:"item_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

type invoiceResponse struct {
	ID     int64                 `json:"id"`
	UserID int64                 `json:"user_id"`
	Status string                `json:"status"`
	Items  []invoiceLineResponse `json:"items"`
	Total  float64               `json:"total"`
}

// GetInvoice запрашивает текущий статус и состав счёта у сервиса счетов.
func (c *Client) GetInvoice(ctx context.Context, invoiceID int64) (*model.Invoice, error) {
	url, err := c.url("/api/invoices/" + strconv.FormatInt(invoiceID, 10))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: "unable to verify payment status"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serviceError(resp, "unable to verify payment status")
	}

	var result invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	invoice := &model.Invoice{
		ID:         result.ID,
		UserID:     result.UserID,
		Status:     model.StatusFromWire(result.Status),
		TotalCents: int64(result.Total * 100),
	}
	for _, line := range result.Items {
		invoice.Lines = append(invoice.Lines, model.InvoiceLine{
			ItemID:     line.ItemID,
			Name:       line.Name,
			PriceCents: int64(line.Price * 100),
			Quantity:   line.Quantity,
		})
	}

	return invoice, nil
}
