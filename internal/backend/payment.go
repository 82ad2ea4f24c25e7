package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mmeshcher/dukapay/internal/validation"
)

type stkPushRequest struct {
	InvoiceID   int64  `json:"invoice_id"`
	PhoneNumber string `json:"phone_number"`
}

type stkPushResponse struct {
	CustomerMessage string `json:"CustomerMessage"`
}

const defaultCustomerMessage = "Payment request sent! Ask the client to check their phone."

// RequestPayment инициирует push-платёж по счёту на указанный номер телефона
// и возвращает сообщение-подтверждение для показа пользователю. Вызов только
// запускает платёж, итоговый исход приходит отдельно.
func (c *Client) RequestPayment(ctx context.Context, invoiceID int64, phoneNumber string) (string, error) {
	phone, ok := validation.NormalizePhone(phoneNumber)
	if !ok {
		return "", &ValidationError{Message: "client phone number is required"}
	}

	url, err := c.url("/api/mpesa/stkpush")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(stkPushRequest{
		InvoiceID:   invoiceID,
		PhoneNumber: phone,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ServiceError{Message: "failed to process payment request"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", serviceError(resp, "failed to process payment request")
	}

	var result stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if result.CustomerMessage == "" {
		return defaultCustomerMessage, nil
	}

	return result.CustomerMessage, nil
}
