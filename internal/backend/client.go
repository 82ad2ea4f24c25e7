// Package backend предоставляет клиент для REST API магазина:
// каталог товаров, сервис счетов и платёжный шлюз мобильных денег.
package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с backend магазина.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к backend магазина по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) url(path string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("backend client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return base + path, nil
}

type serviceErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// serviceError читает тело неуспешного ответа и возвращает ServiceError
// с сообщением сервера либо с запасным сообщением.
func serviceError(resp *http.Response, fallback string) *ServiceError {
	message := fallback

	var body serviceErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Error != "" {
			message = body.Error
		} else if body.Message != "" {
			message = body.Message
		}
	}

	return &ServiceError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
