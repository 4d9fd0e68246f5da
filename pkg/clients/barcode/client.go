// Package barcode is the client for the external barcode-decoding API.
// Camera capture happens on the operator's device; this service only forwards
// captured frames and receives the decoded text values.
package barcode

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mbodji/lendscan/internal/config"
)

// Client exposes the decoding operations used by the application.
type Client interface {
	Decode(ctx context.Context, filename string, image io.Reader) ([]string, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a barcode API client using the provided configuration values.
func NewClient(cfg config.BarcodeConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(15 * time.Second)

	return &APIClient{httpClient: restyClient}
}

type decodeResponse struct {
	Results []struct {
		Text   string `json:"text"`
		Format string `json:"format"`
	} `json:"results"`
}

// Decode uploads one captured frame and returns the decoded text values in
// detection order.
func (c *APIClient) Decode(ctx context.Context, filename string, image io.Reader) ([]string, error) {
	var out decodeResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("image", filename, image).
		SetResult(&out).
		Post("/v1/decode")
	if err != nil {
		return nil, fmt.Errorf("barcode decode request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("barcode api returned %s", resp.Status())
	}

	codes := make([]string, 0, len(out.Results))
	for _, result := range out.Results {
		if text := strings.TrimSpace(result.Text); text != "" {
			codes = append(codes, text)
		}
	}
	return codes, nil
}
