package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://faucetpay.io"
	maxBodyBytes   = 1 << 20
)

// FaucetPay talks to the FaucetPay merchant API.
type FaucetPay struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewFaucetPay creates a client. Redirects are not followed so that a
// redirect answer to payment creation can be returned as the payment URL.
func NewFaucetPay(baseURL string, timeout time.Duration) *FaucetPay {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &FaucetPay{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type createResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// CreatePayment posts the merchant form to /merchant/webscr.
func (f *FaucetPay) CreatePayment(ctx context.Context, req PaymentRequest) (string, error) {
	form := url.Values{
		"merchant_username": {req.MerchantUsername},
		"item_description":  {req.ItemDescription},
		"amount1":           {req.Amount},
		"currency1":         {req.Currency},
		"currency2":         {""},
		"custom":            {req.Custom},
		"callback_url":      {req.CallbackURL},
		"success_url":       {req.SuccessURL},
		"cancel_url":        {req.CancelURL},
	}
	if req.APIKey != "" {
		form.Set("api_key", req.APIKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/merchant/webscr", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrProcessorRejected, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc, err := resp.Location()
		if err != nil {
			return "", fmt.Errorf("%w: redirect without location", ErrProcessorRejected)
		}
		return loc.String(), nil
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", ErrProcessorUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrProcessorRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrProcessorUnavailable, err)
	}

	var out createResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: malformed body", ErrProcessorRejected)
	}
	if out.Status != http.StatusOK || out.Data.Link == "" {
		return "", fmt.Errorf("%w: status=%d message=%q", ErrProcessorRejected, out.Status, out.Message)
	}
	return out.Data.Link, nil
}

// LookupToken queries /merchant/get-payment/{token}.
func (f *FaucetPay) LookupToken(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrProcessorRejected)
	}

	endpoint := f.BaseURL + "/merchant/get-payment/" + url.PathEscape(token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProcessorRejected, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrProcessorUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProcessorRejected, resp.StatusCode)
	}

	var info TokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&info); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
		}
		return nil, fmt.Errorf("%w: malformed body", ErrProcessorRejected)
	}
	return &info, nil
}
