package mpesa

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pesaflow/backend/internal/domain/integration"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	timestampLayout = "20060102150405"

	// Daraja tokens live for 3600s; refresh slightly early
	tokenSafetyMargin = 60 * time.Second
)

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// DarajaAdapter implements integration.MoneyMovementProvider against the
// Safaricom Daraja STK push API. Access tokens are cached per integration.
type DarajaAdapter struct {
	client *http.Client
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	tokens map[uuid.UUID]cachedToken
}

// NewDarajaAdapter creates a Daraja STK push adapter
func NewDarajaAdapter(logger *zap.Logger) *DarajaAdapter {
	return &DarajaAdapter{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		now:    time.Now,
		tokens: make(map[uuid.UUID]cachedToken),
	}
}

// Provider returns the provider this adapter serves
func (a *DarajaAdapter) Provider() integration.Provider {
	return integration.ProviderMpesa
}

func baseURL(env integration.Environment) string {
	if env == integration.EnvironmentProduction {
		return productionBaseURL
	}
	return sandboxBaseURL
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Authenticate obtains an OAuth access token for the integration's consumer
// key and secret, reusing a cached token while it remains valid
func (a *DarajaAdapter) Authenticate(ctx context.Context, integ *integration.Integration) (string, error) {
	a.mu.Lock()
	if tok, ok := a.tokens[integ.ID]; ok && a.now().Before(tok.expiresAt) {
		a.mu.Unlock()
		return tok.value, nil
	}
	a.mu.Unlock()

	url := baseURL(integ.Environment) + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.SetBasicAuth(integ.ConsumerKey, integ.ConsumerSecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading auth response: %v", integration.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", integration.ErrInvalidCredentials
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: auth returned status %d", integration.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: auth returned status %d", integration.ErrProviderRejected, resp.StatusCode)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", fmt.Errorf("%w: decoding auth response: %v", integration.ErrProviderUnavailable, err)
	}
	if auth.AccessToken == "" {
		return "", integration.ErrInvalidCredentials
	}

	ttl := 3600 * time.Second
	if secs, err := strconv.Atoi(auth.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	a.mu.Lock()
	a.tokens[integ.ID] = cachedToken{
		value:     auth.AccessToken,
		expiresAt: a.now().Add(ttl - tokenSafetyMargin),
	}
	a.mu.Unlock()

	return auth.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// PushPayment dispatches an STK push prompt to the payer's phone
func (a *DarajaAdapter) PushPayment(ctx context.Context, integ *integration.Integration, pushReq integration.PushRequest) (*integration.PushResponse, error) {
	token, err := a.Authenticate(ctx, integ)
	if err != nil {
		return nil, err
	}

	timestamp := a.now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString(
		[]byte(integ.ShortCode + integ.Passkey + timestamp),
	)

	// Daraja only accepts whole-shilling amounts
	payload := stkPushRequest{
		BusinessShortCode: integ.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            pushReq.Amount.Round(0).String(),
		PartyA:            pushReq.PhoneNumber,
		PartyB:            integ.ShortCode,
		PhoneNumber:       pushReq.PhoneNumber,
		CallBackURL:       integ.CallbackURL,
		AccountReference:  pushReq.Reference,
		TransactionDesc:   pushReq.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	url := baseURL(integ.Environment) + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading push response: %v", integration.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Token may have been revoked; drop it so the next call re-authenticates
		a.mu.Lock()
		delete(a.tokens, integ.ID)
		a.mu.Unlock()
		return nil, integration.ErrInvalidCredentials
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: push returned status %d", integration.ErrProviderUnavailable, resp.StatusCode)
	}

	var pushResp stkPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return nil, fmt.Errorf("%w: decoding push response: %v", integration.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK || pushResp.ResponseCode != "0" {
		desc := pushResp.ResponseDescription
		if desc == "" {
			desc = pushResp.ErrorMessage
		}
		a.logger.Warn("stk push rejected",
			zap.String("integration_id", integ.ID.String()),
			zap.Int("http_status", resp.StatusCode),
			zap.String("response_code", pushResp.ResponseCode),
			zap.String("description", desc),
		)
		return nil, fmt.Errorf("%w: %s", integration.ErrProviderRejected, desc)
	}

	return &integration.PushResponse{
		CheckoutRequestID:   pushResp.CheckoutRequestID,
		MerchantRequestID:   pushResp.MerchantRequestID,
		ResponseDescription: pushResp.ResponseDescription,
	}, nil
}

// VerifyWebhookSignature checks the hex-encoded HMAC-SHA256 signature of the
// raw callback body against the integration's webhook secret
func (a *DarajaAdapter) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback extracts the normalized result from a raw STK callback payload
func (a *DarajaAdapter) ParseCallback(payload []byte) (*integration.CallbackResult, error) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrMalformedCallback, err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", integration.ErrMalformedCallback)
	}

	result := &integration.CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		Success:           cb.ResultCode == 0,
		ResultCode:        cb.ResultCode,
		ResultDescription: cb.ResultDesc,
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				var receipt string
				if err := json.Unmarshal(item.Value, &receipt); err == nil {
					result.ReceiptNumber = receipt
				}
			case "Amount":
				var amount float64
				if err := json.Unmarshal(item.Value, &amount); err == nil {
					result.Amount = decimal.NewFromFloat(amount)
				}
			case "PhoneNumber":
				// Daraja sends the MSISDN as a number
				var asNumber json.Number
				if err := json.Unmarshal(item.Value, &asNumber); err == nil {
					result.PhoneNumber = asNumber.String()
				} else {
					var asString string
					if err := json.Unmarshal(item.Value, &asString); err == nil {
						result.PhoneNumber = asString
					}
				}
			}
		}
	}

	return result, nil
}

// AcknowledgementResponse builds the JSON body returned to the provider
func (a *DarajaAdapter) AcknowledgementResponse(success bool, message string) []byte {
	status := "ok"
	if !success {
		status = "error"
	}
	body, _ := json.Marshal(map[string]string{
		"status":  status,
		"message": message,
	})
	return body
}

// Ensure DarajaAdapter implements MoneyMovementProvider
var _ integration.MoneyMovementProvider = (*DarajaAdapter)(nil)
