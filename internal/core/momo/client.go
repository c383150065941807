package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/logger"
)

// ErrGateway marks any payment-provider failure. A deposit is never recorded
// when the collection call fails.
var ErrGateway = errors.New("momo gateway error")

// orderNamespace derives the provider reference from the client-supplied
// orderId, so a retried request reuses the same reference and the provider
// deduplicates the charge.
var orderNamespace = uuid.MustParse("7b0e3d6a-59cb-4a3f-9a47-f2f1d3a8c9e1")

// CollectRequest is one request-to-pay against a subscriber's mobile money
// account.
type CollectRequest struct {
	Amount      decimal.Decimal
	PhoneNumber string
	OrderID     string
}

// CollectResult carries the provider's reference for the accepted collection.
type CollectResult struct {
	TransactionID string
}

// Gateway is the payment-provider boundary the handlers depend on.
type Gateway interface {
	Token(ctx context.Context) (string, error)
	Collect(ctx context.Context, req CollectRequest) (CollectResult, error)
}

// Config holds the provider credentials and environment.
type Config struct {
	BaseURL         string
	APIUser         string
	APIKey          string
	SubscriptionKey string
	TargetEnv       string
	Currency        string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token obtains a collection access token from the provider.
func (c *Client) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrGateway, err)
	}
	req.SetBasicAuth(c.cfg.APIUser, c.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Error("MoMo token request failed",
			logger.IntField("status", resp.StatusCode),
			logger.StringField("body", string(body)))
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrGateway, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrGateway, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGateway)
	}
	return tr.AccessToken, nil
}

type requestToPayBody struct {
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	ExternalID   string     `json:"externalId"`
	Payer        payerParty `json:"payer"`
	PayerMessage string     `json:"payerMessage"`
	PayeeNote    string     `json:"payeeNote"`
}

type payerParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// Collect issues a request-to-pay. The reference id is derived from the
// order id, so repeating the same order never charges twice. The financial
// mutation itself is never retried here; the first failure is surfaced.
func (c *Client) Collect(ctx context.Context, cr CollectRequest) (CollectResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return CollectResult{}, err
	}

	referenceID := uuid.NewSHA1(orderNamespace, []byte(cr.OrderID))

	body, err := json.Marshal(requestToPayBody{
		Amount:       cr.Amount.StringFixedBank(2),
		Currency:     c.cfg.Currency,
		ExternalID:   cr.OrderID,
		Payer:        payerParty{PartyIDType: "MSISDN", PartyID: cr.PhoneNumber},
		PayerMessage: "Vault deposit",
		PayeeNote:    "Vault deposit " + cr.OrderID,
	})
	if err != nil {
		return CollectResult{}, fmt.Errorf("%w: encode collect request: %v", ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(body))
	if err != nil {
		return CollectResult{}, fmt.Errorf("%w: build collect request: %v", ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Reference-Id", referenceID.String())
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnv)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CollectResult{}, fmt.Errorf("%w: collect request: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	// The provider accepts the collection with 202; a conflict on the
	// reference id means this exact order was already accepted.
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusConflict {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Error("MoMo collect request failed",
			logger.IntField("status", resp.StatusCode),
			logger.StringField("order_id", cr.OrderID),
			logger.StringField("body", string(respBody)))
		return CollectResult{}, fmt.Errorf("%w: collect endpoint returned %d", ErrGateway, resp.StatusCode)
	}

	c.log.Info("MoMo collection accepted",
		logger.StringField("order_id", cr.OrderID),
		logger.StringField("reference_id", referenceID.String()),
		logger.StringField("amount", cr.Amount.StringFixedBank(2)))

	return CollectResult{TransactionID: referenceID.String()}, nil
}
