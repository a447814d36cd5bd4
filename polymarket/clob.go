package polymarket

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const DefaultCLOBURL = "https://clob.polymarket.com"

// CLOBClient reads order books and account data from the Polymarket CLOB.
// Public endpoints (book/midpoint/price/spread) need no credentials; trade
// history and open orders require Level 2 HMAC auth. Credentials can be
// passed in or derived from a wallet private key via Level 1 EIP-712 auth.
type CLOBClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
	privateKey *ecdsa.PrivateKey
	address    common.Address
	httpClient *http.Client
}

// NewCLOBClient creates a CLOB client. apiKey/apiSecret/passphrase may be
// empty for public-endpoint use; walletPrivateKey (hex, 0x optional) enables
// credential derivation.
func NewCLOBClient(baseURL, apiKey, apiSecret, passphrase, walletPrivateKey string) (*CLOBClient, error) {
	if baseURL == "" {
		baseURL = DefaultCLOBURL
	}
	c := &CLOBClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	if walletPrivateKey != "" {
		pk, err := crypto.HexToECDSA(strings.TrimPrefix(walletPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = pk
		c.address = crypto.PubkeyToAddress(pk.PublicKey)
		log.Info().Str("address", c.address.Hex()).Msg("CLOB wallet loaded")
	}
	return c, nil
}

// HasCreds reports whether L2-authed endpoints are usable
func (c *CLOBClient) HasCreds() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// SetCreds installs API credentials, typically ones returned by DeriveAPICreds
func (c *CLOBClient) SetCreds(apiKey, apiSecret, passphrase string) {
	c.apiKey = apiKey
	c.apiSecret = apiSecret
	c.passphrase = passphrase
}

// Address returns the signing address, empty string without a wallet
func (c *CLOBClient) Address() string {
	if c.address == (common.Address{}) {
		return ""
	}
	return c.address.Hex()
}

// GetBook fetches the L2 book snapshot for a token
func (c *CLOBClient) GetBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	var book OrderBook
	if err := c.getPublic(ctx, "/book", url.Values{"token_id": {tokenID}}, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetMidpoint fetches the book midpoint for a token
func (c *CLOBClient) GetMidpoint(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	var result struct {
		Mid string `json:"mid"`
	}
	if err := c.getPublic(ctx, "/midpoint", url.Values{"token_id": {tokenID}}, &result); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(result.Mid)
}

// GetPrice fetches the best price for a token on one side ("BUY" or "SELL")
func (c *CLOBClient) GetPrice(ctx context.Context, tokenID, side string) (decimal.Decimal, error) {
	side = strings.ToUpper(side)
	if side != "BUY" && side != "SELL" {
		return decimal.Zero, fmt.Errorf("side must be BUY or SELL, got %q", side)
	}
	var result struct {
		Price string `json:"price"`
	}
	if err := c.getPublic(ctx, "/price", url.Values{"token_id": {tokenID}, "side": {side}}, &result); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(result.Price)
}

// GetSpread fetches the bid/ask spread for a token
func (c *CLOBClient) GetSpread(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	var result struct {
		Spread string `json:"spread"`
	}
	if err := c.getPublic(ctx, "/spread", url.Values{"token_id": {tokenID}}, &result); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(result.Spread)
}

// GetTrades returns the account's fill history. Requires L2 credentials.
func (c *CLOBClient) GetTrades(ctx context.Context) ([]TradeRecord, error) {
	var result struct {
		Data       []TradeRecord `json:"data"`
		NextCursor string        `json:"next_cursor"`
	}
	if err := c.getAuthed(ctx, "/data/trades", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetOpenOrders returns the account's resting orders. Requires L2 credentials.
func (c *CLOBClient) GetOpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var result struct {
		Data []OpenOrder `json:"data"`
	}
	if err := c.getAuthed(ctx, "/data/orders", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// DeriveAPICreds derives (or creates) CLOB API credentials from the wallet
// and installs them on the client.
func (c *CLOBClient) DeriveAPICreds(ctx context.Context) (*APICreds, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("wallet private key required to derive credentials")
	}

	timestamp := time.Now().Unix()
	signature, err := c.signClobAuthMessage(timestamp, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to sign auth message: %w", err)
	}

	headers := map[string]string{
		"POLY_ADDRESS":   c.address.Hex(),
		"POLY_SIGNATURE": signature,
		"POLY_TIMESTAMP": strconv.FormatInt(timestamp, 10),
		"POLY_NONCE":     "0",
	}

	creds, err := c.requestCreds(ctx, http.MethodGet, "/auth/derive-api-key", headers)
	if err != nil {
		// no existing key: create one
		creds, err = c.requestCreds(ctx, http.MethodPost, "/auth/api-key", headers)
		if err != nil {
			return nil, err
		}
	}

	c.apiKey = creds.APIKey
	c.apiSecret = creds.Secret
	c.passphrase = creds.Passphrase
	log.Info().Str("api_key", truncate(creds.APIKey, 8)).Msg("✅ CLOB API credentials derived")
	return creds, nil
}

func (c *CLOBClient) requestCreds(ctx context.Context, method, path string, headers map[string]string) (*APICreds, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
	var creds APICreds
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

// signClobAuthMessage signs the Level 1 auth message (EIP-712).
// Domain: {name: "ClobAuthDomain", version: "1", chainId: 137}
func (c *CLOBClient) signClobAuthMessage(timestamp, nonce int64) (string, error) {
	domainTypeHash := crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	nameHash := crypto.Keccak256Hash([]byte("ClobAuthDomain"))
	versionHash := crypto.Keccak256Hash([]byte("1"))
	chainID := big.NewInt(137) // Polygon

	domainSeparator := crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		nameHash.Bytes(),
		versionHash.Bytes(),
		common.LeftPadBytes(chainID.Bytes(), 32),
	)

	clobAuthTypeHash := crypto.Keccak256Hash([]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"))
	structHash := crypto.Keccak256Hash(
		clobAuthTypeHash.Bytes(),
		common.LeftPadBytes(c.address.Bytes(), 32),
		crypto.Keccak256Hash([]byte(strconv.FormatInt(timestamp, 10))).Bytes(),
		common.LeftPadBytes(big.NewInt(nonce).Bytes(), 32),
		crypto.Keccak256Hash([]byte("This message attests that I control the given wallet")).Bytes(),
	)

	rawData := append([]byte{0x19, 0x01}, domainSeparator.Bytes()...)
	rawData = append(rawData, structHash.Bytes()...)
	hash := crypto.Keccak256Hash(rawData)

	sig, err := crypto.Sign(hash.Bytes(), c.privateKey)
	if err != nil {
		return "", err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// signL2Request adds Level 2 HMAC auth headers. Message and encoding must
// match py-clob-client: timestamp + method + path + body, URL-safe base64.
func (c *CLOBClient) signL2Request(req *http.Request, method, path string, body []byte) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	message := timestamp + method + path
	if len(body) > 0 {
		message += string(body)
	}

	secretBytes, err := base64.URLEncoding.DecodeString(c.apiSecret)
	if err != nil {
		padded := c.apiSecret
		if len(padded)%4 != 0 {
			padded += strings.Repeat("=", 4-len(padded)%4)
		}
		if secretBytes, err = base64.URLEncoding.DecodeString(padded); err != nil {
			secretBytes, _ = base64.StdEncoding.DecodeString(c.apiSecret)
		}
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	if c.address != (common.Address{}) {
		req.Header.Set("POLY_ADDRESS", c.address.Hex())
	}
}

func (c *CLOBClient) getPublic(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("CLOB API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse error: %w, body: %s", err, string(body))
	}
	return nil
}

func (c *CLOBClient) getAuthed(ctx context.Context, path string, out interface{}) error {
	if !c.HasCreds() {
		return fmt.Errorf("CLOB API credentials not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.signL2Request(req, http.MethodGet, path, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("CLOB API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
