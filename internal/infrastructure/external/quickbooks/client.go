// Package quickbooks is a minimal QuickBooks Online accounting client.
package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	sandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	productionBaseURL = "https://quickbooks.api.intuit.com"
	tokenURL          = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
)

// Config holds QuickBooks credentials
type Config struct {
	Environment  string // "sandbox" or "production"
	ClientID     string
	ClientSecret string
	RefreshToken string
	RealmID      string
	Timeout      time.Duration
}

// Client implements port.AccountingSystem over the QuickBooks REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	realmID    string
	logger     *zap.Logger

	vendorMu    sync.Mutex
	vendorLocks map[string]*sync.Mutex

	accountsMu sync.Mutex
	accounts   []account
}

var _ port.AccountingSystem = (*Client)(nil)

// NewClient creates a client whose access token is refreshed from cfg.RefreshToken
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("quickbooks client id, secret and refresh token are required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	httpClient := oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}))
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = productionBaseURL
	}
	return NewWithHTTPClient(httpClient, baseURL, cfg.RealmID, logger), nil
}

// NewWithHTTPClient creates a client over an already authorized HTTP client
func NewWithHTTPClient(httpClient *http.Client, baseURL, realmID string, logger *zap.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		realmID:     realmID,
		logger:      logger,
		vendorLocks: make(map[string]*sync.Mutex),
	}
}

type vendorRef struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type vendor struct {
	ID          string `json:"Id"`
	DisplayName string `json:"DisplayName"`
}

type account struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	AccountType string `json:"AccountType"`
}

type bill struct {
	ID        string     `json:"Id,omitempty"`
	VendorRef vendorRef  `json:"VendorRef"`
	TxnDate   string     `json:"TxnDate,omitempty"`
	DueDate   string     `json:"DueDate,omitempty"`
	TotalAmt  float64    `json:"TotalAmt,omitempty"`
	Line      []billLine `json:"Line"`
}

type billLine struct {
	ID                            string             `json:"Id,omitempty"`
	Amount                        float64            `json:"Amount"`
	DetailType                    string             `json:"DetailType"`
	Description                   string             `json:"Description,omitempty"`
	AccountBasedExpenseLineDetail *expenseLineDetail `json:"AccountBasedExpenseLineDetail,omitempty"`
}

type expenseLineDetail struct {
	AccountRef vendorRef `json:"AccountRef"`
}

type queryResponse struct {
	QueryResponse struct {
		Vendor  []vendor  `json:"Vendor"`
		Account []account `json:"Account"`
		Bill    []bill    `json:"Bill"`
	} `json:"QueryResponse"`
}

// FindOrCreateVendor looks a vendor up by exact display name and creates it when missing.
// Calls for the same name are serialized so concurrent approvals create one vendor.
func (c *Client) FindOrCreateVendor(ctx context.Context, displayName string) (*port.VendorRef, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("vendor display name is required")
	}

	lock := c.vendorLock(displayName)
	lock.Lock()
	defer lock.Unlock()

	var found queryResponse
	query := fmt.Sprintf("SELECT * FROM Vendor WHERE DisplayName = '%s' MAXRESULTS 1", escapeQueryValue(displayName))
	if err := c.query(ctx, c.realmID, query, &found); err != nil {
		return nil, fmt.Errorf("failed to query vendor: %w", err)
	}
	if len(found.QueryResponse.Vendor) > 0 {
		v := found.QueryResponse.Vendor[0]
		return &port.VendorRef{ID: v.ID, DisplayName: v.DisplayName}, nil
	}

	var created struct {
		Vendor vendor `json:"Vendor"`
	}
	if err := c.do(ctx, http.MethodPost, c.realmID, "/vendor", map[string]string{"DisplayName": displayName}, &created); err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}

	c.logger.Info("Created QuickBooks vendor",
		zap.String("vendor_id", created.Vendor.ID),
		zap.String("display_name", displayName))
	return &port.VendorRef{ID: created.Vendor.ID, DisplayName: created.Vendor.DisplayName}, nil
}

// CreateBill creates a bill with one expense line per item
func (c *Client) CreateBill(ctx context.Context, req port.BillRequest) (*port.Bill, error) {
	if req.Vendor.ID == "" {
		return nil, fmt.Errorf("vendor id is required")
	}
	if len(req.LineItems) == 0 {
		return nil, fmt.Errorf("bill requires at least one line item")
	}

	accounts, err := c.expenseAccounts(ctx)
	if err != nil {
		return nil, err
	}

	payload := bill{
		VendorRef: vendorRef{Value: req.Vendor.ID, Name: req.Vendor.DisplayName},
		DueDate:   req.DueDate,
	}
	for i, item := range req.LineItems {
		acct := findAccount(accounts, MapCategoryToAccount(item.Category, item.Description))
		if acct == nil {
			return nil, fmt.Errorf("no expense account available")
		}
		payload.Line = append(payload.Line, billLine{
			ID:          fmt.Sprintf("%d", i+1),
			Amount:      item.Amount,
			DetailType:  "AccountBasedExpenseLineDetail",
			Description: item.Description,
			AccountBasedExpenseLineDetail: &expenseLineDetail{
				AccountRef: vendorRef{Value: acct.ID, Name: acct.Name},
			},
		})
	}

	var created struct {
		Bill bill `json:"Bill"`
	}
	if err := c.do(ctx, http.MethodPost, c.realmID, "/bill", payload, &created); err != nil {
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}

	c.logger.Info("Created QuickBooks bill",
		zap.String("bill_id", created.Bill.ID),
		zap.String("vendor", req.Vendor.DisplayName))
	result := toPortBill(created.Bill)
	return &result, nil
}

// ListBills returns the most recent bills of a company
func (c *Client) ListBills(ctx context.Context, realmID string) ([]port.Bill, error) {
	if realmID == "" {
		realmID = c.realmID
	}

	var resp queryResponse
	if err := c.query(ctx, realmID, "SELECT * FROM Bill MAXRESULTS 100", &resp); err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	bills := make([]port.Bill, 0, len(resp.QueryResponse.Bill))
	for _, b := range resp.QueryResponse.Bill {
		bills = append(bills, toPortBill(b))
	}
	return bills, nil
}

func (c *Client) vendorLock(name string) *sync.Mutex {
	key := strings.ToLower(name)
	c.vendorMu.Lock()
	defer c.vendorMu.Unlock()
	lock, ok := c.vendorLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.vendorLocks[key] = lock
	}
	return lock
}

// expenseAccounts loads the chart of expense accounts once
func (c *Client) expenseAccounts(ctx context.Context) ([]account, error) {
	c.accountsMu.Lock()
	defer c.accountsMu.Unlock()
	if len(c.accounts) > 0 {
		return c.accounts, nil
	}

	var resp queryResponse
	if err := c.query(ctx, c.realmID, "SELECT * FROM Account WHERE AccountType = 'Expense' MAXRESULTS 1000", &resp); err != nil {
		return nil, fmt.Errorf("failed to list expense accounts: %w", err)
	}
	c.accounts = resp.QueryResponse.Account
	return c.accounts, nil
}

func (c *Client) query(ctx context.Context, realmID, query string, out interface{}) error {
	return c.do(ctx, http.MethodGet, realmID, "/query?query="+url.QueryEscape(query), nil, out)
}

func (c *Client) do(ctx context.Context, method, realmID, endpoint string, body, out interface{}) error {
	if realmID == "" {
		return fmt.Errorf("realm id is required")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	reqURL := fmt.Sprintf("%s/v3/company/%s%s", c.baseURL, url.PathEscape(realmID), endpoint)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("QuickBooks request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("quickbooks request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("QuickBooks API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func toPortBill(b bill) port.Bill {
	return port.Bill{
		ID:         b.ID,
		TxnDate:    b.TxnDate,
		DueDate:    b.DueDate,
		TotalAmt:   b.TotalAmt,
		VendorName: b.VendorRef.Name,
	}
}

// escapeQueryValue doubles single quotes for the QuickBooks query language
func escapeQueryValue(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
