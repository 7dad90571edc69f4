package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Info is the checkpoint fetched from the info service at startup.
type Info struct {
	LastBlockHeight uint64   `json:"last_block_height"`
	BankIDs         []string `json:"bank_ids"`
}

// InfoClient talks to the info service's bearer-authenticated endpoints.
type InfoClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewInfoClient(baseURL, token string) *InfoClient {
	return &InfoClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *InfoClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	if !env.Success {
		msg := resp.Status
		if env.Error != nil {
			msg = env.Error.Message
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}

// GetInfo fetches the persisted cursor and bank filter set.
func (c *InfoClient) GetInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetLastBlockHeight checkpoints the cursor.
func (c *InfoClient) SetLastBlockHeight(ctx context.Context, height uint64) error {
	body := map[string]uint64{"last_block_height": height}
	return c.do(ctx, http.MethodPost, "/info/last_block_height", body, nil)
}

// InitBlockHeight seeds the cursor if it has never been set.
func (c *InfoClient) InitBlockHeight(ctx context.Context, height uint64) error {
	body := map[string]uint64{"last_block_height": height}
	return c.do(ctx, http.MethodPost, "/info/init_block_height", body, nil)
}

// AddBank appends a bank ID to the persisted filter set.
func (c *InfoClient) AddBank(ctx context.Context, bankID string) error {
	body := map[string]string{"bank_id": bankID}
	return c.do(ctx, http.MethodPost, "/info/new_bank", body, nil)
}
