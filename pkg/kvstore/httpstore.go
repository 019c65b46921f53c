package kvstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
)

// HTTPStore is a Store backed by a remote metadata server speaking the
// /v1/metadata API served by Handler.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore returns a client for the metadata server at baseURL.
// A nil client uses http.DefaultClient.
func NewHTTPStore(baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{baseURL: baseURL, client: client}
}

func (s *HTTPStore) url(key []byte) string {
	return fmt.Sprintf("%s/v1/metadata/%s", s.baseURL, hex.EncodeToString(key))
}

func (s *HTTPStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kvstore: metadata get: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusGone:
		return nil, ErrDeleted
	default:
		return nil, fmt.Errorf("kvstore: metadata get: unexpected status %d", resp.StatusCode)
	}
}

func (s *HTTPStore) Set(ctx context.Context, key, value []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url(key), bytes.NewReader(value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("kvstore: metadata set: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("kvstore: metadata set: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) Delete(ctx context.Context, key []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.url(key), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("kvstore: metadata delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("kvstore: metadata delete: unexpected status %d", resp.StatusCode)
	}
	return nil
}
