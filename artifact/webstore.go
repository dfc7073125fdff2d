package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/auctionfi/auctionpay"
)

// WebStore is a content-addressed storage client speaking the web3.storage
// HTTP API: POST /upload to pin files, GET /status/{cid} for pin state and a
// public IPFS gateway for retrieval.
type WebStore struct {
	api     string
	gateway string
	token   string
	client  *http.Client
	log     *zap.Logger
}

// WebStoreOption configures a WebStore.
type WebStoreOption func(*WebStore)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) WebStoreOption {
	return func(s *WebStore) { s.client = c }
}

// WithGateway overrides the retrieval gateway base URL.
func WithGateway(url string) WebStoreOption {
	return func(s *WebStore) { s.gateway = url }
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(log *zap.Logger) WebStoreOption {
	return func(s *WebStore) { s.log = log }
}

// NewWebStore creates a store client against the given API base URL,
// authenticating with the bearer token.
func NewWebStore(api, token string, opts ...WebStoreOption) *WebStore {
	s := &WebStore{
		api:     api,
		gateway: "https://w3s.link",
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put uploads the files and returns the root content identifier. The handle
// is acknowledged before it is retrievable; use a Poller before referencing
// it anywhere durable.
func (s *WebStore) Put(ctx context.Context, files []auctionpay.ArtifactFile) (auctionpay.ArtifactHandle, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("webstore: nothing to upload")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := form.CreateFormFile("file", f.Name)
		if err != nil {
			return "", fmt.Errorf("webstore: build upload form: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return "", fmt.Errorf("webstore: build upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("webstore: build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webstore: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webstore: upload: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		CID string `json:"cid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("webstore: decode upload response: %w", err)
	}
	if out.CID == "" {
		return "", fmt.Errorf("webstore: upload response carried no cid")
	}
	s.log.Debug("artifact uploaded", zap.String("cid", out.CID), zap.Int("files", len(files)))
	return auctionpay.ArtifactHandle(out.CID), nil
}

// Status reports whether the store already pins the handle.
func (s *WebStore) Status(ctx context.Context, handle auctionpay.ArtifactHandle) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.api+"/status/"+string(handle), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("webstore: status: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("webstore: status: unexpected status %d", resp.StatusCode)
	}
}

// Get retrieves the item file through the gateway. A handle that has not
// propagated yet returns an error; the poller turns that into another
// attempt.
func (s *WebStore) Get(ctx context.Context, handle auctionpay.ArtifactHandle) ([]auctionpay.ArtifactFile, error) {
	url := fmt.Sprintf("%s/ipfs/%s/%s", s.gateway, handle, ItemFileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webstore: get %s: %w", FormatHandle(handle), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webstore: get %s: unexpected status %d", FormatHandle(handle), resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webstore: get %s: %w", FormatHandle(handle), err)
	}
	return []auctionpay.ArtifactFile{{
		Name:    ItemFileName,
		CID:     string(handle),
		Size:    int64(len(content)),
		Content: content,
	}}, nil
}

// GatewayURL returns the public URL an artifact is served from.
func (s *WebStore) GatewayURL(handle auctionpay.ArtifactHandle) string {
	return fmt.Sprintf("%s/ipfs/%s/%s", s.gateway, handle, ItemFileName)
}
