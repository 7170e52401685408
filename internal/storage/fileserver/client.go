// Package fileserver talks to the remote image file service. Every call is a
// single request; failures are returned to the caller untouched.
package fileserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/anttijankeri/object-image-server/internal/storage"
)

const imagesPath = "/api/v1/images"

const (
	headerFolder   = "userFolder"
	headerFileName = "fileName"
	headerFileMime = "fileMime"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ storage.Store = (*Client)(nil)

func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConnsPerHost: 10,
			}),
		},
		log: log.With().Str("component", "fileserver").Logger(),
	}
}

func (c *Client) endpoint() string {
	return c.baseURL + imagesPath
}

// Upload posts the binary as multipart form data together with the target
// format and tenant folder. The service answers with the stored file path.
func (c *Client) Upload(ctx context.Context, req storage.UploadRequest) (storage.UploadResult, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "upload"+req.Format)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, req.Data); err != nil {
		return storage.UploadResult{}, fmt.Errorf("copy payload: %w", err)
	}
	if err := form.WriteField("format", req.Format); err != nil {
		return storage.UploadResult{}, fmt.Errorf("write format: %w", err)
	}
	if err := form.WriteField("folder", req.Tenant); err != nil {
		return storage.UploadResult{}, fmt.Errorf("write folder: %w", err)
	}
	if err := form.Close(); err != nil {
		return storage.UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), &body)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("upload", resp); err != nil {
		return storage.UploadResult{}, err
	}

	var result storage.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return storage.UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	if result.FilePath == "" {
		return storage.UploadResult{}, fmt.Errorf("upload response carries no file path")
	}

	c.log.Debug().
		Str("tenant", req.Tenant).
		Str("file_path", result.FilePath).
		Msg("file uploaded")

	return result, nil
}

// Fetch streams the file back. The caller owns the returned body.
func (c *Client) Fetch(ctx context.Context, tenant, fileName, mime string) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	httpReq.Header.Set(headerFolder, tenant)
	httpReq.Header.Set(headerFileName, fileName)
	httpReq.Header.Set(headerFileMime, mime)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}

	if err := checkStatus("fetch", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp.Body, nil
}

func (c *Client) Remove(ctx context.Context, tenant, fileName string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	httpReq.Header.Set(headerFolder, tenant)
	httpReq.Header.Set(headerFileName, fileName)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("delete", resp); err != nil {
		return err
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return &storage.StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}
