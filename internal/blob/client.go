// Package blob implements the client for the external blob storage API used
// to hold profile images and payment QR codes. The storage service fronts
// its bucket with a small HTTP API; uploads happen in two phases (request a
// one-shot upload URL, then PUT the raw bytes at it), with a legacy
// single-request base64 path kept for older deployments.
package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davguerra/filmoteca/pkg/logger"
)

var log = logger.Get("BlobClient")

type (
	// FailedRequestError is returned when the storage API replies with a
	// non-2xx status. The message is extracted from the response body
	// where possible.
	FailedRequestError struct {
		StatusCode int
		Message    string
	}

	// MalformedResponseError is returned when the storage API replies
	// with a payload we cannot decode. A fragment of the raw payload is
	// carried for diagnosis.
	MalformedResponseError struct {
		Payload string
		Err     error
	}

	// grantResponse is the reply to an upload-permission request: the
	// permanent public URL the file will live at, and the temporary
	// one-shot URL the bytes must be PUT to.
	grantResponse struct {
		URL                string `json:"url"`
		UploadURL          string `json:"uploadUrl"`
		Pathname           string `json:"pathname"`
		ContentType        string `json:"contentType"`
		ContentDisposition string `json:"contentDisposition"`
	}

	Config struct {
		// BaseURL is the root of the storage API (the /api/upload
		// endpoint is resolved against it).
		BaseURL string `yaml:"base_url" env:"BLOB_BASE_URL"`

		// LegacyUpload switches the client to the single-request base64
		// upload path used by older deployments of the storage API.
		LegacyUpload bool `yaml:"legacy_upload" env:"BLOB_LEGACY_UPLOAD" env-default:"false"`
	}

	Client struct {
		config     Config
		httpClient *http.Client
	}
)

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", err.StatusCode, err.Message)
}

func (err *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from storage API: %s (payload fragment: %s)", err.Err.Error(), err.Payload)
}

func (err *MalformedResponseError) Unwrap() error { return err.Err }

func NewClient(config Config) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: time.Second * 30},
	}
}

// Upload pushes the given file to blob storage and returns the permanent
// public URL it can be fetched from. On any failure the file is NOT
// reachable and no URL is returned.
func (client *Client) Upload(ctx context.Context, fileName string, content []byte) (string, error) {
	if client.config.LegacyUpload {
		return client.uploadLegacy(ctx, fileName, content)
	}

	return client.uploadTwoPhase(ctx, fileName, content)
}

// uploadTwoPhase first POSTs the file name to the storage API to be granted
// a one-shot upload URL, then PUTs the raw bytes at that URL. The permanent
// URL from the grant is only returned once the PUT has succeeded.
func (client *Client) uploadTwoPhase(ctx context.Context, fileName string, content []byte) (string, error) {
	log.Debugf("Requesting upload grant for %s\n", fileName)

	grant, err := client.requestGrant(ctx, fileName)
	if err != nil {
		return "", err
	}

	log.Debugf("Grant OK, uploading %d bytes to %s\n", len(content), grant.UploadURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to construct upload request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeFor(fileName))

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return "", &FailedRequestError{StatusCode: resp.StatusCode, Message: extractErrorMessage(body, resp.StatusCode)}
	}

	return grant.URL, nil
}

func (client *Client) requestGrant(ctx context.Context, fileName string) (*grantResponse, error) {
	payload, err := json.Marshal(map[string]string{"fileName": fileName})
	if err != nil {
		return nil, fmt.Errorf("failed to encode grant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.config.BaseURL+"/api/upload", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to construct grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grant request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read grant response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FailedRequestError{StatusCode: resp.StatusCode, Message: extractErrorMessage(body, resp.StatusCode)}
	}

	var grant grantResponse
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, &MalformedResponseError{Payload: payloadFragment(body), Err: err}
	}

	if grant.URL == "" || grant.UploadURL == "" {
		return nil, &MalformedResponseError{Payload: payloadFragment(body), Err: fmt.Errorf("grant missing url or uploadUrl")}
	}

	return &grant, nil
}

// uploadLegacy sends the file in a single request, base64-encoded inside a
// JSON body. The reply carries the permanent URL directly.
func (client *Client) uploadLegacy(ctx context.Context, fileName string, content []byte) (string, error) {
	log.Debugf("Uploading %s (%d bytes) via legacy single-request path\n", fileName, len(content))

	payload, err := json.Marshal(map[string]string{
		"fileName":   fileName,
		"fileBase64": base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.config.BaseURL+"/api/upload", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to construct upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FailedRequestError{StatusCode: resp.StatusCode, Message: extractErrorMessage(body, resp.StatusCode)}
	}

	var reply struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", &MalformedResponseError{Payload: payloadFragment(body), Err: err}
	}
	if reply.URL == "" {
		return "", &MalformedResponseError{Payload: payloadFragment(body), Err: fmt.Errorf("reply missing url")}
	}

	return reply.URL, nil
}

// ContentTypeFor maps a file name to the content type declared on the
// upload, based on its extension. Unknown extensions fall back to the
// generic binary type.
func ContentTypeFor(fileName string) string {
	ext := ""
	if idx := strings.LastIndex(fileName, "."); idx != -1 {
		ext = strings.ToLower(fileName[idx+1:])
	}

	switch ext {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// extractErrorMessage makes a best effort attempt at pulling the 'error'
// field out of a JSON error body, falling back to a generic message
// carrying the status code.
func extractErrorMessage(body []byte, statusCode int) string {
	var reply struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && reply.Error != "" {
		return reply.Error
	}

	return fmt.Sprintf("server error (code %d)", statusCode)
}

func payloadFragment(body []byte) string {
	const maxFragment = 200
	if len(body) > maxFragment {
		return string(body[:maxFragment]) + "..."
	}

	return string(body)
}
