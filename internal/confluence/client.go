// Package confluence implements the subset of the Confluence REST API the
// publisher consumes: content lookup, create/update, and attachment upload.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/starford/ansuz/internal/apperr"
)

// Client talks to a single Confluence instance with basic auth.
// Every call is attempted exactly once; there is no retry policy.
type Client struct {
	baseURL  string
	username string
	token    string
	httpc    *http.Client
}

// New creates a client for the given base URL and credentials.
// A trailing slash on baseURL is tolerated.
func New(baseURL, username, token string) *Client {
	return &Client{
		baseURL:  trimSlash(baseURL),
		username: username,
		token:    token,
		httpc:    &http.Client{},
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// statusError reports a non-2xx response including the body, which carries
// the vendor's error detail.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("confluence: %s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
}

// doJSON issues a JSON request and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, in, out any) (int, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("confluence: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return 0, fmt.Errorf("confluence: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("confluence: %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("confluence: decode response: %w", err)
		}
		return resp.StatusCode, nil
	}
	if resp.StatusCode == http.StatusOK {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, statusError(fmt.Sprintf("%s %s", method, rawURL), resp)
}

// GetPage fetches a page by its identifier. A 404 maps to apperr.ErrNotFound.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	status, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/rest/api/content/"+pageID, nil, &page)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("confluence: page %s: %w", pageID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// FindPageByTitle searches the space for a current page whose title exactly
// matches (case-sensitive). Returns apperr.ErrNotFound when no candidate
// matches.
func (c *Client) FindPageByTitle(ctx context.Context, spaceKey, title string) (*Page, error) {
	q := url.Values{}
	q.Set("spaceKey", spaceKey)
	q.Set("title", title)
	q.Set("type", "page")
	q.Set("status", "current")
	q.Set("expand", "version")

	var res searchResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/rest/api/content?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	for i := range res.Results {
		if res.Results[i].Title == title {
			return &res.Results[i], nil
		}
	}
	return nil, fmt.Errorf("confluence: page %q in space %s: %w", title, spaceKey, apperr.ErrNotFound)
}

// CreatePage creates a new page in the space, optionally under a parent.
func (c *Client) CreatePage(ctx context.Context, spaceKey, title, storageValue, parentID string) (*Page, error) {
	body := Page{
		Type:  "page",
		Title: title,
		Space: &Space{Key: spaceKey},
		Body: &Body{Storage: Storage{
			Value:          storageValue,
			Representation: "storage",
		}},
	}
	if parentID != "" {
		body.Ancestors = []Ancestor{{ID: parentID}}
	}

	var created Page
	if _, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/rest/api/content", &body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePage replaces the page body, sending currentVersion+1. A concurrent
// edit between fetch and update is not detected; the write overwrites.
func (c *Client) UpdatePage(ctx context.Context, pageID, title, storageValue string, currentVersion int) (*Page, error) {
	body := Page{
		Type:    "page",
		Title:   title,
		Version: &Version{Number: currentVersion + 1},
		Body: &Body{Storage: Storage{
			Value:          storageValue,
			Representation: "storage",
		}},
	}

	var updated Page
	if _, err := c.doJSON(ctx, http.MethodPut, c.baseURL+"/rest/api/content/"+pageID, &body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Attachments lists the attachments on a page.
func (c *Client) Attachments(ctx context.Context, pageID string) ([]Attachment, error) {
	var res attachmentListResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/rest/api/content/"+pageID+"/child/attachment", nil, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

// UploadAttachment uploads filePath to the page. An existing attachment with
// the same filename is replaced in place; otherwise a new one is created.
// Returns the attachment filename.
func (c *Client) UploadAttachment(ctx context.Context, pageID, filePath string) (string, error) {
	filename := filepath.Base(filePath)

	existing, err := c.Attachments(ctx, pageID)
	if err != nil {
		return "", err
	}
	var existingID string
	for _, a := range existing {
		if a.Title == filename {
			existingID = a.ID
			break
		}
	}

	uploadURL := c.baseURL + "/rest/api/content/" + pageID + "/child/attachment"
	if existingID != "" {
		uploadURL += "/" + existingID + "/data"
	}

	if err := c.postMultipart(ctx, uploadURL, filePath, filename); err != nil {
		return "", err
	}
	return filename, nil
}

// postMultipart sends the file as a multipart "file" field with the header
// that disables the anti-CSRF check, as the attachment endpoints require.
func (c *Client) postMultipart(ctx context.Context, rawURL, filePath, filename string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("confluence: open attachment %s: %w", filePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("confluence: multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("confluence: read attachment %s: %w", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("confluence: multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return fmt.Errorf("confluence: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("confluence: upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("upload "+filename, resp)
	}
	return nil
}
