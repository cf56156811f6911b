// Package github is the catalog file store. The catalog lives as a JSON
// file in a GitHub repository and every sale is a commit made through the
// contents API, so the file's sha doubles as the optimistic-concurrency
// revision token.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.github.com"

// ErrConflict reports a write whose sha was stale: somebody else
// committed the file between our read and our write.
var ErrConflict = errors.New("catalog file changed upstream, stale sha")

type Conf struct {
	token   string
	owner   string
	repo    string
	path    string
	branch  string
	baseURL string
	client  *http.Client
}

// NewConf validates the repository coordinates. The token, owner, repo
// and path have no usable defaults; a missing value is a deployment
// mistake and must surface at startup.
func NewConf(token, owner, repo, path, branch string) (*Conf, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is not set")
	}
	if owner == "" || repo == "" || path == "" {
		return nil, fmt.Errorf("github repository coordinates are incomplete: owner=%q repo=%q path=%q", owner, repo, path)
	}
	if branch == "" {
		branch = "main"
	}
	return &Conf{
		token:   token,
		owner:   owner,
		repo:    repo,
		path:    path,
		branch:  branch,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// WithBaseURL points the store at a different API host. Tests use it to
// target an httptest server.
func (c *Conf) WithBaseURL(baseURL string) *Conf {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Conf) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, c.path)
}

type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// GetFile fetches the current file content and its sha.
func (c *Conf) GetFile(ctx context.Context) ([]byte, string, error) {
	url := c.contentsURL() + "?ref=" + c.branch
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("error fetching file contents: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error reading contents response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("contents fetch failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var contents contentsResponse
	if err := json.Unmarshal(body, &contents); err != nil {
		return nil, "", fmt.Errorf("error decoding contents response: %w", err)
	}

	// The API wraps base64 content in newlines.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("error decoding file content: %w", err)
	}
	return raw, contents.SHA, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

// PutFile commits new content over the file. The sha must be the one
// returned by the GetFile this write is based on; the API answers with a
// conflict when it is stale, surfaced as ErrConflict.
func (c *Conf) PutFile(ctx context.Context, content []byte, sha string, message string) error {
	payload, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
		Branch:  c.branch,
	})
	if err != nil {
		return fmt.Errorf("error encoding commit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error committing file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading commit response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("commit failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
}

func (c *Conf) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}
