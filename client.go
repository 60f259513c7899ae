package revision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	v1 "github.com/emrgen/revision/apis/v1"
)

const defaultTimeout = 15 * time.Second

// APIError is returned for every non-2xx response. Its message is the one
// the server sent, so it can be shown to the user as is.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type ClientOption func(*Client)

// WithHTTPClient replaces the http client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithUser sets the identity sent with every request.
func WithUser(id, name string) ClientOption {
	return func(c *Client) {
		c.userID = id
		c.userName = name
	}
}

// Client talks to the revision REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	userID   string
	userName string
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) CreateProposal(ctx context.Context, id, title string) (*v1.Proposal, error) {
	var res v1.CreateProposalResponse
	err := c.do(ctx, http.MethodPost, "/api/proposals", &v1.CreateProposalRequest{ID: id, Title: title}, &res)
	if err != nil {
		return nil, err
	}

	return res.Proposal, nil
}

func (c *Client) CreateForm(ctx context.Context, proposalID, id, name string) (*v1.Form, error) {
	var res v1.CreateFormResponse
	path := "/api/proposals/" + url.PathEscape(proposalID) + "/forms"
	if err := c.do(ctx, http.MethodPost, path, &v1.CreateFormRequest{ID: id, Name: name}, &res); err != nil {
		return nil, err
	}

	return res.Form, nil
}

func (c *Client) ListForms(ctx context.Context, proposalID string) ([]*v1.Form, error) {
	var res v1.ListFormsResponse
	path := "/api/proposals/" + url.PathEscape(proposalID) + "/forms"
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	return res.Forms, nil
}

// ListVersions lists the versions of a proposal, or of one of its forms when
// formID is set, newest first.
func (c *Client) ListVersions(ctx context.Context, proposalID, formID string, limit int) ([]*v1.VersionRecord, error) {
	path := scopePath(proposalID, formID) + "/versions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var res v1.ListVersionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	return res.Versions, nil
}

func (c *Client) GetVersion(ctx context.Context, proposalID, formID string, number int64) (*v1.VersionRecord, error) {
	path := scopePath(proposalID, formID) + "/versions/" + strconv.FormatInt(number, 10)

	var res v1.GetVersionResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	return res.Version, nil
}

func (c *Client) SaveVersion(ctx context.Context, proposalID, formID string, req *v1.SaveVersionRequest) (*v1.VersionRecord, error) {
	var res v1.SaveVersionResponse
	if err := c.do(ctx, http.MethodPost, scopePath(proposalID, formID)+"/versions", req, &res); err != nil {
		return nil, err
	}

	return res.Version, nil
}

func (c *Client) GetCurrentContent(ctx context.Context, proposalID, formID string) (*v1.CurrentContentResponse, error) {
	var res v1.CurrentContentResponse
	if err := c.do(ctx, http.MethodGet, scopePath(proposalID, formID)+"/content", nil, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func (c *Client) GetVersionStats(ctx context.Context, proposalID string) (*v1.VersionStats, error) {
	var res v1.VersionStatsResponse
	if err := c.do(ctx, http.MethodGet, scopePath(proposalID, "")+"/version-stats", nil, &res); err != nil {
		return nil, err
	}

	return res.Stats, nil
}

// Rollback restores version number as a new version and returns the new
// version number.
func (c *Client) Rollback(ctx context.Context, proposalID, formID string, number int64) (int64, error) {
	path := scopePath(proposalID, formID) + "/versions/" + strconv.FormatInt(number, 10) + "/rollback"

	var res v1.RollbackResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return 0, err
	}

	return res.NewVersion, nil
}

func scopePath(proposalID, formID string) string {
	path := "/api/proposals/" + url.PathEscape(proposalID)
	if formID != "" {
		path += "/forms/" + url.PathEscape(formID)
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-Id", c.userID)
		req.Header.Set("X-User-Name", c.userName)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return readError(res)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}

	return nil
}

func readError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}

	data, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var body v1.ErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}
