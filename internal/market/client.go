// Package market is the HTTP client of the partner marketplace API.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/observability"
	"outlet-sync/internal/outlet"
)

const maxBodySize = 4 << 20

type Client struct {
	Doer          Doer
	BaseURL       string
	OAuthToken    string
	OAuthClientID string
}

func New(doer Doer, baseURL, token, clientID string) *Client {
	return &Client{
		Doer:          doer,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		OAuthToken:    token,
		OAuthClientID: clientID,
	}
}

// NewHTTPClient builds the default Doer: a timed *http.Client behind a retry layer.
func NewHTTPClient(timeout time.Duration, retries int) Doer {
	return NewRetryTransport(&http.Client{Timeout: timeout}, retries)
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Authorization",
		fmt.Sprintf(`OAuth oauth_token="%s", oauth_client_id="%s"`, c.OAuthToken, c.OAuthClientID))
	req.Header.Set("Accept", "application/json")
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (c *Client) newReq(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("market: base url is empty")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("market: encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	return req, nil
}

// do performs the round trip and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	code, b, err := c.roundTrip(req, op)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		return nil, &apperrors.TransportError{Op: op, StatusCode: code, Body: truncate(string(b), 512)}
	}
	return b, nil
}

func (c *Client) roundTrip(req *http.Request, op string) (int, []byte, error) {
	started := time.Now()
	resp, err := c.Doer.Do(req)
	if err != nil {
		observability.ObservePartner(op, "error", started)
		return 0, nil, &apperrors.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	observability.ObservePartner(op, strconv.Itoa(resp.StatusCode), started)

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, &apperrors.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, b, nil
}

type outletsResp struct {
	Outlets []json.RawMessage `json:"outlets"`
	Pager   *outlet.Pager     `json:"pager"`
}

// ListOutlets fetches one page of the campaign's outlets. Items are left raw
// for the caller to translate; the page envelope alone is decoded here.
func (c *Client) ListOutlets(ctx context.Context, campaignID, page, pageSize int) (outlet.OutletsPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	req, err := c.newReq(ctx, http.MethodGet, fmt.Sprintf("/campaigns/%d/outlets.json?%s", campaignID, q.Encode()), nil)
	if err != nil {
		return outlet.OutletsPage{}, err
	}

	b, err := c.do(req, "list_outlets")
	if err != nil {
		return outlet.OutletsPage{}, err
	}

	var out outletsResp
	if err := json.Unmarshal(b, &out); err != nil {
		return outlet.OutletsPage{}, &apperrors.DeserializationError{Op: "list_outlets", Err: err}
	}
	return outlet.OutletsPage{Outlets: out.Outlets, Pager: out.Pager}, nil
}

type regionJSON struct {
	ID     int         `json:"id"`
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Parent *regionJSON `json:"parent"`
}

type regionsResp struct {
	Regions []regionJSON `json:"regions"`
}

// SearchRegions looks regions up by name. Each result carries its full
// ancestor chain.
func (c *Client) SearchRegions(ctx context.Context, name string, page int) ([]outlet.RegionNode, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("page", strconv.Itoa(page))
	req, err := c.newReq(ctx, http.MethodGet, "/regions.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	b, err := c.do(req, "search_regions")
	if err != nil {
		return nil, err
	}

	var out regionsResp
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &apperrors.DeserializationError{Op: "search_regions", Err: err}
	}

	nodes := make([]outlet.RegionNode, 0, len(out.Regions))
	for _, r := range out.Regions {
		nodes = append(nodes, toRegionNode(r))
	}
	return nodes, nil
}

func toRegionNode(r regionJSON) outlet.RegionNode {
	head := outlet.RegionNode{ID: r.ID, Name: r.Name, Type: r.Type}
	tail := &head
	for p := r.Parent; p != nil; p = p.Parent {
		tail.Parent = &outlet.RegionNode{ID: p.ID, Name: p.Name, Type: p.Type}
		tail = tail.Parent
	}
	return head
}

type serviceResp struct {
	Status string                   `json:"status"`
	Errors []apperrors.PartnerError `json:"errors"`
}

func (c *Client) CreateOutlet(ctx context.Context, campaignID int, o outlet.RemotePayload) (outlet.ServiceResult, error) {
	req, err := c.newReq(ctx, http.MethodPost, fmt.Sprintf("/campaigns/%d/outlets.json", campaignID), o)
	if err != nil {
		return outlet.ServiceResult{}, err
	}
	return c.mutate(req, "create_outlet")
}

func (c *Client) UpdateOutlet(ctx context.Context, campaignID, outletID int, o outlet.RemotePayload) (outlet.ServiceResult, error) {
	req, err := c.newReq(ctx, http.MethodPut, fmt.Sprintf("/campaigns/%d/outlets/%d.json", campaignID, outletID), o)
	if err != nil {
		return outlet.ServiceResult{}, err
	}
	return c.mutate(req, "update_outlet")
}

func (c *Client) DeleteOutlet(ctx context.Context, campaignID, outletID int) (outlet.ServiceResult, error) {
	req, err := c.newReq(ctx, http.MethodDelete, fmt.Sprintf("/campaigns/%d/outlets/%d.json", campaignID, outletID), nil)
	if err != nil {
		return outlet.ServiceResult{}, err
	}
	return c.mutate(req, "delete_outlet")
}

// mutate runs a create, update or delete call. A 4xx carrying the partner's
// status/errors envelope is reported as an ERROR result, not a transport error.
func (c *Client) mutate(req *http.Request, op string) (outlet.ServiceResult, error) {
	code, b, err := c.roundTrip(req, op)
	if err != nil {
		return outlet.ServiceResult{}, err
	}

	var out serviceResp
	decodeErr := json.Unmarshal(b, &out)

	if code < 200 || code > 299 {
		if code < 500 && decodeErr == nil && out.Status != "" && outlet.ParseStatus(out.Status) == outlet.StatusError {
			return outlet.ServiceResult{Status: outlet.ParseStatus(out.Status), Errors: out.Errors}, nil
		}
		return outlet.ServiceResult{}, &apperrors.TransportError{Op: op, StatusCode: code, Body: truncate(string(b), 512)}
	}
	if decodeErr != nil {
		return outlet.ServiceResult{}, &apperrors.DeserializationError{Op: op, Err: decodeErr}
	}
	return outlet.ServiceResult{Status: outlet.ParseStatus(out.Status), Errors: out.Errors}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
