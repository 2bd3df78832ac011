// Package apiclient is the presentation-side client of the points API. It feeds the
// leaderboard paginator and the session store.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/mrgn-points/points_api/internal/auth"
	"github.com/mrgn-points/points_api/internal/authproof"
	"github.com/mrgn-points/points_api/internal/identity"
	"github.com/mrgn-points/points_api/internal/infra"
	"github.com/mrgn-points/points_api/internal/leaderboard"
	"github.com/mrgn-points/points_api/internal/points"
)

const (
	defaultTimeout = 10 * time.Second
	apiPrefix      = "/api/v1"
)

// APIError is a 4xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Session is the result of a signup or login.
type Session struct {
	Identity      identity.Identity
	Created       bool
	ReferralError string
	Tokens        auth.TokenPair
}

// Client talks to one points API instance.
type Client struct {
	baseURL string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New builds a client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage implements leaderboard.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, cursor string, size int) (leaderboard.Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if size > 0 {
		q.Set("limit", strconv.Itoa(size))
	}
	path := apiPrefix + "/leaderboard"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page leaderboard.Page
	if err := c.get(ctx, path, &page); err != nil {
		return leaderboard.Page{}, err
	}
	return page, nil
}

// Lookup implements session.IdentityLookup.
func (c *Client) Lookup(ctx context.Context, address string) (identity.Identity, bool, error) {
	var resp struct {
		Exists   bool               `json:"exists"`
		Identity *identity.Response `json:"identity"`
	}
	if err := c.get(ctx, apiPrefix+"/identities/"+url.PathEscape(address), &resp); err != nil {
		return identity.Identity{}, false, err
	}
	if !resp.Exists || resp.Identity == nil {
		return identity.Identity{}, false, nil
	}
	return identity.FromResponse(*resp.Identity), true, nil
}

// GetPoints implements session.PointsSource.
func (c *Client) GetPoints(ctx context.Context, address string) (points.Record, error) {
	var resp points.Response
	if err := c.get(ctx, apiPrefix+"/points/"+url.PathEscape(address), &resp); err != nil {
		return points.Record{}, err
	}
	return points.NewRecord(resp.Address, resp.DepositPoints, resp.BorrowPoints, resp.ReferralPoints, resp.SocialPoints).WithRank(resp.Rank), nil
}

// Challenge requests a challenge for address.
func (c *Client) Challenge(ctx context.Context, address string) (authproof.Challenge, error) {
	var challenge authproof.Challenge
	err := c.post(ctx, apiPrefix+"/auth/challenge", map[string]string{"address": address}, &challenge)
	return challenge, err
}

// Signup submits a signed proof with an optional referral code.
func (c *Client) Signup(ctx context.Context, proof authproof.Proof, referralCode string) (Session, error) {
	return c.session(ctx, "/auth/signup", proof, referralCode)
}

// Login submits a signed proof for an existing identity.
func (c *Client) Login(ctx context.Context, proof authproof.Proof) (Session, error) {
	return c.session(ctx, "/auth/login", proof, "")
}

func (c *Client) session(ctx context.Context, path string, proof authproof.Proof, referralCode string) (Session, error) {
	body := map[string]string{
		"address":      proof.Address,
		"method":       string(proof.Method),
		"challenge_id": proof.ChallengeID,
		"signature":    proof.Signature,
	}
	if proof.Transaction != "" {
		body["transaction"] = proof.Transaction
	}
	if referralCode != "" {
		body["referral_code"] = referralCode
	}

	var resp struct {
		Identity      identity.Response `json:"identity"`
		Created       bool              `json:"created"`
		ReferralError string            `json:"referral_error"`
		auth.TokenPair
	}
	if err := c.post(ctx, apiPrefix+path, body, &resp); err != nil {
		return Session{}, err
	}
	return Session{
		Identity:      identity.FromResponse(resp.Identity),
		Created:       resp.Created,
		ReferralError: resp.ReferralError,
		Tokens:        resp.TokenPair,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, fiber.Get(c.baseURL+path), out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, fiber.Post(c.baseURL+path).JSON(body), out)
}

func (c *Client) do(ctx context.Context, agent *fiber.Agent, out any) error {
	agent.Timeout(c.timeout)
	code, body, err := infra.Send(ctx, agent)
	if err != nil {
		return transportError(err)
	}
	switch {
	case code >= http.StatusInternalServerError:
		return leaderboard.NewFetchError(leaderboard.ErrNetworkFailure, fmt.Errorf("status %d: %s", code, errorMessage(body)))
	case code >= http.StatusBadRequest:
		return &APIError{Status: code, Message: errorMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return leaderboard.NewFetchError(leaderboard.ErrNetworkFailure, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, fasthttp.ErrTimeout):
		return leaderboard.NewFetchError(leaderboard.ErrTimeout, err)
	default:
		return leaderboard.NewFetchError(leaderboard.ErrNetworkFailure, err)
	}
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}
