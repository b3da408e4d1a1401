package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultUA = "review-autopublisher/1.0"

// Client talks to the review platform's reply and token endpoints.
type Client struct {
	hc      *http.Client
	base    string
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		base:    strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
}

type replyPayload struct {
	Comment string `json:"comment"`
}

// PutReply creates or replaces the reply on target (e.g.
// "accounts/1/locations/2/reviews/abc"). Any transport failure, timeout or
// non-2xx status is returned as an error.
func (c *Client) PutReply(ctx context.Context, accessToken, target, comment string) error {
	target = strings.Trim(target, "/")
	if target == "" {
		return errors.New("put reply: empty target")
	}
	body, err := json.Marshal(replyPayload{Comment: comment})
	if err != nil {
		return err
	}
	status, respBody, err := c.do(ctx, http.MethodPut, c.base+"/"+target+"/reply", "application/json", accessToken, body)
	if err != nil {
		return fmt.Errorf("put reply: %w", err)
	}
	if status < 200 || status >= 300 {
		return &APIError{Op: "put reply", Status: status, Body: truncate(respBody, 512)}
	}
	return nil
}

// ExchangeRefreshToken trades a long-lived refresh token for an access token
// at an OAuth2 token endpoint. RFC 6749 error answers come back as *APIError.
func (c *Client) ExchangeRefreshToken(ctx context.Context, tokenURL, clientID, clientSecret, refreshToken string) (string, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			apiErr := &APIError{Op: "token exchange", Body: truncate(re.Body, 512)}
			if re.Response != nil {
				apiErr.Status = re.Response.StatusCode
			}
			if re.ErrorCode != "" {
				apiErr.Body = strings.TrimSpace(re.ErrorCode + " " + re.ErrorDescription)
			}
			return "", apiErr
		}
		return "", fmt.Errorf("token exchange: %w", err)
	}
	return tok.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, rawURL, contentType, bearer string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("user-agent", defaultUA)
	req.Header.Set("accept", "application/json")
	if contentType != "" {
		req.Header.Set("content-type", contentType)
	}
	if bearer != "" {
		req.Header.Set("authorization", "Bearer "+bearer)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
