package cas

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client queries the Combot Anti-Spam API. A user with a CAS record
// is removed on join instead of being challenged.
type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(5 * time.Second),
	}
}

// Check reports whether the user has an active CAS ban record.
func (c *Client) Check(ctx context.Context, userID int64) (bool, error) {
	type casResponse struct {
		OK bool `json:"ok"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("user_id", strconv.FormatInt(userID, 10)).
		SetResult(&casResponse{}).
		Get("/check")
	if err != nil {
		return false, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("unexpected status code: %d %s", resp.StatusCode(), string(resp.Body()))
	}

	return resp.Result().(*casResponse).OK, nil
}
