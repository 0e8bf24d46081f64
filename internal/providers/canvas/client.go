package canvas

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomnomnom/linkheader"

	"school-secretary/internal/httpx"
)

const pageSize = 100

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Policy  httpx.Policy

	// PageDelay is slept between pages to stay under Canvas throttling.
	PageDelay time.Duration
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		HTTP:      httpx.NewClient(30 * time.Second),
		Policy:    httpx.DefaultPolicy(),
		PageDelay: 100 * time.Millisecond,
	}
}

func (c *Client) GetCourse(ctx context.Context, courseID int64) (Course, error) {
	var out Course
	u := fmt.Sprintf("%s/api/v1/courses/%d", c.BaseURL, courseID)
	if _, err := httpx.DoJSON(ctx, c.HTTP, c.get(u), &out, c.Policy); err != nil {
		return Course{}, fmt.Errorf("canvas: get course %d: %w", courseID, err)
	}
	return out, nil
}

// ListAssignments walks assignment groups until the Link header stops
// advertising a next page.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]Assignment, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/courses/%d/assignment_groups", c.BaseURL, courseID))
	if err != nil {
		return nil, fmt.Errorf("canvas: invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("include[]", "assignments")
	q.Set("per_page", fmt.Sprintf("%d", pageSize))
	q.Set("page", "1")
	u.RawQuery = q.Encode()

	var all []Assignment
	next := u.String()
	for page := 1; next != ""; page++ {
		var groups []AssignmentGroup
		resp, err := httpx.DoJSON(ctx, c.HTTP, c.get(next), &groups, c.Policy)
		if err != nil {
			return all, fmt.Errorf("canvas: list assignments page=%d: %w", page, err)
		}
		for _, g := range groups {
			all = append(all, g.Assignments...)
		}

		next = nextLink(resp.Header.Get("Link"))
		if next != "" && c.PageDelay > 0 {
			select {
			case <-time.After(c.PageDelay):
			case <-ctx.Done():
				return all, ctx.Err()
			}
		}
	}
	return all, nil
}

func (c *Client) get(u string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Accept", "application/json")
		if c.Token != "" {
			r.Header.Set("Authorization", "Bearer "+c.Token)
		}
		return r, nil
	}
}

// nextLink extracts the rel="next" target from a Link header.
func nextLink(header string) string {
	if next := linkheader.Parse(header).FilterByRel("next"); len(next) > 0 {
		return next[0].URL
	}
	return ""
}
