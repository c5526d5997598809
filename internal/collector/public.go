package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"ThreadSentinel/internal/model"
)

const publicBaseURL = "https://www.reddit.com"

// PublicSource reads the unauthenticated JSON listing endpoints.
type PublicSource struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				SelfText    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Author      string  `json:"author"`
				Permalink   string  `json:"permalink"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				IsSelf      bool    `json:"is_self"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewPublicSource creates a public source limited to one request every two seconds.
func NewPublicSource(userAgent, proxyURL string) *PublicSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &PublicSource{
		httpClient: &http.Client{Timeout: 10 * time.Second, Transport: transport},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		userAgent:  userAgent,
		baseURL:    publicBaseURL,
	}
}

func (s *PublicSource) Name() string { return "public" }

func (s *PublicSource) FetchDiscussions(ctx context.Context, subreddit string, limit int) ([]*model.Discussion, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sub := normalizeSubreddit(subreddit)
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d&raw_json=1", s.baseURL, url.PathEscape(sub), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list r/%s: %w", sub, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list r/%s: reddit public access status %d", sub, resp.StatusCode)
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode r/%s listing: %w", sub, err)
	}

	out := make([]*model.Discussion, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		out = append(out, &model.Discussion{
			ID:          d.ID,
			Title:       d.Title,
			Text:        d.SelfText,
			Subreddit:   d.Subreddit,
			Author:      d.Author,
			Score:       d.Score,
			NumComments: d.NumComments,
			CreatedAt:   unixTime(d.CreatedUTC),
			Permalink:   permalinkURL(d.Permalink),
			IsSelf:      d.IsSelf,
		})
	}
	return out, nil
}
