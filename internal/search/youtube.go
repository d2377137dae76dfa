package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/singstage/singstage/lib/logger/sl"
)

const (
	searchEndpoint = "https://www.googleapis.com/youtube/v3/search"
	maxResults     = 30
)

var ErrEmptyQuery = errors.New("search query is empty")

// Result is one embeddable video found for a query.
type Result struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	ChannelTitle string `json:"channelTitle"`
}

// YouTubeClient searches the YouTube Data API v3 for karaoke versions of a
// song. Without an API key it serves canned results so the rest of the app
// stays usable in local setups.
type YouTubeClient struct {
	apiKey   string
	endpoint string
	http     *http.Client
	log      *slog.Logger
}

func NewYouTubeClient(apiKey string, log *slog.Logger) *YouTubeClient {
	if log == nil {
		log = slog.Default()
	}
	return &YouTubeClient{
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *YouTubeClient) WithHTTPClient(client *http.Client) *YouTubeClient {
	c.http = client
	return c
}

// WithEndpoint overrides the API endpoint.
func (c *YouTubeClient) WithEndpoint(endpoint string) *YouTubeClient {
	c.endpoint = endpoint
	return c
}

func (c *YouTubeClient) Search(ctx context.Context, query string) ([]Result, error) {
	const op = "search.youtube.search"
	log := c.log.With(slog.String("op", op))

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if c.apiKey == "" {
		log.Debug("no api key configured, serving mock results")
		return mockResults(query), nil
	}

	results, err := c.request(ctx, query)
	if err != nil {
		log.Error("youtube request failed, serving mock results", sl.Err(err))
		return mockResults(query), nil
	}
	return results, nil
}

func (c *YouTubeClient) request(ctx context.Context, query string) ([]Result, error) {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = searchEndpoint
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query+" karaoke")
	params.Set("type", "video")
	params.Set("videoEmbeddable", "true")
	params.Set("maxResults", fmt.Sprint(maxResults))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, Result{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			Thumbnail:    item.Snippet.Thumbnails.Medium.URL,
			ChannelTitle: item.Snippet.ChannelTitle,
		})
	}
	return results, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func mockResults(query string) []Result {
	return []Result{
		{
			ID:           "mock-1",
			Title:        query + " - Karaoke Version",
			Thumbnail:    "https://via.placeholder.com/320x180?text=Karaoke",
			ChannelTitle: "Karaoke Channel",
		},
		{
			ID:           "mock-2",
			Title:        query + " (Instrumental with Lyrics)",
			Thumbnail:    "https://via.placeholder.com/320x180?text=Instrumental",
			ChannelTitle: "Sing Along",
		},
		{
			ID:           "mock-3",
			Title:        query + " - Lower Key Karaoke",
			Thumbnail:    "https://via.placeholder.com/320x180?text=Lower+Key",
			ChannelTitle: "Karaoke Channel",
		},
	}
}
