package builtin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/tool"
)

// WikipediaOptions configures the Wikipedia tool.
type WikipediaOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// MaxChars caps the returned extract.
	MaxChars  int
	UserAgent string
}

// WikipediaArgs are the Wikipedia tool parameters.
type WikipediaArgs struct {
	SearchQuery string `json:"search_query" description:"Title or topic to look up"`
}

type wikipediaSummary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// NewWikipedia returns a tool that fetches the summary of the Wikipedia page
// best matching the query. A page that cannot be found yields a message
// asking for another query instead of an error.
func NewWikipedia(optFns ...func(o *WikipediaOptions)) tool.Tool {
	opts := WikipediaOptions{
		BaseURL:    "https://en.wikipedia.org",
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		MaxChars:   300,
		UserAgent:  "reactmesh/1.0",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewTypedTool("wikipedia", "Use this tool to search information on Wikipedia.",
		func(tc *core.ToolContext, in WikipediaArgs) (string, error) {
			query := strings.TrimSpace(in.SearchQuery)
			if query == "" {
				return "", tool.NewToolError(core.ToolErrorInvalidArguments, "wikipedia", "search_query must not be empty", nil)
			}

			summary, found, err := fetchSummary(tc, opts, query)
			if err != nil {
				return "", err
			}

			if !found || summary.Extract == "" {
				tc.LogInfo("wikipedia.not_found", "query", query)
				return notFound(query), nil
			}

			return truncate(summary.Extract, opts.MaxChars), nil
		})
}

func fetchSummary(tc *core.ToolContext, opts WikipediaOptions, query string) (wikipediaSummary, bool, error) {
	var summary wikipediaSummary

	title := url.PathEscape(strings.ReplaceAll(query, " ", "_"))
	endpoint := strings.TrimRight(opts.BaseURL, "/") + "/api/rest_v1/page/summary/" + title + "?redirect=true"

	req, err := http.NewRequestWithContext(tc.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		return summary, false, fmt.Errorf("build wikipedia request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return summary, false, fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return summary, false, nil
	case resp.StatusCode != http.StatusOK:
		return summary, false, fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return summary, false, fmt.Errorf("decode wikipedia summary: %w", err)
	}

	return summary, true, nil
}

func notFound(query string) string {
	return fmt.Sprintf("Could not find information about %s on Wikipedia. Please try again with a different search query.", query)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max])
}

// WithWikipediaBaseURL points the tool at another MediaWiki host.
func WithWikipediaBaseURL(u string) func(o *WikipediaOptions) {
	return func(o *WikipediaOptions) {
		o.BaseURL = u
	}
}

// WithWikipediaHTTPClient sets the HTTP client.
func WithWikipediaHTTPClient(c *http.Client) func(o *WikipediaOptions) {
	return func(o *WikipediaOptions) {
		if c != nil {
			o.HTTPClient = c
		}
	}
}
