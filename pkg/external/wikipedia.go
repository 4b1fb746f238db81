package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ingrescan-health-server/internal/domain"
)

// minSummaryLength is the shortest extract accepted as a description.
const minSummaryLength = 20

var (
	htmlTagPattern  = regexp.MustCompile(`<.*?>`)
	citationPattern = regexp.MustCompile(`\[\d+\]`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// WikipediaClient fetches page summaries from the Wikipedia REST API
type WikipediaClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	logger     *logrus.Logger
}

type wikiSummaryResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// NewWikipediaClient creates a new Wikipedia client
func NewWikipediaClient(config domain.WikipediaConfig, logger *logrus.Logger) *WikipediaClient {
	if config.Language == "" {
		config.Language = "en"
	}
	if config.BaseURL == "" {
		config.BaseURL = fmt.Sprintf("https://%s.wikipedia.org", config.Language)
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &WikipediaClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
	}
}

// SearchTerms lists the page titles tried for an ingredient, in order.
func SearchTerms(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return []string{
		query,
		query + " food additive",
		query + " preservative",
		query + " ingredient",
	}
}

// Summary returns the cleaned summary of the first search term that has a
// meaningful page. A miss is ("", nil).
func (w *WikipediaClient) Summary(ctx context.Context, query string) (string, error) {
	var lastErr error
	for _, term := range SearchTerms(query) {
		extract, err := w.fetchSummary(ctx, term)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			w.logger.WithFields(logrus.Fields{"term": term, "error": err}).Debug("Wikipedia summary failed")
			continue
		}
		if cleaned := CleanText(extract); len(cleaned) > minSummaryLength {
			return cleaned, nil
		}
	}
	return "", lastErr
}

func (w *WikipediaClient) fetchSummary(ctx context.Context, title string) (string, error) {
	if err := w.rateLimit.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	title = strings.ReplaceAll(title, " ", "_")
	fullURL := fmt.Sprintf("%s/api/rest_v1/page/summary/%s?redirect=true", w.baseURL, url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var summary wikiSummaryResponse
	if err := json.Unmarshal(body, &summary); err != nil {
		return "", fmt.Errorf("failed to parse summary: %w", err)
	}
	if summary.Type == "disambiguation" {
		return "", nil
	}
	return summary.Extract, nil
}

// CleanText strips HTML tags and citation markers and collapses whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	text = citationPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
