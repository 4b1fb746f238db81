package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ingrescan-health-server/internal/domain"
)

const (
	defaultOFFBaseURL   = "https://world.openfoodfacts.org"
	defaultOFFUserAgent = "IngreScan/1.0 (+https://github.com/ingrescan-health-server)"

	offProductFields = "code,product_name,product_name_en,generic_name,generic_name_en,brands," +
		"ingredients_text,ingredients_text_en,ingredients_text_fr,ingredients_text_es," +
		"ingredients_text_de,ingredients_text_in,ingredients,nutriments,allergens_tags," +
		"additives_tags,categories_tags,quantity,last_modified_t"
)

// OpenFoodFactsClient fetches product records from the Open Food Facts API.
// Lookups try the v2 product endpoint, then the legacy v0 endpoint, then the
// full-text search endpoint.
type OpenFoodFactsClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	logger     *logrus.Logger
}

// NewOpenFoodFactsClient creates a new Open Food Facts client
func NewOpenFoodFactsClient(config domain.OpenFoodFactsConfig, logger *logrus.Logger) *OpenFoodFactsClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultOFFBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultOFFUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}

	return &OpenFoodFactsClient{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
	}
}

// offProduct is the subset of the Open Food Facts product document we read.
type offProduct struct {
	Code              string                 `json:"code"`
	ProductName       string                 `json:"product_name"`
	ProductNameEN     string                 `json:"product_name_en"`
	GenericName       string                 `json:"generic_name"`
	GenericNameEN     string                 `json:"generic_name_en"`
	Brands            string                 `json:"brands"`
	IngredientsText   string                 `json:"ingredients_text"`
	IngredientsTextEN string                 `json:"ingredients_text_en"`
	IngredientsTextFR string                 `json:"ingredients_text_fr"`
	IngredientsTextES string                 `json:"ingredients_text_es"`
	IngredientsTextDE string                 `json:"ingredients_text_de"`
	IngredientsTextIN string                 `json:"ingredients_text_in"`
	Ingredients       []offIngredient        `json:"ingredients"`
	Nutriments        map[string]interface{} `json:"nutriments"`
	AllergensTags     []string               `json:"allergens_tags"`
	AdditivesTags     []string               `json:"additives_tags"`
	CategoriesTags    []string               `json:"categories_tags"`
	Quantity          string                 `json:"quantity"`
	LastModifiedT     int64                  `json:"last_modified_t"`
}

type offIngredient struct {
	Text string `json:"text"`
}

// offProductResponse covers both the v2 and v0 product endpoints.
type offProductResponse struct {
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Product *offProduct `json:"product"`
}

type offSearchResponse struct {
	Count    int          `json:"count"`
	Products []offProduct `json:"products"`
}

// FetchProduct implements domain.ProductSource. It returns (nil, nil) when no
// endpoint knows the barcode.
func (c *OpenFoodFactsClient) FetchProduct(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("barcode cannot be empty")
	}

	v2URL := fmt.Sprintf("%s/api/v2/product/%s?%s", c.baseURL, url.PathEscape(barcode), url.Values{
		"lc":     {"en"},
		"fields": {offProductFields},
	}.Encode())
	product, err := c.fetchProductDocument(ctx, v2URL)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"barcode": barcode, "endpoint": "v2", "error": err}).Debug("Open Food Facts lookup failed")
	}
	if product != nil {
		return product.toRecord(barcode), nil
	}

	v0URL := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))
	product, v0Err := c.fetchProductDocument(ctx, v0URL)
	if v0Err != nil {
		c.logger.WithFields(logrus.Fields{"barcode": barcode, "endpoint": "v0", "error": v0Err}).Debug("Open Food Facts lookup failed")
	}
	if product != nil {
		return product.toRecord(barcode), nil
	}

	products, searchErr := c.searchProducts(ctx, barcode, 10)
	if searchErr != nil {
		// Every endpoint failed at the transport level
		if err != nil && v0Err != nil {
			return nil, fmt.Errorf("open food facts unavailable: %w", searchErr)
		}
		return nil, nil
	}
	for i := range products {
		if products[i].Code == barcode {
			return products[i].toRecord(barcode), nil
		}
	}

	c.logger.WithField("barcode", barcode).Info("Product not found on Open Food Facts")
	return nil, nil
}

// searchProducts runs a full-text product search.
func (c *OpenFoodFactsClient) searchProducts(ctx context.Context, terms string, pageSize int) ([]offProduct, error) {
	if pageSize <= 0 {
		pageSize = 1
	}
	params := url.Values{
		"search_terms":  {terms},
		"search_simple": {"1"},
		"action":        {"process"},
		"json":          {"1"},
		"page_size":     {strconv.Itoa(pageSize)},
	}
	searchURL := fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, params.Encode())

	body, err := c.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp offSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return resp.Products, nil
}

// SearchProductName returns the display name of the first product matching
// terms, used as a last-resort ingredient hint.
func (c *OpenFoodFactsClient) SearchProductName(ctx context.Context, terms string) (string, error) {
	products, err := c.searchProducts(ctx, terms, 1)
	if err != nil {
		return "", err
	}
	for i := range products {
		if name := products[i].displayName(); name != "" {
			return name, nil
		}
	}
	return "", nil
}

// fetchProductDocument returns nil without error on a 404 or when the
// document reports status 0.
func (c *OpenFoodFactsClient) fetchProductDocument(ctx context.Context, fullURL string) (*offProduct, error) {
	body, err := c.get(ctx, fullURL)
	if err != nil || body == nil {
		return nil, err
	}

	var resp offProductResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse product response: %w", err)
	}
	if resp.Status != 1 || resp.Product == nil {
		return nil, nil
	}
	if resp.Product.Code == "" {
		resp.Product.Code = resp.Code
	}
	return resp.Product, nil
}

func (c *OpenFoodFactsClient) get(ctx context.Context, fullURL string) ([]byte, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open food facts returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (p *offProduct) displayName() string {
	for _, name := range []string{p.ProductName, p.ProductNameEN, p.GenericNameEN, p.GenericName, p.Brands} {
		if s := strings.TrimSpace(name); s != "" {
			return s
		}
	}
	return ""
}

func (p *offProduct) ingredientText() string {
	for _, text := range []string{
		p.IngredientsTextEN, p.IngredientsText, p.IngredientsTextFR,
		p.IngredientsTextES, p.IngredientsTextDE, p.IngredientsTextIN,
	} {
		if s := strings.TrimSpace(text); s != "" {
			return s
		}
	}
	return ""
}

// toRecord normalizes the document into a ProductRecord.
func (p *offProduct) toRecord(barcode string) *domain.ProductRecord {
	record := &domain.ProductRecord{
		Barcode:        barcode,
		Name:           p.displayName(),
		Brand:          strings.TrimSpace(p.Brands),
		Nutrients:      nutrientsFromOFF(p.Nutriments),
		IngredientText: p.ingredientText(),
		AllergenTags:   p.AllergensTags,
		AdditiveTags:   p.AdditivesTags,
		IsLiquid:       isLiquid(p.Quantity, p.CategoriesTags),
		Source:         domain.OriginOpenFoodFacts,
	}
	if record.IngredientText == "" {
		for _, ing := range p.Ingredients {
			if text := strings.TrimSpace(ing.Text); text != "" {
				record.Ingredients = append(record.Ingredients, text)
			}
		}
	}
	if p.LastModifiedT > 0 {
		record.LastModified = time.Unix(p.LastModifiedT, 0).UTC()
	}
	return record
}

// nutrientsFromOFF reads only per-100g values; OFF mixes numbers and numeric
// strings in the nutriments object.
func nutrientsFromOFF(nutriments map[string]interface{}) domain.NutrientProfile {
	values := make(map[string]float64, len(nutriments))
	for key, raw := range nutriments {
		if !strings.HasSuffix(key, "_100g") {
			continue
		}
		var value float64
		switch v := raw.(type) {
		case float64:
			value = v
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			value = parsed
		default:
			continue
		}
		values[key] = value
	}
	return domain.NutrientsFromMap(values)
}

func isLiquid(quantity string, categories []string) bool {
	q := strings.ToLower(strings.TrimSpace(quantity))
	for _, unit := range []string{"ml", "cl", "l"} {
		if strings.HasSuffix(q, unit) && len(q) > len(unit) {
			prev := q[len(q)-len(unit)-1]
			if prev == ' ' || (prev >= '0' && prev <= '9') {
				return true
			}
		}
	}
	for _, tag := range categories {
		if strings.Contains(strings.ToLower(tag), "beverages") {
			return true
		}
	}
	return false
}
