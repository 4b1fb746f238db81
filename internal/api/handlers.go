package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/middleware"
	"github.com/ingrescan-health-server/internal/service"
)

// maxImportBytes bounds a CSV upload.
const maxImportBytes = 32 << 20

// ManualScanRequest is the body of POST /api/v1/scan/manual.
type ManualScanRequest struct {
	ProductName    string             `json:"product_name"`
	Ingredients    string             `json:"ingredients"`
	IngredientList []string           `json:"ingredient_list"`
	Nutrients      map[string]float64 `json:"nutrients"`
	Allergens      []string           `json:"allergens"`
	Conditions     []string           `json:"conditions"`
	Mode           string             `json:"mode"`
	IsLiquid       bool               `json:"is_liquid"`
}

// ClassifyRequest is the body of POST /api/v1/ingredients/classify.
type ClassifyRequest struct {
	Ingredients []string `json:"ingredients"`
	Text        string   `json:"text"`
}

// AllergenMatchRequest is the body of POST /api/v1/allergens/match.
type AllergenMatchRequest struct {
	Ingredients []string `json:"ingredients"`
	Text        string   `json:"text"`
	Tags        []string `json:"tags"`
	Allergens   []string `json:"allergens"`
}

// AllergenNote is the static allergen reference for one ingredient.
type AllergenNote struct {
	Ingredient string `json:"ingredient"`
	Allergen   string `json:"allergen"`
	Info       string `json:"info"`
}

// AllergenMatchResponse lists matched allergens and per-ingredient notes.
type AllergenMatchResponse struct {
	Matched    []string       `json:"matched"`
	TagMatched []string       `json:"tag_matched,omitempty"`
	Notes      []AllergenNote `json:"notes,omitempty"`
}

// handleHealth reports overall status and per-dependency checks.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":       status,
		"checks":       checks,
		"scoring_mode": s.deps.Analyzer.DefaultMode(),
		"timestamp":    time.Now().UTC(),
		"version":      s.configManager.GetConfig().MCP.ServerVersion,
	})
}

// handleScanBarcode looks up a barcode and analyzes the product.
func (s *Server) handleScanBarcode(c *gin.Context) {
	barcode := strings.TrimSpace(c.Param("barcode"))
	mode, ok := s.parseMode(c, c.Query("mode"))
	if !ok {
		return
	}
	profile := domain.UserProfile{
		Allergens:  splitList(c.Query("allergens")),
		Conditions: splitList(c.Query("conditions")),
	}

	result, err := s.deps.Analyzer.AnalyzeBarcode(c.Request.Context(), barcode, profile, service.AnalyzeOptions{Mode: mode})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBarcode) {
			s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid barcode", err.Error())
			return
		}
		s.respondError(c, http.StatusBadGateway, domain.ErrExternalAPI, "Product lookup failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleScanManual analyzes a hand-entered product.
func (s *Server) handleScanManual(c *gin.Context) {
	var req ManualScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Ingredients) == "" && len(req.IngredientList) == 0 && len(req.Nutrients) == 0 {
		verr := domain.NewValidationError("ingredients", "ingredients or nutrients are required", nil)
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrValidation, "Nothing to analyze", verr.Error())
		return
	}
	mode, ok := s.parseMode(c, req.Mode)
	if !ok {
		return
	}

	product := &domain.ProductRecord{
		Name:           req.ProductName,
		IngredientText: req.Ingredients,
		Ingredients:    req.IngredientList,
		Nutrients:      domain.NutrientsFromMap(req.Nutrients),
		IsLiquid:       req.IsLiquid,
	}
	profile := domain.UserProfile{Allergens: req.Allergens, Conditions: req.Conditions}

	c.JSON(http.StatusOK, s.deps.Analyzer.AnalyzeManual(product, profile, service.AnalyzeOptions{Mode: mode}))
}

// handleClassifyIngredients returns the per-ingredient breakdown.
func (s *Server) handleClassifyIngredients(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}
	names := append([]string{}, req.Ingredients...)
	names = append(names, service.ParseIngredients(req.Text)...)
	if len(names) == 0 {
		verr := domain.NewValidationError("ingredients", "at least one ingredient is required", req.Ingredients)
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrValidation, "No ingredients given", verr.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": s.deps.Analyzer.ClassifyIngredients(c.Request.Context(), names),
	})
}

// handleMatchAllergens matches declared allergens against ingredients and tags.
func (s *Server) handleMatchAllergens(c *gin.Context) {
	var req AllergenMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}
	if len(req.Allergens) == 0 {
		verr := domain.NewValidationError("allergens", "at least one allergen is required", req.Allergens)
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrValidation, "No allergens given", verr.Error())
		return
	}

	resolver := s.deps.Analyzer.Allergens()
	ingredients := append([]string{}, req.Ingredients...)
	ingredients = append(ingredients, service.ParseIngredients(req.Text)...)

	resp := AllergenMatchResponse{
		Matched: resolver.Match(ingredients, req.Allergens),
	}
	if len(req.Tags) > 0 {
		resp.TagMatched = resolver.MatchTags(req.Tags, req.Allergens)
	}
	for _, ing := range ingredients {
		if allergen, info, ok := resolver.AllergenInfo(ing); ok {
			resp.Notes = append(resp.Notes, AllergenNote{Ingredient: ing, Allergen: allergen, Info: info})
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleListConditions lists the health conditions with rules.
func (s *Server) handleListConditions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conditions": s.deps.Analyzer.Conditions()})
}

func (s *Server) handleListProducts(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request.Context()
	products, err := s.deps.Catalog.ListProducts(ctx, limit, offset)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCatalog, "Failed to list products", err.Error())
		return
	}
	total, err := s.deps.Catalog.CountProducts(ctx)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCatalog, "Failed to count products", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetProduct(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	barcode := c.Param("barcode")
	product, err := s.deps.Catalog.GetProduct(c.Request.Context(), barcode)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCatalog, "Failed to read catalog", err.Error())
		return
	}
	if product == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrProductNotFound, "Product not in catalog", barcode)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	if err := s.deps.Catalog.DeleteProduct(c.Request.Context(), c.Param("barcode")); err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCatalog, "Failed to delete product", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleImportProducts(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	result, err := s.importer.ImportProducts(c.Request.Context(), body)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCatalog, "Product import failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleImportIngredients(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	result, err := s.importer.ImportIngredients(c.Request.Context(), body)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCatalog, "Ingredient import failed", err.Error())
		return
	}
	if result.Imported > 0 && s.deps.Names != nil {
		s.deps.Names.Invalidate()
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) requireCatalog(c *gin.Context) bool {
	if s.deps.Catalog == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCatalog, "Local catalog is not configured", "")
		return false
	}
	return true
}

func (s *Server) parseMode(c *gin.Context, raw string) (domain.ScoringModeName, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	mode, err := domain.ParseScoringMode(raw)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Unknown scoring mode", err.Error())
		return "", false
	}
	return mode, true
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	serviceErr := domain.NewServiceError(code, message, details, c.GetString(middleware.CorrelationIDKey))
	if status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"code":           code,
			"details":        details,
			"correlation_id": serviceErr.RequestID,
		}).Error(message)
	}
	c.AbortWithStatusJSON(status, serviceErr)
}

// splitList splits a comma separated query value, dropping empties.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
