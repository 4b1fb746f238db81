package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/service"
)

// Tool names.
const (
	ToolAnalyzeProduct     = "analyze_product"
	ToolAnalyzeIngredients = "analyze_ingredients"
	ToolClassifyIngredient = "classify_ingredient"
	ToolMatchAllergens     = "match_allergens"
	ToolListConditions     = "list_conditions"
	ToolCatalogProduct     = "catalog_product"
)

// AnalyzeProductParams defines parameters for analyze_product
type AnalyzeProductParams struct {
	Barcode    string   `json:"barcode"`
	Allergens  []string `json:"allergens,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
	Mode       string   `json:"mode,omitempty"`
}

// AnalyzeIngredientsParams defines parameters for analyze_ingredients
type AnalyzeIngredientsParams struct {
	ProductName string             `json:"product_name,omitempty"`
	Ingredients string             `json:"ingredients"`
	Nutrients   map[string]float64 `json:"nutrients,omitempty"`
	Allergens   []string           `json:"allergens,omitempty"`
	Conditions  []string           `json:"conditions,omitempty"`
	Mode        string             `json:"mode,omitempty"`
	IsLiquid    bool               `json:"is_liquid,omitempty"`
}

// ClassifyIngredientParams defines parameters for classify_ingredient
type ClassifyIngredientParams struct {
	Ingredients []string `json:"ingredients"`
}

// MatchAllergensParams defines parameters for match_allergens
type MatchAllergensParams struct {
	Ingredients []string `json:"ingredients"`
	Allergens   []string `json:"allergens"`
}

// MatchAllergensResult is the match_allergens payload.
type MatchAllergensResult struct {
	Matched []string          `json:"matched"`
	Info    map[string]string `json:"info,omitempty"`
}

// ListConditionsParams takes no arguments.
type ListConditionsParams struct{}

// CatalogProductParams defines parameters for catalog_product
type CatalogProductParams struct {
	Barcode string `json:"barcode"`
}

func (s *Server) handleAnalyzeProduct(ctx context.Context, req *mcp.CallToolRequest, params AnalyzeProductParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolAnalyzeProduct).Info("Tool invoked")

	if strings.TrimSpace(params.Barcode) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("barcode is required")), nil, nil
	}
	mode, err := parseMode(params.Mode)
	if err != nil {
		return s.createErrorResult("Invalid parameters", err), nil, nil
	}

	profile := domain.UserProfile{Allergens: params.Allergens, Conditions: params.Conditions}
	result, err := s.analyzer.AnalyzeBarcode(ctx, params.Barcode, profile, service.AnalyzeOptions{Mode: mode})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBarcode) {
			return s.createErrorResult("Invalid barcode", err), nil, nil
		}
		return nil, nil, err
	}

	return s.analysisResult(result), nil, nil
}

func (s *Server) handleAnalyzeIngredients(ctx context.Context, req *mcp.CallToolRequest, params AnalyzeIngredientsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolAnalyzeIngredients).Info("Tool invoked")

	if strings.TrimSpace(params.Ingredients) == "" && len(params.Nutrients) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("ingredients or nutrients are required")), nil, nil
	}
	mode, err := parseMode(params.Mode)
	if err != nil {
		return s.createErrorResult("Invalid parameters", err), nil, nil
	}

	product := &domain.ProductRecord{
		Name:           params.ProductName,
		IngredientText: params.Ingredients,
		Nutrients:      domain.NutrientsFromMap(params.Nutrients),
		IsLiquid:       params.IsLiquid,
	}
	profile := domain.UserProfile{Allergens: params.Allergens, Conditions: params.Conditions}
	result := s.analyzer.AnalyzeManual(product, profile, service.AnalyzeOptions{Mode: mode})

	return s.analysisResult(result), nil, nil
}

func (s *Server) handleClassifyIngredient(ctx context.Context, req *mcp.CallToolRequest, params ClassifyIngredientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolClassifyIngredient).Info("Tool invoked")

	if len(params.Ingredients) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("ingredients is required")), nil, nil
	}

	ingredients := s.analyzer.ClassifyIngredients(ctx, params.Ingredients)

	var summary strings.Builder
	for _, ing := range ingredients {
		fmt.Fprintf(&summary, "%s: %s", ing.CanonicalName, ing.Safety)
		if ing.Description != "" {
			fmt.Fprintf(&summary, " (%s)", ing.Description)
		}
		summary.WriteString("\n")
	}

	return s.jsonResult(strings.TrimSpace(summary.String()), ingredients), nil, nil
}

func (s *Server) handleMatchAllergens(ctx context.Context, req *mcp.CallToolRequest, params MatchAllergensParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolMatchAllergens).Info("Tool invoked")

	if len(params.Allergens) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("allergens is required")), nil, nil
	}

	resolver := s.analyzer.Allergens()
	result := MatchAllergensResult{Matched: resolver.Match(params.Ingredients, params.Allergens)}
	for _, ing := range params.Ingredients {
		if _, info, ok := resolver.AllergenInfo(ing); ok {
			if result.Info == nil {
				result.Info = make(map[string]string)
			}
			result.Info[ing] = info
		}
	}

	summary := "No declared allergens found."
	if len(result.Matched) > 0 {
		summary = "Contains: " + strings.Join(result.Matched, ", ")
	}
	return s.jsonResult(summary, result), nil, nil
}

func (s *Server) handleListConditions(ctx context.Context, req *mcp.CallToolRequest, params ListConditionsParams) (*mcp.CallToolResult, any, error) {
	conditions := s.analyzer.Conditions()
	return s.jsonResult(strings.Join(conditions, ", "), conditions), nil, nil
}

func (s *Server) handleCatalogProduct(ctx context.Context, req *mcp.CallToolRequest, params CatalogProductParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolCatalogProduct).Info("Tool invoked")

	if strings.TrimSpace(params.Barcode) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("barcode is required")), nil, nil
	}
	product, err := s.catalog.GetProduct(ctx, params.Barcode)
	if err != nil {
		return s.createErrorResult("Catalog lookup failed", err), nil, nil
	}
	if product == nil {
		return s.createErrorResult("Product not in catalog", fmt.Errorf("barcode %s", params.Barcode)), nil, nil
	}
	return s.jsonResult(fmt.Sprintf("%s (%s)", product.Name, product.Barcode), product), nil, nil
}

// analysisResult renders a one-line verdict followed by the full JSON result.
func (s *Server) analysisResult(result *domain.AnalysisResult) *mcp.CallToolResult {
	summary := fmt.Sprintf("%s: score %.1f/10, %s (%s)", result.ProductName, result.Score, result.Tier, result.Rating)
	if result.Status == domain.STATUS_NOT_FOUND {
		summary = fmt.Sprintf("Product %s not found. Enter ingredients and nutrients manually with %s.", result.Barcode, ToolAnalyzeIngredients)
	}
	if len(result.MatchedAllergens) > 0 {
		summary += "\nAllergens: " + strings.Join(result.MatchedAllergens, ", ")
	}
	for _, w := range result.WarningStrings() {
		summary += "\n" + w
	}
	return s.jsonResult(summary, result)
}

func (s *Server) jsonResult(summary string, payload interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// createErrorResult creates an error result for tool failures
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

func parseMode(raw string) (domain.ScoringModeName, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return domain.ParseScoringMode(raw)
}
