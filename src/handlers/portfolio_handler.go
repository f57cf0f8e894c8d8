package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/models"
	"github.com/username/advisorcrm/backend/src/security/validation"
	"github.com/username/advisorcrm/backend/src/services"
	"github.com/username/advisorcrm/backend/src/utils"
)

type PortfolioHandler struct {
	metricsService services.MetricsService
	portfolios     services.PortfolioStore
	products       services.ProductStore
	proposer       services.AllocationProposer
}

func NewPortfolioHandler(metricsService services.MetricsService, portfolios services.PortfolioStore,
	products services.ProductStore, proposer services.AllocationProposer) *PortfolioHandler {
	return &PortfolioHandler{
		metricsService: metricsService,
		portfolios:     portfolios,
		products:       products,
		proposer:       proposer,
	}
}

type metricsRequest struct {
	Allocation []models.AllocationLine `json:"allocation"`
}

type savePortfolioRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Allocation  []models.AllocationLine `json:"allocation"`
}

type proposalRequest struct {
	Brief      string `json:"brief"`
	RiskTarget int    `json:"riskTarget"`
}

// validateAllocation rejects lines a caller should never send. Sums that do
// not reach 100 are fine (the engine rescales); negative or zero weights and
// missing product ids are not.
func validateAllocation(lines []models.AllocationLine) error {
	for i, line := range lines {
		if line.ProductID <= 0 {
			return errors.New("allocation line " + strconv.Itoa(i) + ": productId is required")
		}
		if err := validation.ValidatePercentage(line.Percentage, "percentage"); err != nil {
			return errors.New("allocation line " + strconv.Itoa(i) + ": " + err.Error())
		}
	}
	return nil
}

// HandleCalculateMetrics computes a metrics report for an ad-hoc allocation
// without persisting anything. An empty allocation yields the policy-defaults
// report, not an error.
func (h *PortfolioHandler) HandleCalculateMetrics(w http.ResponseWriter, r *http.Request) {
	var req metricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if err := validateAllocation(req.Allocation); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, normalized, err := h.metricsService.CalculateMetrics(r.Context(), req.Allocation)
	if err != nil {
		logger.FromContext(r.Context()).Error("Metrics calculation failed", "error", err)
		utils.SendJSONError(w, "Calculation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"allocation": normalized,
		"report":     report,
	})
}

// HandleSavePortfolio computes the report and persists a model portfolio with
// its allocation rows in one transaction.
func (h *PortfolioHandler) HandleSavePortfolio(w http.ResponseWriter, r *http.Request) {
	var req savePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	name := validation.SanitizeText(req.Name)
	description := validation.SanitizeText(req.Description)
	if err := validation.ValidateStringNotEmpty(name, "name"); err != nil {
		utils.SendJSONError(w, "Portfolio name is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(name, validation.MaxPortfolioNameLength, "name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(description, validation.MaxDescriptionLength, "description"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Allocation) == 0 {
		utils.SendJSONError(w, "Allocation is required", http.StatusBadRequest)
		return
	}
	if err := validateAllocation(req.Allocation); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	portfolioID, report, err := h.metricsService.SavePortfolio(r.Context(), name, description, req.Allocation)
	if err != nil {
		if errors.Is(err, services.ErrEmptyAllocation) {
			utils.SendJSONError(w, "Allocation is required", http.StatusBadRequest)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to save model portfolio", "error", err)
		utils.SendJSONError(w, "Calculation or save failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":     portfolioID,
		"report": report,
	})
}

func (h *PortfolioHandler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolios.ListModelPortfolios()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list model portfolios", "error", err)
		utils.SendJSONError(w, "Failed to retrieve portfolios", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(portfolios)
}

func (h *PortfolioHandler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid portfolio id", http.StatusBadRequest)
		return
	}

	portfolio, err := h.portfolios.GetModelPortfolio(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to get model portfolio", "portfolioID", id, "error", err)
		utils.SendJSONError(w, "Failed to retrieve portfolio", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(portfolio)
}

func (h *PortfolioHandler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid portfolio id", http.StatusBadRequest)
		return
	}

	if err := h.portfolios.DeleteModelPortfolio(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Portfolio not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete model portfolio", "portfolioID", id, "error", err)
		utils.SendJSONError(w, "Failed to delete portfolio", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleProposeAllocation asks the LLM boundary for a candidate allocation,
// then runs it through the same normalize-and-compute path as manual input.
// The proposal is returned alongside its report; nothing is persisted.
func (h *PortfolioHandler) HandleProposeAllocation(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	brief := validation.SanitizeText(req.Brief)
	if err := validation.ValidateStringNotEmpty(brief, "brief"); err != nil {
		utils.SendJSONError(w, "Client brief is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(brief, validation.MaxBriefLength, "brief"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RiskTarget < 1 || req.RiskTarget > 7 {
		utils.SendJSONError(w, "riskTarget must be between 1 and 7", http.StatusBadRequest)
		return
	}

	products, err := h.products.ListProducts()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load catalog for proposal", "error", err)
		utils.SendJSONError(w, "Failed to retrieve products", http.StatusInternalServerError)
		return
	}

	proposed, err := h.proposer.ProposeAllocation(r.Context(), brief, req.RiskTarget, products)
	if err != nil {
		if errors.Is(err, services.ErrProposerDisabled) {
			utils.SendJSONError(w, "Allocation proposal is not available", http.StatusServiceUnavailable)
			return
		}
		logger.FromContext(r.Context()).Error("Allocation proposal failed", "error", err)
		utils.SendJSONError(w, "Allocation proposal failed", http.StatusBadGateway)
		return
	}

	report, normalized, err := h.metricsService.CalculateMetrics(r.Context(), proposed)
	if err != nil {
		logger.FromContext(r.Context()).Error("Metrics calculation over proposal failed", "error", err)
		utils.SendJSONError(w, "Calculation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"allocation": normalized,
		"report":     report,
	})
}
