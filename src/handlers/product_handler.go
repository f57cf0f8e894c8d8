package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/services"
	"github.com/username/advisorcrm/backend/src/utils"
)

const productCatalogCacheKey = "products:catalog"

type ProductHandler struct {
	products     services.ProductStore
	catalogCache *cache.Cache
}

func NewProductHandler(products services.ProductStore, catalogCache *cache.Cache) *ProductHandler {
	return &ProductHandler{products: products, catalogCache: catalogCache}
}

// HandleListProducts returns the full product catalog, cached between the
// frequent reads the allocation-builder UI issues.
func (h *ProductHandler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	if h.catalogCache != nil {
		if cached, found := h.catalogCache.Get(productCatalogCacheKey); found {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}
	}

	products, err := h.products.ListProducts()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list products", "error", err)
		utils.SendJSONError(w, "Failed to retrieve products", http.StatusInternalServerError)
		return
	}

	if h.catalogCache != nil {
		h.catalogCache.Set(productCatalogCacheKey, products, cache.DefaultExpiration)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

func (h *ProductHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid product id", http.StatusBadRequest)
		return
	}

	product, err := h.products.GetProductByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to get product", "productID", id, "error", err)
		utils.SendJSONError(w, "Failed to retrieve product", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(product)
}
