package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/analysis"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/identity"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc       *Service
	Scheduler *analysis.Scheduler
	Logger    zerolog.Logger
}

// Routes mounts the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/items", h.AddItem)
		r.Delete("/items", h.Clear)
		r.Patch("/items/{productID}", h.UpdateItem)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Put("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Get("/analysis", h.Analysis)
	})
}

// Create starts a new cart for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Svc.Create(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": snap})
}

// Get returns the current cart snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	snap, err := h.Svc.Get(r.Context(), id, identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Delete removes the cart.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id, identity.FromContext(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=10000"`
}

// AddItem adds units of a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	snap, err := h.Svc.AddItem(r.Context(), id, identity.FromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=10000"`
}

// UpdateItem sets the quantity of one line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	snap, err := h.Svc.UpdateQuantity(r.Context(), id, identity.FromContext(r.Context()), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// RemoveItem drops one line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	snap, err := h.Svc.RemoveItem(r.Context(), id, identity.FromContext(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	snap, err := h.Svc.Clear(r.Context(), id, identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// ApplyCoupon attaches a coupon code to the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	var req couponRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	snap, err := h.Svc.ApplyCoupon(r.Context(), id, identity.FromContext(r.Context()), req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// RemoveCoupon detaches the coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	snap, err := h.Svc.RemoveCoupon(r.Context(), id, identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Analysis returns the newest analysis of the current snapshot, running one
// when the stored result belongs to an older version.
func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	id, ok := cartID(w, r)
	if !ok {
		return
	}
	snap, err := h.Svc.Get(r.Context(), id, identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	stored, found := h.Scheduler.Latest(id)
	res := stored.Result
	if !found || res.CartVersion != snap.Version {
		res, err = h.Scheduler.Run(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, analysis.NewResponse(res, nil))
}

func cartID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	parsed, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid cart id", nil)
		return "", false
	}
	obs.Annotate(r.Context(), "cart_id", parsed.String())
	return parsed.String(), true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var minErr *MinimumError
	switch {
	case errors.As(err, &minErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "BELOW_MINIMUM_PURCHASE", minErr.Check.Message, minErr.Check)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "cart not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
	case errors.Is(err, coupon.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cart belongs to another user", nil)
	case errors.Is(err, ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	case errors.Is(err, analysis.ErrClosed):
		common.JSONError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down", nil)
	default:
		h.Logger.Error().Err(err).Msg("cart_request_failed")
		common.WriteError(w, err)
	}
}
