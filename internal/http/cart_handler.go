package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartService is the cart behaviour the HTTP layer exposes.
type CartService interface {
	GetCart(ctx context.Context, owner domain.Identity) (*domain.Cart, error)
	AddItem(ctx context.Context, owner domain.Identity, productID string, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, owner domain.Identity, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.Identity, productID string) (*domain.Cart, error)
	ReplaceCart(ctx context.Context, owner domain.Identity, items []domain.CartItem) (*domain.Cart, error)
	ClearCart(ctx context.Context, owner domain.Identity) (*domain.Cart, error)
	DeleteCart(ctx context.Context, owner domain.Identity) error
	MergeGuestToUser(ctx context.Context, userID, guestID string) (domain.MergeResult, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, owner)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req ItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, owner, req.ProductID, *req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req ItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateItem(ctx, owner, req.ProductID, *req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req RemoveItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, owner, req.ProductID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req ReplaceCartRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]domain.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	cart, err := h.carts.ReplaceCart(ctx, owner, items)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.ClearCart(ctx, owner)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.carts.DeleteCart(ctx, owner); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Cart deleted"})
}

func (h *CartHandler) MergeGuestToUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req MergeRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.carts.MergeGuestToUser(ctx, req.UserID, req.GuestID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// identity resolves the {kind}/{id} path segments, writing a 400 when they are invalid.
func (h *CartHandler) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	owner, err := domain.ParseIdentity(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return domain.Identity{}, false
	}
	return owner, true
}

func (h *CartHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := decodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	if errors.Is(err, errBodyTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
		return false
	}
	handleServiceError(w, r, err)
	return false
}
