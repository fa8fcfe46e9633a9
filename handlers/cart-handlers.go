package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/biki-cloud/online-shop/internal/auth"
	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/pkg/ctxmanage"
	"github.com/biki-cloud/online-shop/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AddToCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if request.Quantity == 0 {
		request.Quantity = 1
	}

	if request.ProductID == "" || request.Quantity < 1 {
		slog.Error("invalid product ID or quantity", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Product ID and quantity must be valid"})
		return
	}

	// Make sure the product still exists before putting it in the cart
	if _, err := h.p.GetProduct(c.Request.Context(), request.ProductID); err != nil {
		slog.Error("product lookup failed", slog.String(logkey.TraceID, traceId),
			slog.String("ProductID", request.ProductID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Unknown product"})
		return
	}

	item, err := h.c.AddItem(c.Request.Context(), userId, request.ProductID, request.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Quantity must be at least 1"})
			return
		}
		slog.Error("error adding product to cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("ProductID", request.ProductID), slog.Int("Quantity", request.Quantity))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to add product to cart"})
		return
	}

	slog.Info("product added to cart", slog.String(logkey.TraceID, traceId),
		slog.String("ProductID", request.ProductID), slog.Int("Quantity", item.Quantity), slog.String(logkey.UserID, userId))

	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) GetActiveCartItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	activeCart, err := h.c.FindActiveCart(c.Request.Context(), userId)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) {
			c.JSON(http.StatusOK, gin.H{"items": []cart.DetailedItem{}})
			return
		}
		slog.Error("error fetching active cart", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch cart"})
		return
	}

	items, err := h.c.GetCartItems(c.Request.Context(), activeCart.ID)
	if err != nil {
		slog.Error("error fetching cart items", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch cart items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) UpdateCartItemQuantity(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	cartItemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid cart item id"})
		return
	}

	var request struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	item, err := h.c.UpdateItemQuantity(c.Request.Context(), cartItemID, request.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Quantity must be at least 1"})
		case errors.Is(err, cart.ErrItemNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Cart item not found"})
		default:
			slog.Error("error updating cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to update cart item"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	cartItemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid cart item id"})
		return
	}

	removed, err := h.c.RemoveItem(c.Request.Context(), cartItemID)
	if err != nil {
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove cart item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
