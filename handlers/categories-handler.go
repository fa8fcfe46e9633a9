package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/biki-cloud/online-shop/internal/categories"
	"github.com/biki-cloud/online-shop/pkg/ctxmanage"
	"github.com/biki-cloud/online-shop/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListCategories(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	list, err := h.cat.ListCategories(c.Request.Context())
	if err != nil {
		slog.Error("error listing categories", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to list categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": list})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var nc categories.NewCategory
	if err := c.ShouldBindJSON(&nc); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(nc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	category, err := h.cat.CreateCategory(c.Request.Context(), nc)
	if err != nil {
		slog.Error("error creating category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var nc categories.NewCategory
	if err := c.ShouldBindJSON(&nc); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(nc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	category, err := h.cat.UpdateCategory(c.Request.Context(), c.Param("id"), nc)
	if err != nil {
		if errors.Is(err, categories.ErrCategoryNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Category not found"})
			return
		}
		slog.Error("error updating category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to update category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	err := h.cat.DeleteCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, categories.ErrCategoryNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Category not found"})
			return
		}
		slog.Error("error deleting category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
