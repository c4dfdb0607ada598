package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sgp-fichas/fichas-api/middleware"
	"github.com/sgp-fichas/fichas-api/services"
	"github.com/sgp-fichas/fichas-api/utils"
	"go.uber.org/zap"
)

// ListOrdersQuery represents the query string of GET /api/v1/orders
type ListOrdersQuery struct {
	Skip      int    `form:"skip" binding:"omitempty,min=0"`
	Limit     int    `form:"limit" binding:"omitempty,min=0"`
	Status    string `form:"status"`
	Client    string `form:"cliente"`
	StartDate string `form:"data_inicio" binding:"omitempty,isodate"`
	EndDate   string `form:"data_fim" binding:"omitempty,isodate"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondServiceError maps order service errors onto HTTP responses
func respondServiceError(c *gin.Context, err error) {
	var (
		validationErr *services.ValidationError
		imageErr      *utils.ImageDecodingError
	)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, services.ErrItemNotFound):
		respondError(c, http.StatusNotFound, "ITEM_NOT_FOUND", "Item not found")
	case errors.Is(err, services.ErrImageNotFound):
		respondError(c, http.StatusNotFound, "IMAGE_NOT_FOUND", "Item has no image")
	case errors.Is(err, services.ErrOrderNumberConflict):
		respondError(c, http.StatusConflict, "ORDER_NUMBER_EXISTS", "An order with this number already exists")
	case errors.As(err, &validationErr):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error())
	case errors.As(err, &imageErr):
		respondError(c, http.StatusBadRequest, imageErr.Code, imageErr.Message)
	default:
		zap.L().Error("order request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "ORDER_SAVE_ERROR", "Failed to process order")
	}
}

func actorFrom(c *gin.Context) services.Actor {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		return services.Actor{}
	}
	return services.Actor{UserID: identity.UserID, Username: identity.Username}
}

func parseOrderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID")
		return 0, false
	}
	return uint(id), true
}

func bindOrderInput(c *gin.Context) (services.OrderInput, bool) {
	var in services.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return in, false
	}
	return in, true
}

// CreateOrder handles POST /api/v1/orders
func CreateOrder(c *gin.Context) {
	in, ok := bindOrderInput(c)
	if !ok {
		return
	}

	order, err := services.GetOrderService().Create(c.Request.Context(), in, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders
func ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid query parameters",
				"details": err.Error(),
			},
		})
		return
	}

	orders, err := services.GetOrderService().List(c.Request.Context(), services.ListFilter{
		Skip:      query.Skip,
		Limit:     query.Limit,
		Status:    query.Status,
		Client:    query.Client,
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	order, err := services.GetOrderService().Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrder handles PATCH /api/v1/orders/:id. Only the fields present in the body change.
func UpdateOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	in, ok := bindOrderInput(c)
	if !ok {
		return
	}

	order, err := services.GetOrderService().Update(c.Request.Context(), id, in, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// DeleteOrder handles DELETE /api/v1/orders/:id
func DeleteOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	if err := services.GetOrderService().Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order deleted",
	})
}

// DeleteAllOrders handles DELETE /api/v1/orders
func DeleteAllOrders(c *gin.Context) {
	deleted, err := services.GetOrderService().DeleteAll(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"deleted": deleted},
	})
}

// ListOrdersByStatus handles GET /api/v1/orders/status/:status
func ListOrdersByStatus(c *gin.Context) {
	orders, err := services.GetOrderService().ListByStatus(c.Request.Context(), c.Param("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// GetOrderByItemID handles GET /api/v1/orders/items/:itemId
func GetOrderByItemID(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid item ID")
		return
	}

	order, item, err := services.GetOrderService().FindByItemID(c.Request.Context(), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"pedido": order,
			"item":   item,
		},
	})
}

// GetItemImageURL handles GET /api/v1/orders/:id/items/:position/image
func GetItemImageURL(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		respondError(c, http.StatusBadRequest, "INVALID_POSITION", "Invalid item position")
		return
	}

	url, err := services.GetOrderService().ItemImageURL(c.Request.Context(), id, position)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"url": url},
	})
}
