// internal/api/handlers/order_handler.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/orders"
	"commande-track-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderHandler struct {
	Service *orders.Service
	Store   *store.OrganisationStore
	History *store.HistoryStore
}

// --- Structs for Request Body ---

type ProductRequest struct {
	Name     string `json:"name" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Spec     string `json:"spec"`
}

type CreateOrderRequest struct {
	Reference    string           `json:"reference"`
	ClientID     string           `json:"clientID"`
	ClientName   string           `json:"clientName"`
	ClientEmail  string           `json:"clientEmail"`
	Products     []ProductRequest `json:"products" binding:"required,dive"`
	StepNames    []string         `json:"steps"`
	DeliveryDate time.Time        `json:"deliveryDate" binding:"required"`
}

type UpdateOrderRequest struct {
	Reference    *string                 `json:"reference"`
	Client       *models.ClientSnapshot  `json:"client"`
	Products     []models.Product        `json:"products"`
	Steps        []models.ProductionStep `json:"steps"`
	DeliveryDate *time.Time              `json:"deliveryDate"`
}

type ChangeStatusRequest struct {
	Status       models.OrderStatus `json:"status" binding:"required"`
	Progression  *int               `json:"progression"`
	NotifyClient bool               `json:"notifyClient"`
}

type UpdateStepRequest struct {
	Status models.StepStatus `json:"status" binding:"required"`
}

// --- Handlers ---

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	products := make([]models.Product, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, models.Product{Name: p.Name, Quantity: p.Quantity, Spec: p.Spec})
	}

	order, err := h.Service.Create(c.Request.Context(), orders.CreateOrderInput{
		OrgID:     orgID,
		Reference: req.Reference,
		ClientID:  req.ClientID,
		Client: models.ClientSnapshot{
			Name:  req.ClientName,
			Email: req.ClientEmail,
		},
		Products:     products,
		StepNames:    req.StepNames,
		DeliveryDate: req.DeliveryDate,
		Source:       models.SourceWeb,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetAllOrders(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	org, err := h.Store.FindByID(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if org.Orders == nil {
		org.Orders = []models.Order{}
	}
	c.JSON(http.StatusOK, org.Orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	_, order, err := h.Store.FindOrder(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Service.Update(c.Request.Context(), orders.UpdateOrderInput{
		OrgID:        orgID,
		OrderRef:     c.Param("id"),
		Reference:    req.Reference,
		Client:       req.Client,
		Products:     req.Products,
		Steps:        req.Steps,
		DeliveryDate: req.DeliveryDate,
		Source:       models.SourceWeb,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	if err := h.Service.Delete(c.Request.Context(), orgID, c.Param("id"), models.SourceWeb); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Order deleted"})
}

// ChangeStatus is the authoritative status-change endpoint.
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Service.ChangeStatus(c.Request.Context(), orders.StatusChangeInput{
		OrgID:           orgID,
		OrderRef:        c.Param("id"),
		Status:          req.Status,
		ProgressionHint: req.Progression,
		NotifyClient:    req.NotifyClient,
		Source:          models.SourceWeb,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) UpdateStep(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	var req UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Service.UpdateStep(c.Request.Context(), orders.StepUpdateInput{
		OrgID:    orgID,
		OrderRef: c.Param("id"),
		StepID:   c.Param("stepID"),
		Status:   req.Status,
		Source:   models.SourceWeb,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetHistory returns an order's audit entries, newest first.
func (h *OrderHandler) GetHistory(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	// Resolve through the organisation so one tenant cannot read another's
	// trail, then query history by the global id.
	_, order, err := h.Store.FindOrder(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	entries, err := h.History.ByOrder(c.Request.Context(), order.ID.Hex())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query history"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// --- shared helpers ---

func orgIDFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	orgID, err := primitive.ObjectIDFromHex(c.GetString("org_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid organisation in token"})
		return primitive.NilObjectID, false
	}
	return orgID, true
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, store.ErrOrganisationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Organisation not found"})
	case errors.Is(err, orders.ErrStepNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Production step not found"})
	case errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, orders.ErrInvalidStepStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}
