// internal/api/handlers/public_handler.go
package handlers

import (
	"net/http"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/orders"
	"commande-track-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PublicHandler serves the unauthenticated mobile quick-update flow: a QR
// code carries the raw order id, the scan page reads current state and pushes
// a status change without a bearer credential. This is a deliberately
// reduced-trust surface scoped to a single order id.
type PublicHandler struct {
	Service *orders.Service
	Store   *store.OrganisationStore
}

type QuickStatusRequest struct {
	Status       models.OrderStatus `json:"status" binding:"required"`
	Progression  *int               `json:"progression"`
	NotifyClient bool               `json:"notifyClient"`
}

// GetOrder is the read path the mobile view seeds from.
func (h *PublicHandler) GetOrder(c *gin.Context) {
	_, order, err := h.Store.FindOrderAnyOrg(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// QuickStatusUpdate applies a status change looked up by order id alone.
func (h *PublicHandler) QuickStatusUpdate(c *gin.Context) {
	var req QuickStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Service.ChangeStatus(c.Request.Context(), orders.StatusChangeInput{
		OrgID:           primitive.NilObjectID, // resolved by order id
		OrderRef:        c.Param("id"),
		Status:          req.Status,
		ProgressionHint: req.Progression,
		NotifyClient:    req.NotifyClient,
		Source:          models.SourceMobile,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
