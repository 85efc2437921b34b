// internal/api/handlers/client_handler.go
package handlers

import (
	"net/http"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientHandler manages the organisation's embedded client list. Like orders,
// clients live inside the aggregate and every mutation is one whole-document
// save.
type ClientHandler struct {
	Store *store.OrganisationStore
}

type ClientRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

func (h *ClientHandler) CreateClient(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := h.Store.FindByID(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	client := models.Client{
		ID:      primitive.NewObjectID(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
	}
	org.Clients = append(org.Clients, client)

	if err := h.Store.Save(c.Request.Context(), org); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save client"})
		return
	}

	c.JSON(http.StatusCreated, client)
}

func (h *ClientHandler) GetAllClients(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	org, err := h.Store.FindByID(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if org.Clients == nil {
		org.Clients = []models.Client{}
	}
	c.JSON(http.StatusOK, org.Clients)
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	clientID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := h.Store.FindByID(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	client := org.ClientByID(clientID)
	if client == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	client.Name = req.Name
	client.Email = req.Email
	client.Phone = req.Phone
	client.Company = req.Company

	if err := h.Store.Save(c.Request.Context(), org); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save client"})
		return
	}

	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) DeleteClient(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	clientID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}

	org, err := h.Store.FindByID(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	kept := org.Clients[:0]
	for _, cl := range org.Clients {
		if cl.ID != clientID {
			kept = append(kept, cl)
		}
	}
	org.Clients = kept

	if err := h.Store.Save(c.Request.Context(), org); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save organisation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Client deleted"})
}
