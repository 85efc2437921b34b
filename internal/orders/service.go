// internal/orders/service.go
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/progression"
	"commande-track-api-server/internal/socket"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidStepStatus = errors.New("invalid step status")
	ErrStepNotFound      = errors.New("production step not found")
)

// Store is the slice of the organisation store the service needs.
type Store interface {
	FindByID(ctx context.Context, orgID primitive.ObjectID) (*models.Organisation, error)
	FindOrder(ctx context.Context, orgID primitive.ObjectID, ref string) (*models.Organisation, *models.Order, error)
	FindOrderAnyOrg(ctx context.Context, orderID string) (*models.Organisation, *models.Order, error)
	Save(ctx context.Context, org *models.Organisation) error
}

// Audit appends immutable history entries.
type Audit interface {
	Append(ctx context.Context, entry models.HistoryEntry) error
}

// Mailer sends the client-facing status-change email.
type Mailer interface {
	SendStatusChange(ctx context.Context, to, clientName, orderRef string, status models.OrderStatus) (preview string, err error)
}

// Publisher fans a change event out to the organisation room and the public
// per-order room.
type Publisher interface {
	Publish(t socket.EventType, payload socket.Payload, orgID string)
}

// Service orchestrates order mutations: recompute progression, persist the
// organisation aggregate, record audit history, notify the client, publish the
// change. Persistence is the commit point; everything after it is best effort.
type Service struct {
	store  Store
	audit  Audit
	mailer Mailer
	pub    Publisher
	logger *zap.Logger
}

func NewService(store Store, audit Audit, mailer Mailer, pub Publisher, logger *zap.Logger) *Service {
	return &Service{store: store, audit: audit, mailer: mailer, pub: pub, logger: logger}
}

// StatusChangeInput describes one status-change request. OrderRef is the
// global id hex or the organisation-relative number. When OrgID is the zero
// value the lookup falls back to the order-id-only path used by the
// unauthenticated mobile flow. ProgressionHint is never applied — the
// calculator is authoritative — but it is echoed into the audit payload.
type StatusChangeInput struct {
	OrgID           primitive.ObjectID
	OrderRef        string
	Status          models.OrderStatus
	ProgressionHint *int
	NotifyClient    bool
	Source          string
}

// StatusChangeResult is the outcome returned to the caller.
type StatusChangeResult struct {
	Order       models.Order `json:"order"`
	MailSent    bool         `json:"mailSent"`
	MailPreview string       `json:"mailPreview,omitempty"`
}

// ChangeStatus applies one status change. Mail and audit failures are
// swallowed: once the aggregate save succeeds the transition has succeeded.
func (s *Service) ChangeStatus(ctx context.Context, in StatusChangeInput) (*StatusChangeResult, error) {
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	org, order, err := s.lookup(ctx, in.OrgID, in.OrderRef)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	order.Status = in.Status
	order.Progression = progression.Compute(order.Steps, in.Status)
	order.Revision++

	if err := s.store.Save(ctx, org); err != nil {
		return nil, fmt.Errorf("save organisation: %w", err)
	}

	mailSent, preview := false, ""
	if in.NotifyClient && order.Client.Email != "" {
		preview, err = s.mailer.SendStatusChange(ctx, order.Client.Email, order.Client.Name, order.Reference, in.Status)
		if err != nil {
			s.logger.Warn("status-change mail failed",
				zap.String("order", order.ID.Hex()),
				zap.Error(err))
		} else {
			mailSent = true
		}
	}

	change := map[string]interface{}{
		"from":        previous,
		"to":          in.Status,
		"progression": order.Progression,
	}
	if in.ProgressionHint != nil {
		change["progressionHint"] = *in.ProgressionHint
	}
	s.record(ctx, models.HistoryEntry{
		OrderID:  order.ID.Hex(),
		Action:   models.ActionStatusChanged,
		Change:   change,
		Source:   in.Source,
		MailSent: mailSent,
	})

	s.pub.Publish(socket.EventStatusChanged, socket.StatusChanged{
		OrderID:     order.ID.Hex(),
		Status:      order.Status,
		Progression: order.Progression,
		Revision:    order.Revision,
	}, org.ID.Hex())

	return &StatusChangeResult{Order: *order, MailSent: mailSent, MailPreview: preview}, nil
}

// StepUpdateInput describes one step status change.
type StepUpdateInput struct {
	OrgID    primitive.ObjectID
	OrderRef string
	StepID   string
	Status   models.StepStatus
	Source   string
}

// UpdateStep changes one production step and recomputes the order's
// progression from its step list.
func (s *Service) UpdateStep(ctx context.Context, in StepUpdateInput) (*models.Order, error) {
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStepStatus, in.Status)
	}

	org, order, err := s.lookup(ctx, in.OrgID, in.OrderRef)
	if err != nil {
		return nil, err
	}

	step := order.StepByID(in.StepID)
	if step == nil {
		return nil, ErrStepNotFound
	}

	previous := step.Status
	step.Status = in.Status
	now := time.Now()
	if in.Status == models.StepInProgress && step.StartedAt == nil {
		step.StartedAt = &now
	}
	if in.Status == models.StepCompleted && step.EndedAt == nil {
		step.EndedAt = &now
	}

	order.Progression = progression.Compute(order.Steps, order.Status)
	order.Revision++

	if err := s.store.Save(ctx, org); err != nil {
		return nil, fmt.Errorf("save organisation: %w", err)
	}

	s.record(ctx, models.HistoryEntry{
		OrderID: order.ID.Hex(),
		Action:  models.ActionStepUpdated,
		Change: map[string]interface{}{
			"stepID":      step.ID,
			"step":        step.Name,
			"from":        previous,
			"to":          in.Status,
			"progression": order.Progression,
		},
		Source: in.Source,
	})

	s.pub.Publish(socket.EventStepUpdated, socket.StepUpdated{
		OrderID: order.ID.Hex(),
		Step:    *step,
	}, org.ID.Hex())

	return order, nil
}

// CreateOrderInput describes a new commande.
type CreateOrderInput struct {
	OrgID        primitive.ObjectID
	Reference    string
	ClientID     string
	Client       models.ClientSnapshot
	Products     []models.Product
	StepNames    []string
	DeliveryDate time.Time
	Source       string
}

// Create mints the next organisation-relative number and appends the order to
// the aggregate. New orders start in draft with progression 0.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	org, err := s.store.FindByID(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	org.Counter++
	snapshot := in.Client
	if in.ClientID != "" {
		if cid, err := primitive.ObjectIDFromHex(in.ClientID); err == nil {
			if c := org.ClientByID(cid); c != nil {
				snapshot = models.ClientSnapshot{ID: c.ID.Hex(), Name: c.Name, Email: c.Email}
			}
		}
	}

	reference := in.Reference
	if reference == "" {
		reference = fmt.Sprintf("CMD-%d", org.Counter)
	}

	steps := make([]models.ProductionStep, 0, len(in.StepNames))
	for _, name := range in.StepNames {
		steps = append(steps, models.ProductionStep{
			ID:     uuid.New().String(),
			Name:   name,
			Status: models.StepPending,
		})
	}

	order := models.Order{
		ID:           primitive.NewObjectID(),
		Number:       org.Counter,
		Reference:    reference,
		Client:       snapshot,
		Products:     in.Products,
		Status:       models.StatusDraft,
		Progression:  0,
		Revision:     1,
		Steps:        steps,
		CreatedAt:    time.Now(),
		DeliveryDate: in.DeliveryDate,
	}
	org.Orders = append(org.Orders, order)

	if err := s.store.Save(ctx, org); err != nil {
		return nil, fmt.Errorf("save organisation: %w", err)
	}

	s.record(ctx, models.HistoryEntry{
		OrderID: order.ID.Hex(),
		Action:  models.ActionOrderCreated,
		Change:  map[string]interface{}{"reference": order.Reference, "number": order.Number},
		Source:  in.Source,
	})

	s.pub.Publish(socket.EventCommandCreated, socket.CommandCreated{Order: order}, org.ID.Hex())
	return &order, nil
}

// UpdateOrderInput is a full edit. Nil slices leave the field untouched.
type UpdateOrderInput struct {
	OrgID        primitive.ObjectID
	OrderRef     string
	Reference    *string
	Client       *models.ClientSnapshot
	Products     []models.Product
	Steps        []models.ProductionStep
	DeliveryDate *time.Time
	Source       string
}

// Update applies a full edit. Because steps and progression can change
// together, the published event replaces the whole record rather than
// patching fields.
func (s *Service) Update(ctx context.Context, in UpdateOrderInput) (*models.Order, error) {
	org, order, err := s.lookup(ctx, in.OrgID, in.OrderRef)
	if err != nil {
		return nil, err
	}

	if in.Reference != nil {
		order.Reference = *in.Reference
	}
	if in.Client != nil {
		order.Client = *in.Client
	}
	if in.Products != nil {
		order.Products = in.Products
	}
	if in.Steps != nil {
		for i := range in.Steps {
			if in.Steps[i].ID == "" {
				in.Steps[i].ID = uuid.New().String()
			}
			if in.Steps[i].Status == "" {
				in.Steps[i].Status = models.StepPending
			}
		}
		order.Steps = in.Steps
	}
	if in.DeliveryDate != nil {
		order.DeliveryDate = *in.DeliveryDate
	}
	order.Progression = progression.Compute(order.Steps, order.Status)
	order.Revision++

	if err := s.store.Save(ctx, org); err != nil {
		return nil, fmt.Errorf("save organisation: %w", err)
	}

	s.record(ctx, models.HistoryEntry{
		OrderID: order.ID.Hex(),
		Action:  models.ActionOrderUpdated,
		Change:  map[string]interface{}{"progression": order.Progression},
		Source:  in.Source,
	})

	s.pub.Publish(socket.EventCommandFullyUpdated, socket.CommandFullyUpdated{Order: *order}, org.ID.Hex())
	return order, nil
}

// Delete removes an order from its organisation. History entries referencing
// the order are kept.
func (s *Service) Delete(ctx context.Context, orgID primitive.ObjectID, orderRef, source string) error {
	org, order, err := s.lookup(ctx, orgID, orderRef)
	if err != nil {
		return err
	}

	orderID := order.ID.Hex()
	reference := order.Reference
	oid := order.ID
	// the in-place filter below invalidates the order pointer
	kept := org.Orders[:0]
	for _, o := range org.Orders {
		if o.ID != oid {
			kept = append(kept, o)
		}
	}
	org.Orders = kept

	if err := s.store.Save(ctx, org); err != nil {
		return fmt.Errorf("save organisation: %w", err)
	}

	s.record(ctx, models.HistoryEntry{
		OrderID: orderID,
		Action:  models.ActionOrderDeleted,
		Change:  map[string]interface{}{"reference": reference},
		Source:  source,
	})

	s.pub.Publish(socket.EventCommandDeleted, socket.CommandDeleted{OrderID: orderID}, org.ID.Hex())
	return nil
}

// AddAttachment appends an uploaded file URL to the order and publishes a
// partial-field patch.
func (s *Service) AddAttachment(ctx context.Context, orgID primitive.ObjectID, orderRef, url, source string) (*models.Order, error) {
	org, order, err := s.lookup(ctx, orgID, orderRef)
	if err != nil {
		return nil, err
	}

	order.Attachments = append(order.Attachments, url)
	order.Revision++

	if err := s.store.Save(ctx, org); err != nil {
		return nil, fmt.Errorf("save organisation: %w", err)
	}

	s.record(ctx, models.HistoryEntry{
		OrderID: order.ID.Hex(),
		Action:  models.ActionOrderUpdated,
		Change:  map[string]interface{}{"attachment": url},
		Source:  source,
	})

	s.pub.Publish(socket.EventCommandUpdated, socket.CommandUpdated{
		OrderID: order.ID.Hex(),
		Fields:  map[string]interface{}{"attachments": order.Attachments},
	}, org.ID.Hex())
	return order, nil
}

func (s *Service) lookup(ctx context.Context, orgID primitive.ObjectID, ref string) (*models.Organisation, *models.Order, error) {
	if orgID.IsZero() {
		return s.store.FindOrderAnyOrg(ctx, ref)
	}
	return s.store.FindOrder(ctx, orgID, ref)
}

// record writes an audit entry. A failed write never fails the operation.
func (s *Service) record(ctx context.Context, entry models.HistoryEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("order", entry.OrderID),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}
