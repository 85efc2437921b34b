package orders

import (
	"context"
	"errors"
	"testing"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/socket"
	"commande-track-api-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- collaborator mocks ---

type MockStore struct{ mock.Mock }

func (m *MockStore) FindByID(ctx context.Context, orgID primitive.ObjectID) (*models.Organisation, error) {
	args := m.Called(ctx, orgID)
	if org := args.Get(0); org != nil {
		return org.(*models.Organisation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) FindOrder(ctx context.Context, orgID primitive.ObjectID, ref string) (*models.Organisation, *models.Order, error) {
	args := m.Called(ctx, orgID, ref)
	if org := args.Get(0); org != nil {
		return org.(*models.Organisation), args.Get(1).(*models.Order), args.Error(2)
	}
	return nil, nil, args.Error(2)
}

func (m *MockStore) FindOrderAnyOrg(ctx context.Context, orderID string) (*models.Organisation, *models.Order, error) {
	args := m.Called(ctx, orderID)
	if org := args.Get(0); org != nil {
		return org.(*models.Organisation), args.Get(1).(*models.Order), args.Error(2)
	}
	return nil, nil, args.Error(2)
}

func (m *MockStore) Save(ctx context.Context, org *models.Organisation) error {
	return m.Called(ctx, org).Error(0)
}

type MockAudit struct{ mock.Mock }

func (m *MockAudit) Append(ctx context.Context, entry models.HistoryEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type MockMailer struct{ mock.Mock }

func (m *MockMailer) SendStatusChange(ctx context.Context, to, clientName, orderRef string, status models.OrderStatus) (string, error) {
	args := m.Called(ctx, to, clientName, orderRef, status)
	return args.String(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(t socket.EventType, payload socket.Payload, orgID string) {
	m.Called(t, payload, orgID)
}

// --- fixtures ---

func testOrg(orderStatus models.OrderStatus, stepStatuses ...models.StepStatus) (*models.Organisation, *models.Order) {
	steps := make([]models.ProductionStep, 0, len(stepStatuses))
	for i, s := range stepStatuses {
		steps = append(steps, models.ProductionStep{
			ID:     string(rune('a' + i)),
			Name:   "étape",
			Status: s,
		})
	}
	org := &models.Organisation{
		ID:   primitive.NewObjectID(),
		Name: "Atelier Test",
		Orders: []models.Order{{
			ID:        primitive.NewObjectID(),
			Number:    1,
			Reference: "CMD-1",
			Client:    models.ClientSnapshot{Name: "Durand", Email: "durand@example.com"},
			Status:    orderStatus,
			Revision:  3,
			Steps:     steps,
		}},
	}
	return org, &org.Orders[0]
}

func newTestService(st Store, au Audit, ma Mailer, pub Publisher) *Service {
	return NewService(st, au, ma, pub, zap.NewNop())
}

// --- ChangeStatus ---

func TestChangeStatus_ComputesProgressionAndPublishes(t *testing.T) {
	org, order := testOrg(models.StatusValidated, models.StepCompleted, models.StepPending)

	st := new(MockStore)
	au := new(MockAudit)
	ma := new(MockMailer)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.AnythingOfType("models.HistoryEntry")).Return(nil)
	pub.On("Publish", socket.EventStatusChanged, mock.Anything, org.ID.Hex()).Return()

	svc := newTestService(st, au, ma, pub)
	result, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		Status:   models.StatusInProduction,
		Source:   models.SourceWeb,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProduction, result.Order.Status)
	assert.Equal(t, 50, result.Order.Progression) // 1 of 2 steps completed
	assert.Equal(t, int64(4), result.Order.Revision)
	assert.False(t, result.MailSent)

	published := pub.Calls[0].Arguments.Get(1).(socket.StatusChanged)
	assert.Equal(t, order.ID.Hex(), published.OrderID)
	assert.Equal(t, 50, published.Progression)
	assert.Equal(t, int64(4), published.Revision)

	ma.AssertNotCalled(t, "SendStatusChange")
	st.AssertExpectations(t)
	au.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestChangeStatus_TerminalOverridesBlockedSteps(t *testing.T) {
	org, order := testOrg(models.StatusInProduction,
		models.StepBlocked, models.StepBlocked, models.StepBlocked)

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	result, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		Status:   models.StatusShipped,
		Source:   models.SourceWeb,
	})

	require.NoError(t, err)
	assert.Equal(t, 100, result.Order.Progression)
}

func TestChangeStatus_NotifySendsMailAndRecordsIt(t *testing.T) {
	org, order := testOrg(models.StatusValidated, models.StepCompleted)

	st := new(MockStore)
	au := new(MockAudit)
	ma := new(MockMailer)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	ma.On("SendStatusChange", mock.Anything, "durand@example.com", "Durand", "CMD-1", models.StatusReady).
		Return("preview-abc", nil)
	au.On("Append", mock.Anything, mock.MatchedBy(func(e models.HistoryEntry) bool {
		return e.MailSent && e.Action == models.ActionStatusChanged
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newTestService(st, au, ma, pub)
	result, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:        org.ID,
		OrderRef:     order.ID.Hex(),
		Status:       models.StatusReady,
		NotifyClient: true,
		Source:       models.SourceWeb,
	})

	require.NoError(t, err)
	assert.True(t, result.MailSent)
	assert.Equal(t, "preview-abc", result.MailPreview)
	ma.AssertExpectations(t)
	au.AssertExpectations(t)
}

func TestChangeStatus_NotifyWithoutEmailSucceeds(t *testing.T) {
	// Scenario: notifyClient=true but no client email on file. The transition
	// succeeds, mailSent is recorded false, no error reaches the caller.
	org, order := testOrg(models.StatusValidated, models.StepCompleted)
	order.Client.Email = ""

	st := new(MockStore)
	au := new(MockAudit)
	ma := new(MockMailer)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.MatchedBy(func(e models.HistoryEntry) bool {
		return !e.MailSent
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newTestService(st, au, ma, pub)
	result, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:        org.ID,
		OrderRef:     order.ID.Hex(),
		Status:       models.StatusPending,
		NotifyClient: true,
		Source:       models.SourceWeb,
	})

	require.NoError(t, err)
	assert.False(t, result.MailSent)
	ma.AssertNotCalled(t, "SendStatusChange")
	au.AssertExpectations(t)
}

func TestChangeStatus_MailFailureIsSwallowed(t *testing.T) {
	org, order := testOrg(models.StatusValidated)

	st := new(MockStore)
	au := new(MockAudit)
	ma := new(MockMailer)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	ma.On("SendStatusChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("smtp down"))
	au.On("Append", mock.Anything, mock.MatchedBy(func(e models.HistoryEntry) bool {
		return !e.MailSent
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newTestService(st, au, ma, pub)
	result, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:        org.ID,
		OrderRef:     order.ID.Hex(),
		Status:       models.StatusPending,
		NotifyClient: true,
		Source:       models.SourceWeb,
	})

	require.NoError(t, err)
	assert.False(t, result.MailSent)
}

func TestChangeStatus_AuditFailureIsSwallowed(t *testing.T) {
	org, order := testOrg(models.StatusValidated)

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.Anything).Return(errors.New("history collection unavailable"))
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	_, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		Status:   models.StatusPending,
		Source:   models.SourceWeb,
	})

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestChangeStatus_SaveFailureIsFatal(t *testing.T) {
	org, order := testOrg(models.StatusValidated)

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(errors.New("connection reset"))

	svc := newTestService(st, au, new(MockMailer), pub)
	_, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		Status:   models.StatusPending,
		Source:   models.SourceWeb,
	})

	require.Error(t, err)
	au.AssertNotCalled(t, "Append")
	pub.AssertNotCalled(t, "Publish")
}

func TestChangeStatus_OrderNotFound(t *testing.T) {
	st := new(MockStore)
	orgID := primitive.NewObjectID()
	st.On("FindOrder", mock.Anything, orgID, "missing").
		Return(nil, nil, store.ErrOrderNotFound)

	svc := newTestService(st, new(MockAudit), new(MockMailer), new(MockPublisher))
	_, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:    orgID,
		OrderRef: "missing",
		Status:   models.StatusPending,
		Source:   models.SourceWeb,
	})

	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}

func TestChangeStatus_InvalidStatusRejected(t *testing.T) {
	svc := newTestService(new(MockStore), new(MockAudit), new(MockMailer), new(MockPublisher))
	_, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrgID:    primitive.NewObjectID(),
		OrderRef: "whatever",
		Status:   "half-done",
		Source:   models.SourceWeb,
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestChangeStatus_IdempotentProgression(t *testing.T) {
	// Applying the same request twice yields the same progression and two
	// audit entries describing the same transition content.
	org, order := testOrg(models.StatusInProduction, models.StepCompleted, models.StepPending)
	order.Status = models.StatusInProduction

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	in := StatusChangeInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		Status:   models.StatusInProduction,
		Source:   models.SourceWeb,
	}

	first, err := svc.ChangeStatus(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.ChangeStatus(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.Order.Progression, second.Order.Progression)
	require.Len(t, au.Calls, 2)
	firstChange := au.Calls[0].Arguments.Get(1).(models.HistoryEntry).Change
	secondChange := au.Calls[1].Arguments.Get(1).(models.HistoryEntry).Change
	assert.Equal(t, firstChange["to"], secondChange["to"])
	assert.Equal(t, firstChange["progression"], secondChange["progression"])
}

func TestChangeStatus_MobileLookupByOrderIDAlone(t *testing.T) {
	org, order := testOrg(models.StatusValidated)

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrderAnyOrg", mock.Anything, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.MatchedBy(func(e models.HistoryEntry) bool {
		return e.Source == models.SourceMobile
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, org.ID.Hex()).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	_, err := svc.ChangeStatus(context.Background(), StatusChangeInput{
		OrderRef: order.ID.Hex(), // zero OrgID: public path
		Status:   models.StatusReady,
		Source:   models.SourceMobile,
	})

	require.NoError(t, err)
	st.AssertExpectations(t)
	au.AssertExpectations(t)
}

// --- UpdateStep ---

func TestUpdateStep_RecomputesProgression(t *testing.T) {
	org, order := testOrg(models.StatusInProduction, models.StepCompleted, models.StepPending)

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.MatchedBy(func(e models.HistoryEntry) bool {
		return e.Action == models.ActionStepUpdated
	})).Return(nil)
	pub.On("Publish", socket.EventStepUpdated, mock.Anything, org.ID.Hex()).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	updated, err := svc.UpdateStep(context.Background(), StepUpdateInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		StepID:   "b",
		Status:   models.StepCompleted,
		Source:   models.SourceWeb,
	})

	require.NoError(t, err)
	assert.Equal(t, 100, updated.Progression)
	step := updated.StepByID("b")
	require.NotNil(t, step)
	assert.Equal(t, models.StepCompleted, step.Status)
	assert.NotNil(t, step.EndedAt)
	pub.AssertExpectations(t)
}

func TestUpdateStep_StepNotFound(t *testing.T) {
	org, order := testOrg(models.StatusInProduction, models.StepPending)

	st := new(MockStore)
	st.On("FindOrder", mock.Anything, org.ID, order.ID.Hex()).Return(org, order, nil)

	svc := newTestService(st, new(MockAudit), new(MockMailer), new(MockPublisher))
	_, err := svc.UpdateStep(context.Background(), StepUpdateInput{
		OrgID:    org.ID,
		OrderRef: order.ID.Hex(),
		StepID:   "zz",
		Status:   models.StepCompleted,
		Source:   models.SourceWeb,
	})

	assert.ErrorIs(t, err, ErrStepNotFound)
}

// --- Create / Delete ---

func TestCreate_MintsNumberFromCounter(t *testing.T) {
	org := &models.Organisation{
		ID:      primitive.NewObjectID(),
		Name:    "Atelier Test",
		Counter: 41,
	}

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindByID", mock.Anything, org.ID).Return(org, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", socket.EventCommandCreated, mock.Anything, org.ID.Hex()).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	order, err := svc.Create(context.Background(), CreateOrderInput{
		OrgID:     org.ID,
		StepNames: []string{"découpe", "assemblage"},
		Source:    models.SourceWeb,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), order.Number)
	assert.Equal(t, "CMD-42", order.Reference)
	assert.Equal(t, models.StatusDraft, order.Status)
	assert.Equal(t, 0, order.Progression)
	require.Len(t, order.Steps, 2)
	assert.Equal(t, models.StepPending, order.Steps[0].Status)
	assert.NotEmpty(t, order.Steps[0].ID)
	assert.Equal(t, int64(42), org.Counter)
	require.Len(t, org.Orders, 1)
}

func TestDelete_RemovesOrderAndPublishes(t *testing.T) {
	org, order := testOrg(models.StatusDraft)
	orderID := order.ID.Hex()

	st := new(MockStore)
	au := new(MockAudit)
	pub := new(MockPublisher)

	st.On("FindOrder", mock.Anything, org.ID, orderID).Return(org, order, nil)
	st.On("Save", mock.Anything, org).Return(nil)
	au.On("Append", mock.Anything, mock.MatchedBy(func(e models.HistoryEntry) bool {
		return e.Action == models.ActionOrderDeleted && e.OrderID == orderID
	})).Return(nil)
	pub.On("Publish", socket.EventCommandDeleted, socket.CommandDeleted{OrderID: orderID}, org.ID.Hex()).Return()

	svc := newTestService(st, au, new(MockMailer), pub)
	err := svc.Delete(context.Background(), org.ID, orderID, models.SourceWeb)

	require.NoError(t, err)
	assert.Empty(t, org.Orders)
	au.AssertExpectations(t)
	pub.AssertExpectations(t)
}
