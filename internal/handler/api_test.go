package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/ticket-sales/internal/config"
	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/handler"
	"github.com/iliyamo/ticket-sales/internal/idempotency"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/router"
	"github.com/iliyamo/ticket-sales/internal/service"
	"github.com/iliyamo/ticket-sales/internal/utils"
)

const (
	jwtSecret     = "api-test-secret"
	webhookSecret = "whsec_api_test"
)

type api struct {
	e         *echo.Echo
	payments  *repository.PaymentRepo
	processor *service.SandboxClient
}

func newAPI(t *testing.T, guard *idempotency.Guard) *api {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketTypeRepo(db)
	reservations := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)
	processor := service.NewSandboxClient()

	manager := service.NewReservationManager(db, service.NewLedger(tickets), tickets, reservations, payments, events, processor)
	reconciler := service.NewPaymentReconciler(db, reservations, tickets, payments, processor, nil, "ron")
	catalog := service.NewCatalog(db, events, tickets)

	e := echo.New()
	router.Register(e, db.DB, router.Deps{
		JWTSecret: jwtSecret,
		RateLimit: config.RateLimitConfig{Enabled: true},
		Cache:     config.CacheConfig{Enabled: true},
		Catalog:   handler.NewCatalogHandler(catalog, manager),
		Participant: &handler.ParticipantHandler{
			Manager:        manager,
			Reconciler:     reconciler,
			PublishableKey: "pk_test",
		},
		Payments: &handler.PaymentHandler{
			Reconciler: reconciler,
			Verifier:   service.NewStripeClient("", webhookSecret),
			Guard:      guard,
		},
	})
	return &api{e: e, payments: payments, processor: processor}
}

func token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(jwtSecret, userID, role, time.Minute)
	require.NoError(t, err)
	return tok.Token
}

func (a *api) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) webhook(t *testing.T, eventID, eventType, ref string) *httptest.ResponseRecorder {
	t.Helper()
	return a.webhookCtx(t, context.Background(), eventID, eventType, ref)
}

func (a *api) webhookCtx(t *testing.T, ctx context.Context, eventID, eventType, ref string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":%q,"object":"payment_intent"}}}`,
			eventID, eventType, ref)),
		Secret: webhookSecret,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewReader(signed.Payload)).WithContext(ctx)
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type eventBody struct {
	ID               uint64 `json:"id"`
	AvailableTickets int    `json:"available_tickets"`
	IsPast           bool   `json:"is_past"`
	TicketTypes      []struct {
		ID                uint64 `json:"id"`
		AvailableQuantity int    `json:"available_quantity"`
	} `json:"ticket_types"`
}

var (
	organizerTok = func(t *testing.T) string { return token(t, 1, model.RoleOrganizer) }
	aliceTok     = func(t *testing.T) string { return token(t, 10, model.RoleParticipant) }
	bobTok       = func(t *testing.T) string { return token(t, 11, model.RoleParticipant) }
)

// createEvent publishes an event with one ticket type of 10 tickets at 50.00.
func (a *api) createEvent(t *testing.T) eventBody {
	t.Helper()
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	rec := a.do(t, http.MethodPost, "/v1/events", organizerTok(t), echo.Map{
		"title":        "Jazz Night",
		"location":     "Bucharest",
		"start_date":   start,
		"end_date":     start.Add(2 * time.Hour),
		"ticket_types": []echo.Map{{"name": "General", "price": "50.00", "quantity": 10}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[eventBody](t, rec)
	require.Len(t, ev.TicketTypes, 1)
	return ev
}

func (a *api) reserve(t *testing.T, tok string, ev eventBody, quantity any) *httptest.ResponseRecorder {
	t.Helper()
	body := echo.Map{"ticket_type_id": ev.TicketTypes[0].ID}
	if quantity != nil {
		body["quantity"] = quantity
	}
	return a.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%d/reservations", ev.ID), tok, body)
}

func (a *api) available(t *testing.T, ev eventBody) int {
	t.Helper()
	rec := a.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d", ev.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[eventBody](t, rec).AvailableTickets
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/healthz", "", nil).Code)
	rec := a.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestCreateEventValidation(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(t, http.MethodPost, "/v1/events", organizerTok(t), echo.Map{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_event", decode[map[string]string](t, rec)["error"])
}

func TestRolesAreEnforced(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)

	assert.Equal(t, http.StatusUnauthorized, a.reserve(t, "", ev, 1).Code)
	assert.Equal(t, http.StatusForbidden, a.reserve(t, organizerTok(t), ev, 1).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/v1/events", aliceTok(t), echo.Map{}).Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/reservations", ev.ID), aliceTok(t), nil).Code)
}

func TestReserveAndCancel(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)

	rec := a.reserve(t, aliceTok(t), ev, "2")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.Reservation](t, rec)
	assert.Equal(t, 2, res.Quantity)
	assert.False(t, res.Confirmed)
	assert.Equal(t, 8, a.available(t, ev))

	rec = a.reserve(t, aliceTok(t), ev, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decode[model.Reservation](t, rec).Quantity)
	assert.Equal(t, 7, a.available(t, ev))

	rec = a.reserve(t, aliceTok(t), ev, 20)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode[map[string]string](t, rec)["error"])

	rec = a.reserve(t, aliceTok(t), ev, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decode[map[string]string](t, rec)["error"])
	rec = a.reserve(t, aliceTok(t), ev, "99999999999999999999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decode[map[string]string](t, rec)["error"])
	assert.Equal(t, 7, a.available(t, ev))

	path := fmt.Sprintf("/v1/reservations/%d", res.ID)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodDelete, path, bobTok(t), nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, path, bobTok(t), nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, path, aliceTok(t), nil).Code)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, path, aliceTok(t), nil).Code)
	assert.Equal(t, 9, a.available(t, ev))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, path, aliceTok(t), nil).Code)

	rec = a.do(t, http.MethodGet, "/v1/my-reservations", aliceTok(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.ReservationDetail](t, rec), 1)
}

func TestReserveUnknownTicketType(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)
	rec := a.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%d/reservations", ev.ID), aliceTok(t),
		echo.Map{"ticket_type_id": 999, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentWebhookConfirmsReservation(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)
	res := decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 2))

	payPath := fmt.Sprintf("/v1/reservations/%d/payment", res.ID)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, payPath, bobTok(t), nil).Code)

	rec := a.do(t, http.MethodPost, payPath, aliceTok(t), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opened := decode[map[string]any](t, rec)
	assert.Equal(t, "100.00", opened["amount"])
	assert.Equal(t, "ron", opened["currency"])
	assert.Equal(t, "pending", opened["status"])
	assert.Equal(t, "pk_test", opened["publishable_key"])
	assert.NotEmpty(t, opened["client_secret"])

	again := decode[map[string]any](t, a.do(t, http.MethodPost, payPath, aliceTok(t), nil))
	assert.Equal(t, opened["client_secret"], again["client_secret"])
	assert.Equal(t, 1, a.processor.Calls())

	p, err := a.payments.GetByID(context.Background(), uint64(opened["payment_id"].(float64)))
	require.NoError(t, err)
	require.NotNil(t, p.ExternalRef)

	rec = a.webhook(t, "evt_1", service.EventIntentSucceeded, *p.ExternalRef)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// redelivery and a late cancellation are both no-ops
	assert.Equal(t, http.StatusOK, a.webhook(t, "evt_1", service.EventIntentSucceeded, *p.ExternalRef).Code)
	assert.Equal(t, http.StatusOK, a.webhook(t, "evt_2", service.EventIntentCanceled, *p.ExternalRef).Code)

	tickets := decode[[]model.ReservationDetail](t, a.do(t, http.MethodGet, "/v1/my-tickets", aliceTok(t), nil))
	require.Len(t, tickets, 1)
	assert.True(t, tickets[0].Confirmed)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/reservations/%d", res.ID), aliceTok(t), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_paid", decode[map[string]string](t, rec)["error"])
	assert.Equal(t, 8, a.available(t, ev))

	rec = a.do(t, http.MethodPost, payPath, aliceTok(t), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	list := a.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/reservations", ev.ID), organizerTok(t), nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[[]model.ReservationDetail](t, list), 1)
	other := a.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d/reservations", ev.ID), token(t, 2, model.RoleOrganizer), nil)
	assert.Equal(t, http.StatusForbidden, other.Code)
}

func TestWebhookRejectsBadSignatureAndAcksUnknown(t *testing.T) {
	a := newAPI(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewReader([]byte(`{"id":"evt_x"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusOK, a.webhook(t, "evt_unknown", service.EventIntentSucceeded, "pi_nobody").Code)
	assert.Equal(t, http.StatusOK, a.webhook(t, "evt_other", "charge.refunded", "").Code)
}

func TestWebhookDuplicateIsShortCircuited(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	a := newAPI(t, idempotency.New(rdb, "webhook", time.Hour))
	ev := a.createEvent(t)
	res := decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 1))
	opened := decode[map[string]any](t, a.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/payment", res.ID), aliceTok(t), nil))
	p, err := a.payments.GetByID(context.Background(), uint64(opened["payment_id"].(float64)))
	require.NoError(t, err)

	mock.ExpectExists("webhook:evt_dup").SetVal(1)
	rec := a.webhook(t, "evt_dup", service.EventIntentSucceeded, *p.ExternalRef)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["duplicate"])
	assert.NoError(t, mock.ExpectationsWereMet())

	p, err = a.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
}

func (a *api) openPayment(t *testing.T, tok string, res model.Reservation) model.Payment {
	t.Helper()
	rec := a.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/payment", res.ID), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	opened := decode[map[string]any](t, rec)
	p, err := a.payments.GetByID(context.Background(), uint64(opened["payment_id"].(float64)))
	require.NoError(t, err)
	require.NotNil(t, p.ExternalRef)
	return p
}

func TestWebhookRetryAfterFailedDeliveryIsApplied(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	a := newAPI(t, idempotency.New(rdb, "webhook", time.Hour))
	ev := a.createEvent(t)
	res := decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 1))
	p := a.openPayment(t, aliceTok(t), res)

	mock.ExpectExists("webhook:evt_retry").SetVal(0)
	mock.ExpectExists("webhook:evt_retry").SetVal(0)
	mock.ExpectSet("webhook:evt_retry", 1, time.Hour).SetVal("OK")

	// The processor drops the connection: the request context is gone
	// before the payment lookup runs.
	gone, cancel := context.WithCancel(context.Background())
	cancel()
	rec := a.webhookCtx(t, gone, "evt_retry", service.EventIntentSucceeded, *p.ExternalRef)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	got, err := a.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.Status)

	rec = a.webhook(t, "evt_retry", service.EventIntentSucceeded, *p.ExternalRef)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Nil(t, body["duplicate"])

	got, err = a.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)
	tickets := decode[[]model.ReservationDetail](t, a.do(t, http.MethodGet, "/v1/my-tickets", aliceTok(t), nil))
	require.Len(t, tickets, 1)
	assert.True(t, tickets[0].Confirmed)
}

func TestDeclinedCardThenRetryConfirms(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)
	res := decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 1))
	p := a.openPayment(t, aliceTok(t), res)
	ref := *p.ExternalRef

	assert.Equal(t, http.StatusOK, a.webhook(t, "evt_declined", service.EventIntentAttemptFailed, ref).Code)
	got, err := a.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.Status)

	require.NoError(t, a.processor.Settle(ref, service.IntentSucceeded))
	assert.Equal(t, http.StatusOK, a.webhook(t, "evt_paid", service.EventIntentSucceeded, ref).Code)

	rec := a.do(t, http.MethodGet, fmt.Sprintf("/v1/reservations/%d", res.ID), aliceTok(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["confirmed"])
}

func TestPaymentReturnVerifiesWithProcessor(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)
	res := decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 1))
	opened := decode[map[string]any](t, a.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/payment", res.ID), aliceTok(t), nil))
	p, err := a.payments.GetByID(context.Background(), uint64(opened["payment_id"].(float64)))
	require.NoError(t, err)
	ref := *p.ExternalRef

	rec := a.do(t, http.MethodGet, "/v1/payments/return?payment_intent="+ref, aliceTok(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode[map[string]string](t, rec)["status"])

	require.NoError(t, a.processor.Settle(ref, service.IntentSucceeded))
	rec = a.do(t, http.MethodGet, "/v1/payments/return?payment_intent="+ref, aliceTok(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "succeeded", decode[map[string]string](t, rec)["status"])

	p, err = a.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, p.Status)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/v1/payments/return", aliceTok(t), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/payments/return?payment_intent=pi_nope", aliceTok(t), nil).Code)
}

func TestListEventsFilters(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)

	rec := a.do(t, http.MethodGet, "/v1/events?q=jazz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]eventBody](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, ev.ID, list[0].ID)
	assert.Equal(t, 10, list[0].AvailableTickets)

	rec = a.do(t, http.MethodGet, "/v1/events?q=opera", "", nil)
	assert.Empty(t, decode[[]eventBody](t, rec))

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/v1/events?date=tomorrow", "", nil).Code)

	mine := decode[[]eventBody](t, a.do(t, http.MethodGet, "/v1/my-events", organizerTok(t), nil))
	assert.Len(t, mine, 1)
}

func TestUpdateEventOwnerOnly(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)
	path := fmt.Sprintf("/v1/events/%d", ev.ID)

	rec := a.do(t, http.MethodPatch, path, token(t, 2, model.RoleOrganizer), echo.Map{"title": "Stolen"})
	assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, rec.Code)

	rec = a.do(t, http.MethodPatch, path, organizerTok(t), echo.Map{"title": "Jazz Night II"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Jazz Night II", decode[map[string]any](t, rec)["title"])
}

func TestCustomizeEvent(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)
	path := fmt.Sprintf("/v1/events/%d/customization", ev.ID)

	rec := a.do(t, http.MethodPut, path, organizerTok(t), echo.Map{"theme_color": "blue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_event", decode[map[string]string](t, rec)["error"])

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPut, path, aliceTok(t), echo.Map{}).Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(t, http.MethodPut, path, token(t, 2, model.RoleOrganizer), echo.Map{"theme_color": "#000"}).Code)

	rec = a.do(t, http.MethodPut, path, organizerTok(t), echo.Map{
		"theme_color":   "#10b981",
		"banner_text":   "Sold out soon",
		"promo_message": "Bring a friend",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[map[string]any](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/events/%d", ev.ID), "", nil))
	assert.Equal(t, "#10b981", got["theme_color"])
	assert.Equal(t, "Sold out soon", got["banner_text"])
	assert.Equal(t, "Bring a friend", got["promo_message"])
}

func TestListEventsWildcardQuery(t *testing.T) {
	a := newAPI(t, nil)
	a.createEvent(t)

	rec := a.do(t, http.MethodGet, "/v1/events?q=%25", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]eventBody](t, rec))
	rec = a.do(t, http.MethodGet, "/v1/events?q=_", "", nil)
	assert.Empty(t, decode[[]eventBody](t, rec))
}

func TestCancelWithOpenCheckout(t *testing.T) {
	a := newAPI(t, nil)
	ev := a.createEvent(t)

	res := decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 2))
	p := a.openPayment(t, aliceTok(t), res)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, fmt.Sprintf("/v1/reservations/%d", res.ID), aliceTok(t), nil).Code)
	st, err := a.processor.IntentStatus(context.Background(), *p.ExternalRef)
	require.NoError(t, err)
	assert.Equal(t, service.IntentFailed, st)
	assert.Equal(t, 10, a.available(t, ev))

	// paid at the processor before the cancel arrived
	res = decode[model.Reservation](t, a.reserve(t, aliceTok(t), ev, 3))
	p = a.openPayment(t, aliceTok(t), res)
	require.NoError(t, a.processor.Settle(*p.ExternalRef, service.IntentSucceeded))
	rec := a.do(t, http.MethodDelete, fmt.Sprintf("/v1/reservations/%d", res.ID), aliceTok(t), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_paid", decode[map[string]string](t, rec)["error"])
	assert.Equal(t, 7, a.available(t, ev))
}
