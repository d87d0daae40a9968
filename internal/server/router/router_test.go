package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/mamadbah2/materialbot/internal/domain/models"
	"github.com/mamadbah2/materialbot/internal/server/handlers"
)

type stubMessaging struct {
	signatureErr error
	handled      int
}

func (s *stubMessaging) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if token != "verify" {
		return "", assert.AnError
	}
	return challenge, nil
}

func (s *stubMessaging) VerifySignature([]byte, string) error { return s.signatureErr }

func (s *stubMessaging) HandleWebhook(context.Context, models.WebhookPayload) error {
	s.handled++
	return assert.AnError
}

func (s *stubMessaging) SendOutbound(context.Context, models.OutboundMessageRequest) error {
	return nil
}

type stubExporter struct{}

func (stubExporter) ExportWorkbook(_ context.Context, w io.Writer) error {
	_, err := w.Write([]byte("xlsx"))
	return err
}

func (stubExporter) ExportFileName() string { return "inventory.xlsx" }

func newRouter(t *testing.T, svc *stubMessaging, rate string) http.Handler {
	t.Helper()
	var instance *limiter.Limiter
	if rate != "" {
		r, err := limiter.NewRateFromFormatted(rate)
		require.NoError(t, err)
		instance = limiter.New(memory.NewStore(), r)
	}
	return New(
		handlers.NewWebhookHandler(svc, nil),
		handlers.NewInventoryHandler(stubExporter{}, nil, "secret", nil),
		instance,
		nil,
	)
}

func serve(h http.Handler, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newRouter(t, &stubMessaging{}, "")

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/metrics", "", nil).Code)
}

func TestWebhookVerification(t *testing.T) {
	h := newRouter(t, &stubMessaging{}, "")

	rec := serve(h, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=77", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "77", rec.Body.String())

	rec = serve(h, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=77", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookAcknowledgesProcessingFailures(t *testing.T) {
	svc := &stubMessaging{}
	h := newRouter(t, svc, "")

	rec := serve(h, http.MethodPost, "/webhook", `{"object":"whatsapp_business_account","entry":[]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.handled)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubMessaging{signatureErr: assert.AnError}
	h := newRouter(t, svc, "")

	rec := serve(h, http.MethodPost, "/webhook", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.handled)
}

func TestWebhookRateLimited(t *testing.T) {
	h := newRouter(t, &stubMessaging{}, "2-M")

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/webhook", `{}`, nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPost, "/webhook", `{}`, nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "", nil).Code)
}

func TestInventoryExportRequiresToken(t *testing.T) {
	h := newRouter(t, &stubMessaging{}, "")

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/inventory/export", "", nil).Code)

	rec := serve(h, http.MethodGet, "/inventory/export", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventory.xlsx")

	rec = serve(h, http.MethodGet, "/inventory/snapshot/latest?token=secret", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
