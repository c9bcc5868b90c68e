package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"verigate/internal/income/models"
	"verigate/internal/income/service"
	"verigate/internal/platform/logger"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/requestcontext"
	"verigate/pkg/testutil"
)

// =============================================================================
// Webhook Handler Test Suite
// =============================================================================
// Justification: the handler owns the HTTP contract with the provider: body
// decoding, the acknowledgement shape and the error-code to status mapping.

type stubService struct {
	outcome service.Outcome
	err     error
	got     *models.Delivery
	ctx     context.Context
	calls   int
}

func (s *stubService) Process(ctx context.Context, delivery *models.Delivery) (service.Outcome, error) {
	s.calls++
	s.got = delivery
	s.ctx = ctx
	return s.outcome, s.err
}

type HandlerSuite struct {
	suite.Suite
	svc    *stubService
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.svc = &stubService{}
	s.router = chi.NewRouter()
	New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) TestAcknowledgesOutcome() {
	s.svc.outcome = service.OutcomeReconciled
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, WebhookPath, map[string]any{"identifier": "ABC123"})

	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	var body httputil.MessageResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal(service.OutcomeReconciled.Message(), body.Message)
	s.Equal("ABC123", s.svc.got.Fields["identifier"])
}

func (s *HandlerSuite) TestBodyReachesServiceVerbatim() {
	s.svc.outcome = service.OutcomeInProgress
	body := `{"verification_id": 9007199254740993, "identifier":"ABC123"}`

	rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, WebhookPath, body))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal(body, string(s.svc.got.Body))
	s.Equal(json.Number("9007199254740993"), s.svc.got.Fields["verification_id"])
}

func (s *HandlerSuite) TestRequestIDLoggedOnce() {
	var buf bytes.Buffer
	router := chi.NewRouter()
	New(&stubService{outcome: service.OutcomeReconciled}, logger.NewWithWriter("production", &buf)).Register(router)

	req := testutil.WithRequestID(testutil.NewRequestWithBody(s.T(), http.MethodPost, WebhookPath, `{}`), "req-7")
	testutil.DoRequest(router, req)

	line := strings.TrimSpace(buf.String())
	s.Require().NotEmpty(line)
	s.Equal(1, strings.Count(line, `"request_id"`), line)
	s.Contains(line, `"request_id":"req-7"`)
}

func (s *HandlerSuite) TestRequestContextReachesService() {
	s.svc.outcome = service.OutcomeInProgress
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, WebhookPath, map[string]any{"identifier": "ABC123"})
	req = testutil.WithRequestTime(testutil.WithRequestID(req, "req-42"), now)

	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("req-42", requestcontext.RequestID(s.svc.ctx))
	s.Equal(now, requestcontext.Now(s.svc.ctx))
}

func (s *HandlerSuite) TestRejectsUndecodableBodies() {
	for name, body := range map[string]string{
		"empty":    "",
		"array":    `[1,2]`,
		"null":     `null`,
		"trailing": `{"a":1}{"b":2}`,
		"broken":   `{"a":`,
	} {
		s.Run(name, func() {
			s.svc.calls = 0
			rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, WebhookPath, body))
			s.Equal(http.StatusBadRequest, rr.Code)
			s.Zero(s.svc.calls, "service must not run on an undecodable body")
		})
	}
}

func (s *HandlerSuite) TestErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"malformed envelope", dErrors.New(dErrors.CodeValidation, "status is invalid"), http.StatusBadRequest, "validation_error"},
		{"missing case", dErrors.New(dErrors.CodeNotFound, "no verification case for identifier"), http.StatusNotFound, "not_found"},
		{"retry failure", dErrors.Wrap(errors.New("503"), dErrors.CodeUpstream, "failed to re-issue verification"), http.StatusBadGateway, "upstream_error"},
		{"subject locked", dErrors.New(dErrors.CodeUnavailable, "busy"), http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.svc.err = tc.err
			rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, WebhookPath, `{}`))
			s.Equal(tc.status, rr.Code)

			var body httputil.ErrorResponse
			s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
			s.Equal(tc.code, body.Error)
		})
	}
}

func (s *HandlerSuite) TestOnlyPostIsRouted() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, WebhookPath))
	s.Equal(http.StatusMethodNotAllowed, rr.Code)
}
