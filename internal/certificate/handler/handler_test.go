package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/handler/mocks"
	"imrich/internal/certificate/models"
	"imrich/internal/certificate/service"
	"imrich/internal/platform/middleware"
	dErrors "imrich/pkg/domain-errors"
	"imrich/pkg/requestcontext"
	"imrich/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/certificate-mocks.go -package=mocks Service

const (
	goodToken     = "good-token"
	webhookSecret = "whsec-test"
	testSerial    = "RICH-20241116-ABCDEFGH"
)

var alice = models.Owner{AccountID: "acct-alice", Email: "alice@example.com"}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token != goodToken {
		return nil, errors.New("invalid token")
	}
	return &middleware.JWTClaims{UserID: "acct-alice", Email: "alice@example.com"}, nil
}

type CertificateHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
}

func TestCertificateHandlerSuite(t *testing.T) {
	suite.Run(t, new(CertificateHandlerSuite))
}

func (s *CertificateHandlerSuite) SetupTest() {
	s.router = s.newRouter(WithWebhookSecret(webhookSecret))
}

func (s *CertificateHandlerSuite) newRouter(opts ...Option) chi.Router {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	urls := service.URLs{AssetBase: "/api/images/", PublicBase: "https://imrich.example"}

	h := New(s.svc, catalog.Default(), urls, logger, nil, stubValidator{}, opts...)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (s *CertificateHandlerSuite) issued() *models.Certificate {
	return &models.Certificate{
		ID:                   1,
		Serial:               testSerial,
		Owner:                alice,
		ArtifactVerifiedRef:  "abc_verified.png",
		ArtifactWallpaperRef: "abc_wallpaper.png",
		PaymentStatus:        models.PaymentStatusPending,
		CreatedAt:            time.Date(2024, 11, 16, 10, 0, 0, 0, time.UTC),
	}
}

func (s *CertificateHandlerSuite) generateRequest(body string) *http.Request {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/generate-image", body)
	req.Header.Set("Authorization", "Bearer "+goodToken)
	return req
}

const generateBody = `{"customization":{"style":"Elegant","color_scheme":"gold","elements":"luxury","mood":"luxurious"},"ai_model":"dalle"}`

func (s *CertificateHandlerSuite) TestGenerateImage() {
	want := models.Customization{
		Style:       "elegant",
		ColorScheme: "gold",
		Elements:    "luxury",
		Mood:        "luxurious",
		Model:       "dalle",
	}
	s.svc.EXPECT().Issue(gomock.Any(), want, alice).Return(s.issued(), nil)

	rr := testutil.DoRequest(s.router, s.generateRequest(generateBody))

	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[models.CertificateResponse](s.T(), rr)
	s.Equal(models.Serial(testSerial), resp.Serial)
	s.Equal("/api/images/abc_verified.png", resp.ImageURLVerified)
	s.Equal("/api/images/abc_wallpaper.png", resp.ImageURLWallpaper)
	s.Equal(models.PaymentStatusPending, resp.PaymentStatus)
	s.Equal("https://imrich.example/verify/"+testSerial, resp.VerificationURL)
	s.NotEmpty(rr.Header().Get(middleware.HeaderRequestID))
}

func (s *CertificateHandlerSuite) TestGenerateImageDefaultsModel() {
	s.svc.EXPECT().Issue(gomock.Any(), gomock.Any(), alice).
		DoAndReturn(func(_ context.Context, c models.Customization, _ models.Owner) (*models.Certificate, error) {
			s.Equal("gemini", c.Model)
			return s.issued(), nil
		})

	body := `{"customization":{"style":"elegant","color_scheme":"gold","elements":"luxury","mood":"luxurious"}}`
	rr := testutil.DoRequest(s.router, s.generateRequest(body))
	s.Equal(http.StatusCreated, rr.Code)
}

func (s *CertificateHandlerSuite) TestGenerateImageRequiresAuth() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/generate-image", generateBody)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	req = testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/generate-image", generateBody)
	req.Header.Set("Authorization", "Bearer forged")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *CertificateHandlerSuite) TestGenerateImageMalformedBody() {
	rr := testutil.DoRequest(s.router, s.generateRequest(`{"customization":`))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *CertificateHandlerSuite) TestGenerateImageErrorMapping() {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		detail string
	}{
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "unsupported style \"gaudy\""), http.StatusBadRequest, "invalid_input", "unsupported style \"gaudy\""},
		{"artifact unavailable", dErrors.New(dErrors.CodeArtifactUnavailable, "image generation failed"), http.StatusBadGateway, "artifact_unavailable", "image generation failed"},
		{"upstream timeout", dErrors.New(dErrors.CodeUpstreamTimeout, "image generation timed out"), http.StatusGatewayTimeout, "upstream_timeout", "image generation timed out"},
		{"quota", dErrors.New(dErrors.CodeUpstreamQuotaExceeded, "image generation quota exceeded"), http.StatusServiceUnavailable, "upstream_quota_exceeded", "image generation quota exceeded"},
		{"serial exhausted", dErrors.New(dErrors.CodeSerialExhausted, "could not allocate a unique serial after 5 attempts"), http.StatusInternalServerError, "serial_exhausted", "could not allocate a unique serial after 5 attempts"},
		{"internal", dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to persist certificate"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.svc.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			rr := testutil.DoRequest(s.router, s.generateRequest(generateBody))

			testutil.AssertStatusAndError(s.T(), rr, tt.status, tt.code)
			s.Equal(tt.detail, testutil.DecodeObject(s.T(), rr)["detail"])
		})
	}
}

func (s *CertificateHandlerSuite) TestVerify() {
	created := time.Date(2024, 11, 16, 10, 0, 0, 0, time.UTC)
	s.svc.EXPECT().Verify(gomock.Any(), testSerial).Return(models.VerificationResult{
		Valid:            true,
		Serial:           testSerial,
		CreatedAt:        &created,
		ImageURLVerified: "/api/images/abc_verified.png",
		UserEmail:        "alice@example.com",
	})

	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/api/verify/"+testSerial, nil))

	s.Require().Equal(http.StatusOK, rr.Code)
	body := testutil.DecodeObject(s.T(), rr)
	s.Equal(true, body["valid"])
	s.Equal(testSerial, body["serial"])
	s.Equal("2024-11-16T10:00:00Z", body["created_at"])
	s.Equal("alice@example.com", body["user_email"])
}

func (s *CertificateHandlerSuite) TestVerifyInvalidHasNoOtherFields() {
	s.svc.EXPECT().Verify(gomock.Any(), "nope").Return(models.Invalid())

	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/api/verify/nope", nil))

	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"valid":false}`, rr.Body.String())
}

func (s *CertificateHandlerSuite) TestVerifyRateLimitAppliesOnlyToVerify() {
	limited := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := s.newRouter(WithVerifyRateLimit(limited))
	s.svc.EXPECT().Health(gomock.Any()).Return(map[string]string{"store": "ok"}, true)

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/api/verify/"+testSerial, nil))
	s.Equal(http.StatusTooManyRequests, rr.Code)

	rr = testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	s.Equal(http.StatusOK, rr.Code)
}

func (s *CertificateHandlerSuite) TestVerifyClientIPIgnoresUntrustedForwarding() {
	var seen []string
	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, requestcontext.ClientIP(r.Context()))
			next.ServeHTTP(w, r)
		})
	}
	verify := func(router http.Handler) {
		req := httptest.NewRequest(http.MethodGet, "/api/verify/"+testSerial, nil)
		req.RemoteAddr = "10.1.2.3:4040"
		req.Header.Set("X-Forwarded-For", "203.0.113.50")
		s.Equal(http.StatusOK, testutil.DoRequest(router, req).Code)
	}

	direct := s.newRouter(WithVerifyRateLimit(capture))
	s.svc.EXPECT().Verify(gomock.Any(), testSerial).Return(models.Invalid())
	verify(direct)

	trusted, err := middleware.ParseTrustedProxies([]string{"10.0.0.0/8"})
	s.Require().NoError(err)
	proxied := s.newRouter(WithVerifyRateLimit(capture), WithTrustedProxies(trusted))
	s.svc.EXPECT().Verify(gomock.Any(), testSerial).Return(models.Invalid())
	verify(proxied)

	s.Equal([]string{"10.1.2.3", "203.0.113.50"}, seen)
}

func (s *CertificateHandlerSuite) TestMyImages() {
	newer := s.issued()
	older := s.issued()
	older.ID = 0
	older.Serial = "RICH-20241115-OLDER000"
	s.svc.EXPECT().ListByOwner(gomock.Any(), alice).Return([]*models.Certificate{newer, older}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/my-images", nil)
	req.Header.Set("Authorization", "Bearer "+goodToken)
	rr := testutil.DoRequest(s.router, req)

	s.Require().Equal(http.StatusOK, rr.Code)
	list := *testutil.UnmarshalResponse[[]models.CertificateResponse](s.T(), rr)
	s.Require().Len(list, 2)
	s.Equal(newer.Serial, list[0].Serial)
	s.Equal(older.Serial, list[1].Serial)
}

func (s *CertificateHandlerSuite) TestModels() {
	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[models.ModelsResponse](s.T(), rr)
	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		ids = append(ids, m.ID)
	}
	s.ElementsMatch([]string{"gemini", "dalle", "dalle2"}, ids)
}

func (s *CertificateHandlerSuite) TestHealth() {
	s.svc.EXPECT().Health(gomock.Any()).Return(map[string]string{"store": "ok"}, true)
	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("healthy", testutil.DecodeObject(s.T(), rr)["status"])

	s.svc.EXPECT().Health(gomock.Any()).Return(map[string]string{"store": "unavailable"}, false)
	rr = testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.Equal("degraded", testutil.DecodeObject(s.T(), rr)["status"])
}

func (s *CertificateHandlerSuite) webhook(body, signature string) *httptest.ResponseRecorder {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/payments/webhook", body)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *CertificateHandlerSuite) TestPaymentWebhook() {
	body := `{"serial":"` + testSerial + `","status":"completed"}`
	sig := Sign([]byte(webhookSecret), []byte(body))

	s.Run("applies signed update", func() {
		completed := s.issued()
		completed.PaymentStatus = models.PaymentStatusCompleted
		s.svc.EXPECT().UpdatePaymentStatus(gomock.Any(), testSerial, "completed").Return(completed, nil)

		rr := s.webhook(body, sig)
		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("rejects bad signature", func() {
		rr := s.webhook(body, Sign([]byte("other-secret"), []byte(body)))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

		rr = s.webhook(body, "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("unknown serial", func() {
		s.svc.EXPECT().UpdatePaymentStatus(gomock.Any(), testSerial, "completed").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
		testutil.AssertStatusAndError(s.T(), s.webhook(body, sig), http.StatusNotFound, "not_found")
	})

	s.Run("invalid transition", func() {
		s.svc.EXPECT().UpdatePaymentStatus(gomock.Any(), testSerial, "completed").
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "payment status cannot move to completed"))
		testutil.AssertStatusAndError(s.T(), s.webhook(body, sig), http.StatusConflict, "invalid_transition")
	})
}

func (s *CertificateHandlerSuite) TestPaymentWebhookDisabledWithoutSecret() {
	router := s.newRouter()
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/payments/webhook",
		models.PaymentStatusUpdate{Serial: testSerial, Status: "completed"})
	rr := testutil.DoRequest(router, req)
	s.Equal(http.StatusNotFound, rr.Code)
}

func TestValidSignature(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"serial":"x"}`)
	sig := Sign(secret, body)

	if !ValidSignature(secret, body, sig) {
		t.Fatal("expected signature to validate")
	}
	for _, bad := range []string{"", "sha256=", "sha256=zz", sig[:len(sig)-1], "md5=" + sig[7:]} {
		if ValidSignature(secret, body, bad) {
			t.Errorf("signature %q should not validate", bad)
		}
	}
	if ValidSignature(nil, body, sig) {
		t.Error("empty secret never validates")
	}
}
