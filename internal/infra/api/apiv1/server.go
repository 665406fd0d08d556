package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain"
	ucport "restaurant-saas/internal/domain/ports/usecase"
	"restaurant-saas/internal/infra/api"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/infra/redis"
	"restaurant-saas/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Options carries the HTTP-facing knobs. Zero values disable the optional guards.
type Options struct {
	SignatureHeader string
	EventIDHeader   string
	Auth            *api.AuthManager
	AdminAPIKey     string
	Limiter         api.Limiter
	RateLimit       int64
	RateWindow      time.Duration
}

// Server implements the v1 billing routes on top of the use cases.
type Server struct {
	plans      ucport.PlanCatalog
	orders     usecase.OrderPaymentUseCase
	planChange usecase.PlanChangeUseCase
	subs       usecase.SubscriptionUseCase
	webhooks   usecase.WebhookUseCase
	opts       Options
	validate   *validator.Validate
	log        *zerolog.Logger
}

func NewServer(
	plans ucport.PlanCatalog,
	orders usecase.OrderPaymentUseCase,
	planChange usecase.PlanChangeUseCase,
	subs usecase.SubscriptionUseCase,
	webhooks usecase.WebhookUseCase,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "X-Razorpay-Signature"
	}
	if opts.EventIDHeader == "" {
		opts.EventIDHeader = "X-Razorpay-Event-Id"
	}
	return &Server{
		plans:      plans,
		orders:     orders,
		planChange: planChange,
		subs:       subs,
		webhooks:   webhooks,
		opts:       opts,
		validate:   validator.New(),
		log:        logger,
	}
}

// RegisterAPIV1 mounts the v1 routes on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	limited := func(route string) func(http.Handler) http.Handler {
		return api.RateLimit(s.opts.Limiter, route, s.opts.RateLimit, s.opts.RateWindow, redis.RouteKey, s.log)
	}
	user := api.RequireUser(s.opts.Auth, s.log)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)

		r.With(limited("orders")).Post("/orders", s.handleCreateOrder)
		r.Post("/orders/verify", s.handleVerifyOrder)

		r.With(user, limited("plan_change")).Post("/plan-change", s.handlePlanChange)
		r.With(user, limited("subscription_orders")).Post("/subscriptions/orders", s.handleCreateSubscriptionOrder)
		r.With(user).Post("/subscriptions/verify", s.handleVerifySubscription)

		r.Post("/webhooks/gateway", s.handleWebhook)

		r.With(api.AdminKey(s.opts.AdminAPIKey, s.log)).
			Post("/admin/provisioning/{order_id}/resume", s.handleResumeProvisioning)
	})
}

// decode reads a JSON body into dst and validates its tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidArgument, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// checkSubject enforces that an authenticated caller acts only as itself.
func checkSubject(r *http.Request, userID string) error {
	sub, ok := api.SubjectFrom(r.Context())
	if !ok {
		return nil
	}
	if sub != userID {
		return errForbiddenUser
	}
	return nil
}

var errForbiddenUser = errors.New("token subject does not match user_id")

// writeError maps use case errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if code >= 500 {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", code).Msg("request rejected")
	}
	api.WriteJSONError(w, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errForbiddenUser), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidPlan),
		errors.Is(err, domain.ErrPlanNotPurchasable),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrPaymentMismatch),
		errors.Is(err, domain.ErrMissingSignature),
		errors.Is(err, domain.ErrMalformedPayload),
		errors.Is(err, domain.ErrUnsupportedPayment):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "payment verification failed - invalid signature"
	case errors.Is(err, domain.ErrCredentialsNotConfigured):
		return http.StatusBadRequest, "payment gateway credentials not configured"
	case errors.Is(err, domain.ErrPaymentsDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPaymentNotPending),
		errors.Is(err, domain.ErrNotVerified):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, "failed to create payment order"
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		return http.StatusInternalServerError, "payment gateway not configured"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
