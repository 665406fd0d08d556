package apiv1

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/infra/api"
	"restaurant-saas/internal/usecase"
)

const (
	actionCreateOrder   = "create_order"
	actionVerifyPayment = "verify_payment"
)

type planDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	MonthlyPrice *int64           `json:"monthly_price"`
	Features     []string         `json:"features"`
	Limits       model.PlanLimits `json:"limits"`
	Popular      bool             `json:"popular"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, planDTO{
			ID:           p.ID,
			Name:         p.Name,
			MonthlyPrice: p.MonthlyPrice,
			Features:     p.Features,
			Limits:       p.Limits,
			Popular:      p.Popular,
		})
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"plans": out})
}

type lineItemDTO struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity" validate:"gte=1"`
}

type createOrderRequest struct {
	TenantID    string          `json:"tenant_id" validate:"required,uuid"`
	TableID     string          `json:"table_id" validate:"required"`
	Items       []lineItemDTO   `json:"items" validate:"required,min=1,dive"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type breakdownDTO struct {
	Subtotal            decimal.Decimal `json:"subtotal"`
	ServiceChargeRate   decimal.Decimal `json:"service_charge_rate"`
	ServiceChargeAmount decimal.Decimal `json:"service_charge_amount"`
	Total               decimal.Decimal `json:"total"`
}

type createOrderResponse struct {
	RazorpayOrderID string       `json:"razorpay_order_id"`
	RazorpayKeyID   string       `json:"razorpay_key_id"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	OrderID         string       `json:"order_id"`
	Breakdown       breakdownDTO `json:"breakdown"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]model.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.LineItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
		})
	}
	out, err := s.orders.CreateOrder(r.Context(), usecase.CreateOrderInput{
		TenantID:    req.TenantID,
		TableID:     req.TableID,
		Items:       items,
		ClientTotal: req.TotalAmount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, createOrderResponse{
		RazorpayOrderID: out.GatewayOrderID,
		RazorpayKeyID:   out.KeyID,
		Amount:          out.AmountMinor,
		Currency:        out.Currency,
		OrderID:         out.OrderID,
		Breakdown: breakdownDTO{
			Subtotal:            out.Pricing.Subtotal,
			ServiceChargeRate:   out.Pricing.ServiceChargeRate,
			ServiceChargeAmount: out.Pricing.ServiceChargeAmount,
			Total:               out.Pricing.Total,
		},
	})
}

type verifyOrderRequest struct {
	TenantID          string `json:"tenant_id" validate:"required,uuid"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

func (s *Server) handleVerifyOrder(w http.ResponseWriter, r *http.Request) {
	var req verifyOrderRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.orders.VerifyPayment(r.Context(), usecase.VerifyOrderInput{
		TenantID:       req.TenantID,
		GatewayOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"order_id":       o.ID,
		"payment_status": o.PaymentStatus,
		"message":        "Payment verified successfully",
	})
}

type planChangeRequest struct {
	Action            string `json:"action" validate:"required"`
	TenantID          string `json:"tenant_id" validate:"required,uuid"`
	NewPlanID         string `json:"new_plan_id" validate:"required"`
	UserID            string `json:"user_id" validate:"required,uuid"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (s *Server) handlePlanChange(w http.ResponseWriter, r *http.Request) {
	var req planChangeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkSubject(r, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := usecase.PlanChangeInput{TenantID: req.TenantID, NewPlanID: req.NewPlanID, UserID: req.UserID}

	var (
		res *usecase.PlanChangeResult
		err error
	)
	switch req.Action {
	case actionCreateOrder:
		res, err = s.planChange.CreateOrder(r.Context(), in)
	case actionVerifyPayment:
		res, err = s.planChange.VerifyPayment(r.Context(), usecase.PlanChangeVerifyInput{
			PlanChangeInput: in,
			GatewayOrderID:  req.RazorpayOrderID,
			PaymentID:       req.RazorpayPaymentID,
			Signature:       req.RazorpaySignature,
		})
	default:
		err = domain.ErrInvalidAction
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if res.RequiresPayment {
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"requires_payment": true,
			"state":            res.State,
			"order_id":         res.OrderID,
			"key_id":           res.KeyID,
			"amount":           res.AmountMinor,
			"currency":         res.Currency,
			"price_difference": res.PriceDifference,
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"requires_payment": false,
		"state":            res.State,
		"message":          res.Message,
	})
}

type signupDTO struct {
	Email          string `json:"user_email"`
	FullName       string `json:"full_name"`
	BusinessName   string `json:"business_name"`
	ContactPhone   string `json:"contact_phone"`
	Phone          string `json:"phone"`
	RestaurantName string `json:"restaurant_name"`
	Address        string `json:"address"`
}

func (d signupDTO) model() model.SignupDetails {
	phone := d.ContactPhone
	if phone == "" {
		phone = d.Phone
	}
	return model.SignupDetails{
		Email:          d.Email,
		FullName:       d.FullName,
		BusinessName:   d.BusinessName,
		Phone:          phone,
		RestaurantName: d.RestaurantName,
		Address:        d.Address,
	}
}

type subscriptionOrderRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
	UserID string `json:"user_id" validate:"required,uuid"`
	signupDTO
}

func (s *Server) handleCreateSubscriptionOrder(w http.ResponseWriter, r *http.Request) {
	var req subscriptionOrderRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkSubject(r, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.subs.CreateSubscriptionOrder(r.Context(), usecase.SubscriptionOrderInput{
		PlanID: req.PlanID,
		UserID: req.UserID,
		Signup: req.signupDTO.model(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"order_id":   out.OrderID,
		"key_id":     out.KeyID,
		"amount":     out.AmountMinor,
		"currency":   out.Currency,
		"plan_price": out.PlanPrice,
		"setup_fee":  out.SetupFee,
		"total":      out.Total,
	})
}

type subscriptionVerifyRequest struct {
	UserID            string `json:"user_id" validate:"required,uuid"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	signupDTO
}

func (s *Server) handleVerifySubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionVerifyRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := checkSubject(r, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	signup := req.signupDTO.model()
	res, err := s.subs.VerifySubscriptionPayment(r.Context(), usecase.SubscriptionVerifyInput{
		UserID:         req.UserID,
		GatewayOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
		Signup:         &signup,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeProvisioning(w, res)
}

func (s *Server) handleResumeProvisioning(w http.ResponseWriter, r *http.Request) {
	res, err := s.subs.ResumeProvisioning(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeProvisioning(w, res)
}

func writeProvisioning(w http.ResponseWriter, res *usecase.ProvisioningResult) {
	msg := "Subscription activated successfully"
	if res.AlreadyProvisioned {
		msg = "Subscription already active"
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tenant_id": res.TenantID,
		"message":   msg,
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		api.WriteJSONError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	res, err := s.webhooks.Handle(r.Context(), usecase.WebhookDelivery{
		Signature: r.Header.Get(s.opts.SignatureHeader),
		EventID:   r.Header.Get(s.opts.EventIDHeader),
		Body:      body,
	})
	if err != nil {
		// The gateway retries on anything but 2xx, so a bad signature must not look like success.
		if errors.Is(err, domain.ErrInvalidSignature) {
			api.WriteJSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"status": res.Outcome})
}
