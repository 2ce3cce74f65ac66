package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/domain"
	"github.com/kailas-cloud/taleforge/internal/domain/cost"
	"github.com/kailas-cloud/taleforge/internal/domain/period"
	"github.com/kailas-cloud/taleforge/internal/domain/usage"
	"github.com/kailas-cloud/taleforge/internal/logger"
	healthuc "github.com/kailas-cloud/taleforge/internal/usecase/health"
	"github.com/kailas-cloud/taleforge/internal/version"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface on top of the quota facade.
type Server struct {
	quota         QuotaService
	health        HealthChecker
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(quota QuotaService, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		quota:    quota,
		health:   health,
		validate: newValidator(),
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		s.quotaDeniedHandler,
		sentinelHandler(domain.ErrInsufficientCredits, http.StatusPaymentRequired, ErrorCodeInsufficientCredits),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, ErrorCodeStoreUnavailable),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, ErrorCodeNotImplemented),
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GetStatus handles GET /v1/accounts/{accountId}/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	st, err := s.quota.GetStatus(r.Context(), accountID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.statusToResponse(st))
}

// UseOneChapter handles POST /v1/accounts/{accountId}/chapters.
func (s *Server) UseOneChapter(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	res, err := s.quota.UseOneChapter(r.Context(), accountID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.writeConsumeResult(w, res)
}

// TryConsume handles POST /v1/accounts/{accountId}/consume.
func (s *Server) TryConsume(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	var req ConsumeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := s.quota.TryConsume(r.Context(), accountID, req.amount())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.writeConsumeResult(w, res)
}

// GetStoriesCap handles GET /v1/accounts/{accountId}/stories/cap.
func (s *Server) GetStoriesCap(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	c, err := s.quota.CheckActiveStoriesCap(r.Context(), accountID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, storiesCapToResponse(c))
}

// OpenStory handles POST /v1/accounts/{accountId}/stories.
func (s *Server) OpenStory(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	res, err := s.quota.OpenStory(r.Context(), accountID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !res.Success {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, StoryResponse{
		Success: res.Success,
		Cap:     storiesCapToResponse(res.Cap),
		Error:   res.Error,
	})
}

// CloseStory handles DELETE /v1/accounts/{accountId}/stories.
func (s *Server) CloseStory(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	c, err := s.quota.CloseStory(r.Context(), accountID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, storiesCapToResponse(c))
}

// GetCredits handles GET /v1/accounts/{accountId}/credits.
func (s *Server) GetCredits(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	b, err := s.quota.CreditBalance(r.Context(), accountID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := CreditBalanceResponse{
		Tier:         string(b.Tier),
		Balance:      b.Balance,
		MonthlyGrant: b.MonthlyGrant,
		ResetAt:      b.ResetAt,
	}
	if b.Spent != nil {
		resp.Spent = &SpentResponse{Today: b.Spent.Today, ThisMonth: b.Spent.ThisMonth}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChargeCredits handles POST /v1/accounts/{accountId}/credits/charge.
func (s *Server) ChargeCredits(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	var req ChargeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := s.quota.ChargeCredits(r.Context(), accountID, cost.ParseOperation(req.Operation), req.Text)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, ChargeResponse{
		Success:   res.Success,
		Operation: string(res.Operation),
		Cost:      res.Cost,
		Balance:   res.Balance,
		ResetAt:   res.ResetAt,
		Error:     res.Error,
	})
}

// GrantCredits handles POST /v1/accounts/{accountId}/credits/grant.
func (s *Server) GrantCredits(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	var req GrantRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	balance, err := s.quota.GrantCredits(r.Context(), accountID, req.Credits)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GrantResponse{Balance: balance})
}

// SetTier handles PUT /v1/accounts/{accountId}/tier.
func (s *Server) SetTier(w http.ResponseWriter, r *http.Request, accountID AccountID) {
	var req TierRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	st, err := s.quota.SetTier(r.Context(), accountID, req.Tier)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.statusToResponse(st))
}

// AudioCost handles POST /v1/costs/audio.
func (s *Server) AudioCost(w http.ResponseWriter, r *http.Request) {
	var req AudioCostRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	c := s.quota.CalculateAudioCost(req.Text)
	writeJSON(w, http.StatusOK, AudioCostResponse{
		Words:         c.Words,
		Credits:       c.Credits,
		BreakdownText: c.Breakdown,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) writeConsumeResult(w http.ResponseWriter, res usage.ConsumeResult) {
	status := http.StatusOK
	if !res.Success {
		setRetryAfter(w, res.ResetAt, s.quota.Now())
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, ConsumeResponse{
		Success:   res.Success,
		Used:      res.Used,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
		Error:     res.Error,
	})
}

func (s *Server) statusToResponse(st usage.Status) StatusResponse {
	now := s.quota.Now()
	resetAt := st.Chapters.ResetsAt()
	return StatusResponse{
		AccountID:        st.AccountID,
		Used:             st.Chapters.Used(),
		Limit:            st.Chapters.Limit(),
		Remaining:        st.Chapters.Remaining(),
		ResetAt:          resetAt,
		IsPaid:           st.IsPaid(),
		Tier:             string(st.Tier),
		State:            string(st.Chapters.State()),
		HoursUntilReset:  period.HoursUntilReset(resetAt, now),
		ResetDescription: period.Describe(resetAt, now),
	}
}

func storiesCapToResponse(c usage.StoriesCap) StoriesCapResponse {
	return StoriesCapResponse{
		ActiveCount:  c.ActiveCount,
		MaxAllowed:   c.MaxAllowed,
		CanCreateNew: c.CanCreateNew,
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
// It writes a 400 and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "validation failed"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// setRetryAfter sets Retry-After to the whole seconds until resetAt.
func setRetryAfter(w http.ResponseWriter, resetAt, now time.Time) {
	if resetAt.IsZero() {
		return
	}
	d := resetAt.Sub(now)
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Invalid input keeps its field-level detail.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrQuotaDenied,
		domain.ErrInsufficientCredits,
		domain.ErrStoreUnavailable,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// quotaDeniedHandler handles ErrQuotaDenied with a Retry-After header.
func (s *Server) quotaDeniedHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrQuotaDenied) {
		return false
	}
	var qde *domain.QuotaDeniedError
	if errors.As(err, &qde) {
		setRetryAfter(w, qde.ResetAt, s.quota.Now())
		msg = qde.Reason
	}
	writeError(w, http.StatusTooManyRequests, ErrorCodeQuotaExceeded, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
