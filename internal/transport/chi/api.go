package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// ErrorCode constants.
const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeValidationFailed    ErrorCode = "validation_failed"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeForbidden           ErrorCode = "forbidden"
	ErrorCodeQuotaExceeded       ErrorCode = "quota_exceeded"
	ErrorCodeInsufficientCredits ErrorCode = "insufficient_credits"
	ErrorCodeStoreUnavailable    ErrorCode = "store_unavailable"
	ErrorCodeNotImplemented      ErrorCode = "not_implemented"
	ErrorCodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response except quota denials.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// StatusResponse is the daily chapter quota snapshot.
type StatusResponse struct {
	AccountID        string    `json:"accountId"`
	Used             int64     `json:"used"`
	Limit            int64     `json:"limit"`
	Remaining        int64     `json:"remaining"`
	ResetAt          time.Time `json:"resetAt"`
	IsPaid           bool      `json:"isPaid"`
	Tier             string    `json:"tier"`
	State            string    `json:"state"`
	HoursUntilReset  int       `json:"hoursUntilReset"`
	ResetDescription string    `json:"resetDescription"`
}

// ConsumeRequest is the body of POST /consume. A missing amount consumes one chapter.
type ConsumeRequest struct {
	Amount *int64 `json:"amount,omitempty" validate:"omitempty,min=1"`
}

func (r ConsumeRequest) amount() int64 {
	if r.Amount == nil {
		return 1
	}
	return *r.Amount
}

// ConsumeResponse is the outcome of a chapter consumption attempt.
type ConsumeResponse struct {
	Success   bool      `json:"success"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Error     string    `json:"error,omitempty"`
}

// StoriesCapResponse reports the active-stories ceiling.
type StoriesCapResponse struct {
	ActiveCount  int64 `json:"activeCount"`
	MaxAllowed   int64 `json:"maxAllowed"`
	CanCreateNew bool  `json:"canCreateNew"`
}

// StoryResponse is the outcome of opening a story.
type StoryResponse struct {
	Success bool               `json:"success"`
	Cap     StoriesCapResponse `json:"cap"`
	Error   string             `json:"error,omitempty"`
}

// CreditBalanceResponse is the effective credit balance.
type CreditBalanceResponse struct {
	Tier         string         `json:"tier"`
	Balance      int64          `json:"balance"`
	MonthlyGrant int64          `json:"monthlyGrant"`
	ResetAt      time.Time      `json:"resetAt"`
	Spent        *SpentResponse `json:"spent,omitempty"`
}

// SpentResponse is the credits debited today and this month.
type SpentResponse struct {
	Today     int64 `json:"today"`
	ThisMonth int64 `json:"thisMonth"`
}

// ChargeRequest is the body of POST /credits/charge.
type ChargeRequest struct {
	Operation string `json:"operation" validate:"required,max=64"`
	Text      string `json:"text"`
}

// ChargeResponse is the outcome of a metered charge.
type ChargeResponse struct {
	Success   bool      `json:"success"`
	Operation string    `json:"operation"`
	Cost      int64     `json:"cost"`
	Balance   int64     `json:"balance"`
	ResetAt   time.Time `json:"resetAt"`
	Error     string    `json:"error,omitempty"`
}

// GrantRequest is the body of POST /credits/grant.
type GrantRequest struct {
	Credits int64 `json:"credits" validate:"required,min=1"`
}

// GrantResponse is the balance after a grant.
type GrantResponse struct {
	Balance int64 `json:"balance"`
}

// TierRequest is the body of PUT /tier.
type TierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free subscriber"`
}

// AudioCostRequest is the body of POST /v1/costs/audio.
type AudioCostRequest struct {
	Text string `json:"text"`
}

// AudioCostResponse is the narration price breakdown.
type AudioCostResponse struct {
	Words         int    `json:"words"`
	Credits       int64  `json:"credits"`
	BreakdownText string `json:"breakdownText"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// AccountID is the {accountId} path parameter.
type AccountID = string

// ServerInterface lists the operations served under /v1.
type ServerInterface interface {
	GetStatus(w http.ResponseWriter, r *http.Request, accountID AccountID)
	UseOneChapter(w http.ResponseWriter, r *http.Request, accountID AccountID)
	TryConsume(w http.ResponseWriter, r *http.Request, accountID AccountID)
	GetStoriesCap(w http.ResponseWriter, r *http.Request, accountID AccountID)
	OpenStory(w http.ResponseWriter, r *http.Request, accountID AccountID)
	CloseStory(w http.ResponseWriter, r *http.Request, accountID AccountID)
	GetCredits(w http.ResponseWriter, r *http.Request, accountID AccountID)
	ChargeCredits(w http.ResponseWriter, r *http.Request, accountID AccountID)
	GrantCredits(w http.ResponseWriter, r *http.Request, accountID AccountID)
	SetTier(w http.ResponseWriter, r *http.Request, accountID AccountID)
	AudioCost(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// ServerOptions configures route registration.
type ServerOptions struct {
	BaseRouter chi.Router
	// AdminMiddleware guards tier changes and credit grants. Nil = no extra guard.
	AdminMiddleware  func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type accountHandler func(w http.ResponseWriter, r *http.Request, accountID AccountID)

// HandlerWithOptions registers every route of si on the base router.
func HandlerWithOptions(si ServerInterface, options ServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	admin := options.AdminMiddleware
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}

	bind := func(h accountHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var accountID AccountID
			err := runtime.BindStyledParameterWithOptions("simple", "accountId", chi.URLParam(r, "accountId"),
				&accountID, runtime.BindStyledParameterOptions{
					ParamLocation: runtime.ParamLocationPath,
					Explode:       false,
					Required:      true,
				})
			if err != nil {
				options.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "accountId", Err: err})
				return
			}
			h(w, r, accountID)
		}
	}

	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/costs/audio", si.AudioCost)

		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.Get("/status", bind(si.GetStatus))
			r.Post("/chapters", bind(si.UseOneChapter))
			r.Post("/consume", bind(si.TryConsume))
			r.Get("/stories/cap", bind(si.GetStoriesCap))
			r.Post("/stories", bind(si.OpenStory))
			r.Delete("/stories", bind(si.CloseStory))
			r.Get("/credits", bind(si.GetCredits))
			r.Post("/credits/charge", bind(si.ChargeCredits))

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/credits/grant", bind(si.GrantCredits))
				r.Put("/tier", bind(si.SetTier))
			})
		})
	})

	return r
}

// InvalidParamFormatError reports a path parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return "invalid format for parameter " + e.ParamName + ": " + e.Err.Error()
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }
