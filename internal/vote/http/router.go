package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/service"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/httpx"
	"github.com/civicstack/ballotcore/pkg/jwtx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	CredentialService  *service.CredentialService
	ChallengeService   *service.ChallengeService
	SessionService     *service.SessionService
	EligibilityService *service.EligibilityService
	ReceiptService     *service.ReceiptService
	ElectionService    *service.ElectionService
}

func NewRouter(
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerVoting()
	r.registerReceipts()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{CredentialService: r.CredentialService}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	verifyHandler := &VerifyOTPHandler{
		ChallengeService: r.ChallengeService,
		SessionService:   r.SessionService,
	}
	r.Mux.Handle("POST /v1/auth/verify-otp",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	resendHandler := &ResendOTPHandler{ChallengeService: r.ChallengeService}
	r.Mux.Handle("POST /v1/auth/resend-otp",
		httpx.Chain(resendHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	refreshHandler := &RefreshHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	logoutHandler := &LogoutHandler{SessionService: r.SessionService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerVoting() {
	statusHandler := &VotingStatusHandler{
		SessionService:     r.SessionService,
		EligibilityService: r.EligibilityService,
	}
	r.Mux.Handle("GET /v1/elections/{id}/voting-status",
		httpx.Chain(statusHandler,
			httpx.AuthnMiddleware(r.verifier, r.issuer),
			httpx.RateLimitByVoter(httpx.LenientLimit),
		),
	)

	castHandler := &CastVoteHandler{
		SessionService:     r.SessionService,
		EligibilityService: r.EligibilityService,
	}
	r.Mux.Handle("POST /v1/elections/{id}/vote",
		httpx.Chain(castHandler,
			httpx.AuthnMiddleware(r.verifier, r.issuer),
			httpx.RateLimitByVoter(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerReceipts() {
	verifyHandler := &ReceiptVerifyHandler{ReceiptService: r.ReceiptService}
	r.Mux.Handle("GET /v1/voter/verify-vote/{receiptCode}",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{ElectionService: r.ElectionService}

	secured := func(handler http.Handler) http.Handler {
		return httpx.Chain(handler,
			httpx.AuthnMiddleware(r.verifier, r.issuer),
			httpx.RequireRole("admin"),
			httpx.RateLimitByVoter(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/admin/elections", secured(http.HandlerFunc(h.CreateElection)))
	r.Mux.Handle("GET /v1/admin/elections", secured(http.HandlerFunc(h.ListElections)))
	r.Mux.Handle("POST /v1/admin/voters", secured(http.HandlerFunc(h.ImportVoter)))
	r.Mux.Handle("DELETE /v1/admin/voters/{id}", secured(http.HandlerFunc(h.DeactivateVoter)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
