package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/audit"
	"github.com/kwccc073/vuetify-shop-back/internal/auth"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/config"
	"github.com/kwccc073/vuetify-shop-back/internal/media"
	"github.com/kwccc073/vuetify-shop-back/internal/order"
	"github.com/kwccc073/vuetify-shop-back/internal/shop"
)

type AuthService interface {
	Register(ctx context.Context, in account.Registration) (account.Account, error)
	Login(ctx context.Context, in auth.Credentials) (auth.LoginResult, error)
	Authenticate(ctx context.Context, token string, allowExpired bool) (account.Account, error)
	Rotate(ctx context.Context, acc account.Account, oldToken string) (string, error)
	Logout(ctx context.Context, acc account.Account, token string) error
	ChangePassword(ctx context.Context, acc account.Account, token string, in auth.PasswordChange) error
}

type CatalogService interface {
	Check(in catalog.ProductInput) error
	CheckEdit(ctx context.Context, id string, patch catalog.ProductPatch) error
	Create(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	Edit(ctx context.Context, id string, patch catalog.ProductPatch) (catalog.Product, error)
	Get(ctx context.Context, id string) (catalog.Product, error)
	Search(ctx context.Context, q catalog.SearchQuery) (catalog.Page, error)
}

type ShopService interface {
	AdjustCart(ctx context.Context, acc account.Account, productID string, delta int) (int, error)
	Cart(ctx context.Context, acc account.Account) ([]shop.CartLine, error)
	PlaceOrder(ctx context.Context, acc account.Account) (order.Order, error)
	Orders(ctx context.Context, acc account.Account) ([]shop.OrderView, error)
	AllOrders(ctx context.Context) ([]shop.OrderView, error)
}

// ReadinessChecker reports whether storage can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

type Deps struct {
	Auth      AuthService
	Catalog   CatalogService
	Shop      ShopService
	Media     media.Store
	Audit     audit.Recorder
	Readiness ReadinessChecker
	Logger    *slog.Logger

	// MediaDir is served under MediaBaseURL when both are set and the base
	// URL is a path.
	MediaDir     string
	MediaBaseURL string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, limits config.RateLimitConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var h http.Handler = NewHandler(deps)
	h = newRateLimiter(limits).middleware(h)
	h = otelhttp.NewHandler(h, "shop-api", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return r.Method + " " + r.URL.Path
	}))
	h = loggingMiddleware(logger, h)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

type handler struct {
	Deps
	logger *slog.Logger
}

func NewHandler(deps Deps) http.Handler {
	h := &handler{Deps: deps, logger: deps.Logger}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, "ok", nil)
	})
	mux.HandleFunc("GET /readyz", h.ready)

	mux.HandleFunc("POST /user", h.register)
	mux.HandleFunc("POST /user/login", h.login)
	mux.HandleFunc("PATCH /user/extend", h.withSession(true, h.extend))
	mux.HandleFunc("GET /user/profile", h.withSession(false, h.profile))
	mux.HandleFunc("DELETE /user/logout", h.withSession(true, h.logout))
	mux.HandleFunc("PATCH /user/password", h.withSession(false, h.changePassword))
	mux.HandleFunc("PATCH /user/cart", h.withSession(false, h.adjustCart))
	mux.HandleFunc("GET /user/cart", h.withSession(false, h.cart))

	mux.HandleFunc("POST /product", h.admin(h.createProduct))
	mux.HandleFunc("GET /product", h.searchProducts(false))
	mux.HandleFunc("GET /product/all", h.admin(h.searchAllProducts))
	mux.HandleFunc("GET /product/{id}", h.getProduct)
	mux.HandleFunc("PATCH /product/{id}", h.admin(h.editProduct))

	mux.HandleFunc("POST /order", h.withSession(false, h.placeOrder))
	mux.HandleFunc("GET /order", h.withSession(false, h.orders))
	mux.HandleFunc("GET /order/all", h.admin(h.allOrders))

	registerMediaHandler(mux, deps.MediaDir, deps.MediaBaseURL)

	return envelopeFallback(mux)
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.Readiness != nil {
		if err := h.Readiness.Ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "request_id", requestIDFromContext(r.Context()), "error", err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeOK(w, "ready", nil)
}

func registerMediaHandler(mux *http.ServeMux, dir, baseURL string) {
	dir = strings.TrimSpace(dir)
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if dir == "" || !strings.HasPrefix(baseURL, "/") {
		return
	}
	files := http.StripPrefix(baseURL+"/", http.FileServer(http.Dir(dir)))
	mux.Handle("GET "+baseURL+"/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		files.ServeHTTP(w, r)
	}))
}

// envelopeFallback answers unrouted requests with the JSON envelope instead
// of the mux's plain-text 404 and 405 bodies.
func envelopeFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		sniff := &routeSniffer{header: http.Header{}}
		h.ServeHTTP(sniff, r)
		if sniff.status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", sniff.header.Get("Allow"))
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeError(w, http.StatusNotFound, "not found")
	})
}

type routeSniffer struct {
	header http.Header
	status int
}

func (p *routeSniffer) Header() http.Header { return p.header }

func (p *routeSniffer) Write(b []byte) (int, error) { return len(b), nil }

func (p *routeSniffer) WriteHeader(status int) { p.status = status }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
