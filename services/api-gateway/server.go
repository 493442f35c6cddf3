// services/api-gateway/server.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/example/insurance-portal/internal/auth"
	m "github.com/example/insurance-portal/pkg/metrics"
	"github.com/example/insurance-portal/services/api-gateway/handlers"
)

const serviceName = "api-gateway"

type pinger interface {
	Ping(ctx context.Context) error
}

type APIServer struct {
	router  *mux.Router
	handler http.Handler
	log     log.FieldLogger
}

type Deps struct {
	JWT           *auth.JWTManager
	Payments      *handlers.Payments
	Contracts     *handlers.Contracts
	Notifications *handlers.Notifications
	DB            pinger
	CORSOrigins   []string
	Log           log.FieldLogger
}

func NewAPIServer(d Deps) *APIServer {
	s := &APIServer{router: mux.NewRouter(), log: d.Log}
	s.router.Use(metricsMiddleware)
	s.setupRoutes(d)

	c := cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *APIServer) setupRoutes(d Deps) {
	r := s.router

	// metrics & health
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ok := true
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			ok = d.DB.Ping(ctx) == nil
		}
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      ok,
			"service": serviceName,
			"ts":      time.Now().UTC(),
		})
	}).Methods(http.MethodGet)

	// gateway callbacks are public; authenticity comes from the signature
	r.HandleFunc("/api/payment/vnpay_return", d.Payments.Return).Methods(http.MethodGet)
	r.HandleFunc("/api/payment/vnpay_ipn", d.Payments.IPN).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(d.JWT.Middleware)
	api.HandleFunc("/payment/create_payment_url", d.Payments.CreatePaymentURL).Methods(http.MethodPost)
	api.HandleFunc("/contracts/my", d.Contracts.Mine).Methods(http.MethodGet)
	api.HandleFunc("/notifications", d.Notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", d.Notifications.MarkRead).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{id}", d.Notifications.Delete).Methods(http.MethodDelete)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireRole(auth.RoleAdmin))
	admin.HandleFunc("/contracts/{id}/reopen-payment", d.Contracts.ReopenPayment).Methods(http.MethodPost)
}

func (s *APIServer) Handler() http.Handler { return s.handler }

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Infof("%s listening", serviceName)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

/*************** Metrics middleware ***************/
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		statusLabel := "FAILED"
		if rec.status >= 200 && rec.status < 400 {
			statusLabel = "SUCCESS"
		}
		m.IncRequest(serviceName, statusLabel, r.Method)
		m.ObserveDuration(serviceName, statusLabel, time.Since(start).Seconds())
	})
}
