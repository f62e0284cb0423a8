package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/handler"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/response"
)

func SetupRoutes(
	ledgerHandler *handler.LedgerHandler,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/", ledgerHandler.GetAccountState)
		r.Get("/statement", ledgerHandler.Statement)
		r.Post("/entries", ledgerHandler.RecordEntry)
		r.Put("/baseline", ledgerHandler.UpdateBaseline)
		r.Post("/repair", ledgerHandler.Repair)
	})

	r.Route("/entries/{entryID}", func(r chi.Router) {
		r.Get("/", ledgerHandler.GetEntry)
		r.Delete("/", ledgerHandler.ReverseEntry)
	})

	r.Route("/batches/{batchID}", func(r chi.Router) {
		r.Post("/assessments", ledgerHandler.ApplyBatchFee)
		r.Get("/summary", ledgerHandler.SummarizeBatch)
	})

	return r
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}
