package httpapi

import (
	"net/http"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxBodyBytes leaves room for inline images.
const maxBodyBytes = 50 << 20

type ServerConnectProps struct {
	Logger       *logger.LogMiddleware
	Engine       *conversation.Engine
	AllowOrigins []string
}

type Server struct {
	logger *logger.LogMiddleware
	engine *conversation.Engine
	now    func() time.Time
}

// NewHandler builds the instrumented HTTP handler for the chat API.
func NewHandler(args ServerConnectProps) http.Handler {
	s := &Server{logger: args.Logger, engine: args.Engine, now: time.Now}

	origins := args.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(requestLoggerMiddleware(args.Logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/topics", s.handleTopics)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Delete("/conversations/{id}", s.handleClearConversation)
	})

	return otelhttp.NewHandler(r, "garuda-http")
}

func requestLoggerMiddleware(logger *logger.LogMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger.Logger(ctx).Info("[HTTP] Request Received",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("requestId", middleware.GetReqID(ctx)))
			next.ServeHTTP(ww, r)
			logger.Logger(ctx).Info("[HTTP] Request Completed",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
