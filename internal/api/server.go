package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"spai/internal/domain/memory"
	"spai/internal/domain/session"
	applog "spai/internal/platform/log"
)

// SessionService 传输层依赖的会话能力
type SessionService interface {
	HandleMessage(ctx context.Context, msg session.Message) (string, error)
	Reset(ctx context.Context, userID string) (bool, error)
	Inspect(ctx context.Context, userID string) (session.Session, bool, error)
	Summary(ctx context.Context, userID string) (*memory.SummaryRecord, error)
}

// ServerConfig 服务配置
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64  // /chat 请求体上限，<=0 不限
	JWTSecret    string // 为空时 /api/v1 不鉴权
	JWTIssuer    string // JWT 签发者（可选）
}

// DefaultServerConfig 默认配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         8000,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // 覆盖排队的 flush + 直接回复
		MaxBodyBytes: 1 << 20,
	}
}

// Server HTTP 服务器
type Server struct {
	config  *ServerConfig
	svc     SessionService
	httpSrv *http.Server
}

// NewServer 创建服务器
func NewServer(config *ServerConfig, svc SessionService) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		config: config,
		svc:    svc,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	applog.Infof("🚀 Chat API server starting on %s", addr)
	return s.httpSrv.ListenAndServe()
}

// Stop 优雅停机
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// Handler 返回 HTTP Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	NewChatHandler(s.svc, s.config.MaxBodyBytes).RegisterRoutes(r)

	sessionHandler := NewSessionHandler(s.svc)
	r.Group(func(r chi.Router) {
		if strings.TrimSpace(s.config.JWTSecret) != "" {
			r.Use(authMiddleware(&JWTConfig{
				Secret: s.config.JWTSecret,
				Issuer: s.config.JWTIssuer,
			}))
		} else {
			applog.Warn("[API] ⚠️ JWT_SECRET not set, admin routes are unauthenticated")
		}
		sessionHandler.RegisterRoutes(r)
	})
	return r
}

// corsMiddleware CORS 中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
