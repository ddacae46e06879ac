package httpapi

import (
	"net/http"

	"github.com/Mintimate/open-kounter/internal/config"
	"github.com/Mintimate/open-kounter/internal/passkey"
	"github.com/Mintimate/open-kounter/internal/systemtoken"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg      config.Config
	log      logrus.FieldLogger
	passkeys *passkey.Service
	auth     *systemtoken.Auth
	router   *mux.Router
}

func NewServer(cfg config.Config, log logrus.FieldLogger, passkeys *passkey.Service, auth *systemtoken.Auth) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		passkeys: passkeys,
		auth:     auth,
		router:   mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = recoverMiddleware(s.log, h)
	h = requestIDMiddleware(h)
	h = loggingMiddleware(s.log, h)
	h = corsMiddleware(s.cfg.CORSAllowedOrigins, h)
	return h
}

func (s *Server) registerRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/passkey", s.handlePasskey).Methods(http.MethodPost)
	api.HandleFunc("/auth", s.handleAuth).Methods(http.MethodPost)
	api.HandleFunc("/init", s.handleInit).Methods(http.MethodPost)
}
