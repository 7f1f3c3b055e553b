package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/user/smsrelay/internal/config"
	"github.com/user/smsrelay/internal/gateway"
)

// Handler processes one decoded webhook delivery. *gateway.Gateway
// implements it.
type Handler interface {
	HandleWebhook(ctx context.Context, req *gateway.WebhookRequest) *gateway.WebhookResponse
}

// Server is the HTTP front for the SMS webhook: it decodes form payloads,
// reconstructs the signed public URL, and writes whatever envelope the
// gateway hands back.
type Server struct {
	cfg     config.SMSConfig
	handler Handler
	mux     *http.ServeMux
}

// NewServer creates a Server routing the configured inbound path to handler.
func NewServer(cfg config.SMSConfig, handler Handler) *Server {
	path := cfg.InboundPath
	if path == "" || !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST "+path, s.handleInbound)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error":"invalid form payload"}`, http.StatusBadRequest)
		return
	}

	resp := s.handler.HandleWebhook(r.Context(), &gateway.WebhookRequest{
		Header: r.Header,
		Form:   r.PostForm,
		URL:    s.requestURL(r),
	})

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// requestURL reconstructs the URL the provider signed. When public_url is
// configured it supplies the external scheme and host; otherwise we infer
// them from the request, honoring X-Forwarded-Proto from a fronting proxy.
func (s *Server) requestURL(r *http.Request) string {
	if base := strings.TrimRight(s.cfg.PublicURL, "/"); base != "" {
		return base + r.URL.RequestURI()
	}

	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
