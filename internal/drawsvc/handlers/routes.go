package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/metrics"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/session"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Get("/cron/announce", h.AnnounceHandler)
		r.Post("/cron/announce", h.AnnounceHandler)
		r.Get("/draws/{id}", h.GetDrawHandler)
		r.Get("/draws/{id}/ceremony", h.CeremonyHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(h.SessionCtx)
			r.Use(h.RequireAdmin)

			r.Post("/admin/draws", h.CreateDrawHandler)
			r.Post("/admin/draws/{id}/advance", h.AdvanceDrawHandler)
		})
	})
}

func (h *Handler) InitAuth(jwtKey string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}

// IssueToken signs a token for userID, used by the seeding tool and tests.
func (h *Handler) IssueToken(userID string, ttl time.Duration) (string, error) {
	_, tokenString, err := h.tokenAuth.Encode(map[string]interface{}{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return tokenString, err
}

// SessionCtx resolves the verified token's user into a session.
func (h *Handler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized})
			return
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" {
			h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized})
			return
		}

		u, err := h.users.GetUser(r.Context(), userID)
		if err != nil {
			log.Warnf("session for unknown user %s: %v", userID, err)
			h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized})
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), session.New(u))))
	})
}

func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsAdmin() {
			h.CreateResponse(w, Response{Message: "forbidden", Code: http.StatusForbidden})
			return
		}
		next.ServeHTTP(w, r)
	})
}
