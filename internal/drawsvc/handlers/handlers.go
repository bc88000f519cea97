package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/ceremony"
	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/service"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/session"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

type Handler struct {
	tokenAuth  *jwtauth.JWTAuth
	cronSecret string

	engine    *service.Engine
	scheduler *service.Scheduler
	draws     *service.DrawService
	users     *service.UserService
	now       func() time.Time
}

func NewHandler(engine *service.Engine, scheduler *service.Scheduler,
	draws *service.DrawService, users *service.UserService, cronSecret string) *Handler {
	return &Handler{
		cronSecret: cronSecret,
		engine:     engine,
		scheduler:  scheduler,
		draws:      draws,
		users:      users,
		now:        time.Now,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "draw service is running",
		Code:    http.StatusOK,
	})
}

type announceResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	ProcessedDraws []string `json:"processedDraws"`
	Skipped        int      `json:"skipped"`
	Failed         int      `json:"failed"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// AnnounceHandler is called by the periodic trigger and runs one sweep.
func (h *Handler) AnnounceHandler(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret")
	if h.cronSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.cronSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, announceResponse{
			Message:        "unauthorized",
			ProcessedDraws: []string{},
		})
		return
	}

	res, err := h.scheduler.Sweep(r.Context(), h.now())
	if err != nil {
		log.Errorf("Error [Scheduler.Sweep] %s", err)
		writeJSON(w, http.StatusInternalServerError, announceResponse{
			Message:        "sweep failed",
			ProcessedDraws: []string{},
		})
		return
	}

	writeJSON(w, http.StatusOK, announceResponse{
		Success:        true,
		Message:        "sweep completed",
		ProcessedDraws: res.Processed,
		Skipped:        res.Skipped,
		Failed:         res.Failed,
	})
}

func (h *Handler) AdvanceDrawHandler(w http.ResponseWriter, r *http.Request) {
	drawID := chi.URLParam(r, "id")
	s := session.FromContext(r.Context())

	res, err := h.engine.Advance(r.Context(), drawID)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, store.ErrNotFound):
			code = http.StatusNotFound
		case errors.Is(err, service.ErrNotDue), errors.Is(err, service.ErrDrawFinished):
			code = http.StatusConflict
		case errors.Is(err, service.ErrInsufficientPool):
			code = http.StatusUnprocessableEntity
		default:
			log.Errorf("Error [Engine.Advance] %s: %s", drawID, err)
		}
		h.CreateResponse(w, Response{Message: "draw not advanced", Code: code, Error: err.Error()})
		return
	}

	log.WithFields(log.Fields{"draw": drawID, "admin": s.UserID, "round": res.Round}).Info("live advance")
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: res})
}

func (h *Handler) CreateDrawHandler(w http.ResponseWriter, r *http.Request) {
	var in service.NewDraw
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.CreateResponse(w, Response{Message: "invalid body", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	d, err := h.draws.CreateDraw(r.Context(), in)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidDraw) {
			code = http.StatusBadRequest
		} else {
			log.Errorf("Error [DrawService.CreateDraw] %s", err)
		}
		h.CreateResponse(w, Response{Message: "draw not created", Code: code, Error: err.Error()})
		return
	}
	h.CreateResponse(w, Response{Message: "created", Code: http.StatusCreated, Data: d})
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*comm.DrawSnapshot, bool) {
	drawID := chi.URLParam(r, "id")
	snap, err := h.draws.Snapshot(r.Context(), drawID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.CreateResponse(w, Response{Message: "draw not found", Code: http.StatusNotFound})
			return nil, false
		}
		log.Errorf("Error [DrawService.Snapshot] %s: %s", drawID, err)
		h.CreateResponse(w, Response{Message: "internal error", Code: http.StatusInternalServerError})
		return nil, false
	}
	return snap, true
}

func (h *Handler) GetDrawHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: snap})
}

type ceremonyView struct {
	Draw       *comm.DrawSnapshot  `json:"draw"`
	Projection ceremony.Projection `json:"projection"`
}

// CeremonyHandler returns where a viewer joining now would stand.
func (h *Handler) CeremonyHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	h.CreateResponse(w, Response{
		Message: "ok",
		Code:    http.StatusOK,
		Data: ceremonyView{
			Draw:       snap,
			Projection: ceremony.Reconstruct(snap, ceremony.FastForward(snap)),
		},
	})
}
