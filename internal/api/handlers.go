package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/core"
	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/store"
)

const ServiceName = "ai-learning-tracker-api"

type APIHandler struct {
	feedService *core.FeedService
	userService *core.UserService
	chatService *core.ChatService
	logger      *zap.Logger
}

func NewAPIHandler(fs *core.FeedService, us *core.UserService, cs *core.ChatService, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		feedService: fs,
		userService: us,
		chatService: cs,
		logger:      logging.OrNop(logger),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, models.ErrorBody{Kind: kind, Message: message})
}

func (h *APIHandler) serverError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, "server", msg)
}

// pageParams reads limit (1..100, default 20) and offset (>= 0, default 0).
func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = core.DefaultFeedLimit, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > core.MaxFeedLimit {
			return 0, 0, errors.New("limit must be between 1 and 100")
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{Status: "healthy", Service: ServiceName})
}

func (h *APIHandler) ListGurusHandler(w http.ResponseWriter, r *http.Request) {
	gurus, err := h.feedService.Gurus()
	if err != nil {
		h.serverError(w, "Failed to retrieve gurus", err)
		return
	}
	writeJSON(w, http.StatusOK, gurus)
}

func (h *APIHandler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	req := models.FeedRequest{
		UserID: r.URL.Query().Get("user_id"),
		Limit:  limit,
		Offset: offset,
	}
	if csv := r.URL.Query().Get("guru_ids"); csv != "" {
		req.GuruIDs = strings.Split(csv, ",")
	}

	resp, err := h.feedService.Feed(req)
	if err != nil {
		h.serverError(w, "Failed to retrieve feed", err, zap.String("user_id", req.UserID))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) GuruPostsHandler(w http.ResponseWriter, r *http.Request) {
	guruID := chi.URLParam(r, "guruID")
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	posts, err := h.feedService.GuruPosts(guruID, limit, offset)
	if err != nil {
		h.serverError(w, "Failed to retrieve posts", err, zap.String("guru_id", guruID))
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *APIHandler) SyncUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SyncUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	user, err := h.userService.Sync(req)
	if err != nil {
		if errors.Is(err, core.ErrInvalidUser) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		h.serverError(w, "Failed to sync user", err, zap.String("google_id", req.GoogleID))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) writeUser(w http.ResponseWriter, user *models.User, err error, field zap.Field) {
	if err != nil {
		h.serverError(w, "Failed to retrieve user", err, field)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user, err := h.userService.Get(userID)
	h.writeUser(w, user, err, zap.String("user_id", userID))
}

func (h *APIHandler) GetUserByGoogleIDHandler(w http.ResponseWriter, r *http.Request) {
	googleID := chi.URLParam(r, "googleID")
	user, err := h.userService.GetByGoogleID(googleID)
	h.writeUser(w, user, err, zap.String("google_id", googleID))
}

func (h *APIHandler) writeGurus(w http.ResponseWriter, gurus []models.Guru, err error, userID string) {
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		h.serverError(w, "Failed to retrieve followed gurus", err, zap.String("user_id", userID))
		return
	}
	writeJSON(w, http.StatusOK, gurus)
}

func (h *APIHandler) GetUserGurusHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	gurus, err := h.userService.Gurus(userID)
	h.writeGurus(w, gurus, err, userID)
}

func (h *APIHandler) UpdateUserGurusHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req models.UpdateGurusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	gurus, err := h.userService.ReplaceGurus(userID, req.GuruIDs)
	if err == nil {
		h.logger.Info("follow-set replaced", zap.String("user_id", userID), zap.Int("count", len(gurus)))
	}
	h.writeGurus(w, gurus, err, userID)
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.chatService.Ask(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, core.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "bad_request", "Query cannot be empty")
			return
		}
		fields := []zap.Field{zap.String("query_hash", core.QueryHash(req.Query))}
		if req.UserID != nil {
			fields = append(fields, zap.String("user_id", *req.UserID))
		}
		h.serverError(w, "Failed to generate response", err, fields...)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ChatStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.chatService.Stats()
	if err != nil {
		h.serverError(w, "Failed to retrieve chat stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
