package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hris-portal/internal/auth"
	"hris-portal/internal/observability"
)

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Tenant   string `json:"tenant"`
	Role     string `json:"role"`
}

type editRequest struct {
	Role     *string `json:"role"`
	Tenant   *string `json:"tenant"`
	IsActive *bool   `json:"isActive"`
}

// Routes mounts the administration endpoints. The caller is expected to
// have authenticated the request already.
func (h *Handler) Routes(r chi.Router) {
	r.Use(auth.CheckAdminPermission())
	r.Post("/create", h.Create)
	r.Put("/edit/{id}", h.Edit)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if !auth.DecodeJSON(w, r, &body) {
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	view, err := h.service.Create(r.Context(), actor, CreateInput(body))
	if err != nil {
		auth.WriteError(w, r, h.logger, err, "Error creating user")
		return
	}

	auth.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    view,
	})
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var body editRequest
	if !auth.DecodeJSON(w, r, &body) {
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	view, err := h.service.Edit(r.Context(), actor, id, EditInput(body))
	if err != nil {
		auth.WriteError(w, r, h.logger, err, "Error updating user")
		return
	}

	auth.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    view,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		auth.WriteError(w, r, h.logger, err, "Error getting users")
		return
	}

	auth.WriteJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		auth.WriteError(w, r, h.logger, err, "Error fetching user")
		return
	}

	auth.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User fetched successfully",
		"user":    view,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		auth.WriteError(w, r, h.logger, err, "Error deleting user")
		return
	}

	auth.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted permanently"})
}

func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		auth.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid user ID format"})
		return "", false
	}
	return id, true
}
