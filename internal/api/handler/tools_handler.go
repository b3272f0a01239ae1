package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fredserve/internal/api"
	"fredserve/internal/common"
)

// ToolsHandler exposes the operation registry: listing and invocation.
type ToolsHandler struct {
	registry *api.Registry
}

func NewToolsHandler(registry *api.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

func (h *ToolsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/{tool}", h.invoke)
}

func (h *ToolsHandler) list(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.List()
	tools := make([]map[string]any, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, map[string]any{
			"name":    spec.Name,
			"summary": spec.Summary,
			"domain":  spec.Domain,
		})
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (h *ToolsHandler) invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tool")

	// An empty body means no arguments.
	args := api.ToolArgs{}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(w, common.NewAPIError(common.CodeInvalidParameter, "request body must be a JSON object"))
		return
	}

	result, err := h.registry.Dispatch(r.Context(), name, args)
	if err != nil {
		common.RespondWithError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
