// Package gateway provides the HTTP surface for the approval workflow:
// invoking gated tools, listing and resolving pending actions, inspecting the
// audit trail, and managing per-user tier overrides. It binds to loopback by
// default and follows the module system pattern.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/dispatch"
	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/policy"
	"github.com/arenvik/warden/internal/tool"
)

// invokeRequest is the JSON body for POST /api/invoke.
type invokeRequest struct {
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleInvoke runs a tool call through the gate on behalf of an API client.
func (g *Gateway) handleInvoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.gate == nil {
			http.Error(w, "gate not available", http.StatusServiceUnavailable)
			return
		}

		var req invokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Tool == "" || req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tool and user_id are required"})
			return
		}

		result, err := g.gate.Decide(r.Context(), gate.Request{
			UserID:    req.UserID,
			SessionID: req.SessionID,
			ToolName:  req.Tool,
			Arguments: req.Arguments,
		})
		if err != nil {
			writeGateError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// handleListPending returns a user's open approvals, oldest first.
func (g *Gateway) handleListPending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.gate == nil {
			http.Error(w, "gate not available", http.StatusServiceUnavailable)
			return
		}

		userID := r.URL.Query().Get("user")
		if userID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
			return
		}

		actions, err := g.gate.ListPending(r.Context(), userID)
		if err != nil {
			g.logger.Error("list pending failed", "user_id", userID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if actions == nil {
			actions = []*ledger.PendingAction{}
		}

		writeJSON(w, http.StatusOK, actions)
	}
}

// resolveRequest is the JSON body for POST /api/pending/{id}/resolve.
type resolveRequest struct {
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
	Reason   string `json:"reason"`
}

// handleResolve applies a human decision to a pending action.
func (g *Gateway) handleResolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.approvals == nil {
			http.Error(w, "dispatcher not available", http.StatusServiceUnavailable)
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing pending action id", http.StatusBadRequest)
			return
		}

		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Actor == "" {
			req.Actor = "api"
		}

		action, err := g.approvals.Resolve(r.Context(), id, dispatch.Resolution{
			Decision: dispatch.Decision(req.Decision),
			Actor:    req.Actor,
			Reason:   req.Reason,
		})
		switch {
		case errors.Is(err, dispatch.ErrUnknownDecision):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		case errors.Is(err, ledger.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "pending action not found"})
			return
		case errors.Is(err, ledger.ErrAlreadyResolved):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "pending action already resolved"})
			return
		case err != nil:
			g.logger.Error("resolve failed", "pending_id", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, action)
	}
}

// handleAudit serves the audit trail with optional filters:
// pending_id, user, since (RFC 3339), limit.
func (g *Gateway) handleAudit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.trail == nil {
			http.Error(w, "audit trail not available", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		filter := audit.Filter{
			PendingActionID: q.Get("pending_id"),
			UserID:          q.Get("user"),
		}
		if since := q.Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
				return
			}
			filter.Since = t
		}
		if limit := q.Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			filter.Limit = n
		}

		records, err := g.trail.History(r.Context(), filter)
		if err != nil {
			g.logger.Error("audit history failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []audit.Record{}
		}

		writeJSON(w, http.StatusOK, records)
	}
}

// handleListTools returns the registered tool descriptors.
func (g *Gateway) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.registry == nil {
			http.Error(w, "registry not available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, g.registry.Descriptors())
	}
}

// handleGetPolicy returns the effective tier for every tool for a user.
func (g *Gateway) handleGetPolicy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.policies == nil {
			http.Error(w, "policy resolver not available", http.StatusServiceUnavailable)
			return
		}

		userID := chi.URLParam(r, "user")
		tiers, err := g.policies.EffectiveTiers(r.Context(), userID)
		if err != nil {
			g.logger.Error("effective tiers failed", "user_id", userID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, tiers)
	}
}

// policyRequest is the JSON body for PUT /api/policy/{user}.
type policyRequest struct {
	Tool string `json:"tool"`
	Tier string `json:"tier"`
}

// handleSetPolicy records a per-user tier override.
func (g *Gateway) handleSetPolicy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.policies == nil {
			http.Error(w, "policy resolver not available", http.StatusServiceUnavailable)
			return
		}

		userID := chi.URLParam(r, "user")
		var req policyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Tool == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tool is required"})
			return
		}

		err := g.policies.SetOverride(r.Context(), userID, req.Tool, tool.RiskTier(req.Tier))
		switch {
		case errors.Is(err, tool.ErrUnknownTool):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown tool"})
			return
		case errors.Is(err, policy.ErrInvalidPromotion):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		case err != nil:
			g.logger.Error("set override failed", "user_id", userID, "tool", req.Tool, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// writeGateError maps gate errors to HTTP statuses.
func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tool.ErrUnknownTool):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, tool.ErrInvalidArguments):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
