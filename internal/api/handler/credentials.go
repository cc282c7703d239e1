package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/keygate/internal/api/response"
	"github.com/kiranshivaraju/keygate/internal/credential"
	"github.com/kiranshivaraju/keygate/internal/export"
	"github.com/kiranshivaraju/keygate/pkg/models"
)

const (
	issuedFilePrefix = "issued_keys"
	listFilePrefix   = "credentials"
)

// CredentialAdmin defines the administrative operations the handlers depend on.
type CredentialAdmin interface {
	Issue(ctx context.Context, p credential.IssueParams) ([]models.IssuedCredential, error)
	List(ctx context.Context) ([]*models.Credential, error)
	SetState(ctx context.Context, id int64, action credential.Action) error
	Now() time.Time
}

type issueRequest struct {
	Count        int    `json:"count"`
	ValidityDays int    `json:"validity_days"`
	OneTime      bool   `json:"one_time"`
	Tag          string `json:"tag"`
	IssuedTo     string `json:"issued_to"`
}

type issueResponse struct {
	Requested   int                       `json:"requested"`
	Issued      int                       `json:"issued"`
	Credentials []models.IssuedCredential `json:"credentials"`
}

// NewIssueHandler returns an http.HandlerFunc for POST /api/v1/admin/credentials.
//
// Plaintexts exist only in this response, so a batch that failed part way is
// still delivered; the shortfall shows in issued < requested.
func NewIssueHandler(svc CredentialAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "format must be one of json, csv, xlsx", nil)
			return
		}

		var req issueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		issued, err := svc.Issue(r.Context(), credential.IssueParams{
			Count:        req.Count,
			ValidityDays: req.ValidityDays,
			OneTime:      req.OneTime,
			Tag:          req.Tag,
			IssuedTo:     req.IssuedTo,
		})
		switch {
		case errors.Is(err, credential.ErrInvalidCount), errors.Is(err, credential.ErrInvalidValidity):
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		case err != nil && len(issued) == 0:
			slog.Error("issue credentials failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		case err != nil:
			slog.Error("issue credentials stopped early", "requested", req.Count, "issued", len(issued), "error", err)
		}

		if format == export.FormatJSON {
			response.Created(w, issueResponse{
				Requested:   req.Count,
				Issued:      len(issued),
				Credentials: issued,
			})
			return
		}

		var buf bytes.Buffer
		if format == export.FormatXLSX {
			err = export.WriteIssuedXLSX(&buf, issued)
		} else {
			err = export.WriteIssuedCSV(&buf, issued)
		}
		if err != nil {
			slog.Error("render issued credentials", "format", string(format), "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render export", nil)
			return
		}
		response.Attachment(w, http.StatusCreated, format.ContentType(),
			export.Filename(issuedFilePrefix, svc.Now(), format), buf.Bytes())
	}
}

type credentialView struct {
	*models.Credential
	Status string `json:"status"`
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/admin/credentials.
func NewListHandler(svc CredentialAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil || format == export.FormatXLSX {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "format must be one of json, csv", nil)
			return
		}

		creds, err := svc.List(r.Context())
		if err != nil {
			slog.Error("list credentials failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		now := svc.Now()

		if format == export.FormatCSV {
			var buf bytes.Buffer
			if err := export.WriteListCSV(&buf, creds, now); err != nil {
				slog.Error("render credential list", "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render export", nil)
				return
			}
			response.Attachment(w, http.StatusOK, format.ContentType(),
				export.Filename(listFilePrefix, now, format), buf.Bytes())
			return
		}

		views := make([]credentialView, 0, len(creds))
		for _, c := range creds {
			views = append(views, credentialView{Credential: c, Status: c.Status(now)})
		}
		response.JSON(w, views)
	}
}

// NewSetStateHandler returns an http.HandlerFunc for
// POST /api/v1/admin/credentials/{id}/state.
func NewSetStateHandler(svc CredentialAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := credentialID(w, r)
		if !ok {
			return
		}

		var req struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		action, err := credential.ParseAction(req.Action)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"action must be one of revoke, reinstate, delete", nil)
			return
		}

		if !applyState(w, r, svc, id, action) {
			return
		}
		response.JSON(w, map[string]any{
			"id":     id,
			"action": action,
		})
	}
}

// NewDeleteHandler returns an http.HandlerFunc for
// DELETE /api/v1/admin/credentials/{id}.
func NewDeleteHandler(svc CredentialAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := credentialID(w, r)
		if !ok {
			return
		}
		if applyState(w, r, svc, id, credential.ActionDelete) {
			response.NoContent(w)
		}
	}
}

func credentialID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func applyState(w http.ResponseWriter, r *http.Request, svc CredentialAdmin, id int64, action credential.Action) bool {
	err := svc.SetState(r.Context(), id, action)
	switch {
	case err == nil:
		return true
	case errors.Is(err, credential.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", credential.ErrNotFound.Error(), nil)
	case errors.Is(err, credential.ErrUnknownAction):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		slog.Error("change credential state failed", "credential_id", id, "action", string(action), "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
	return false
}
