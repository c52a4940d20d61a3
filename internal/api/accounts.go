package api

import (
	"database/sql"
	"net/http"

	"github.com/aloe-labs/linkguard/internal/store"
	"go.uber.org/zap"
)

func (d *Dependencies) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	var req CreateAccountReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}

	account, plainKey, err := d.Store.CreateAccount(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("failed to create account", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create account"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateAccountResp{
		ID:           account.ID,
		Name:         account.Name,
		APIKey:       plainKey,
		APIKeyPrefix: account.APIKeyPrefix,
		CreatedAt:    account.CreatedAt,
	})
}

func (d *Dependencies) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	accounts, err := d.Store.ListAccounts(r.Context())
	if err != nil {
		d.Logger.Error("failed to list accounts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list accounts"})
		return
	}

	resp := make([]AccountResp, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, accountToResp(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("account_id")
	account, err := d.Store.GetAccount(r.Context(), id)
	if err != nil {
		d.Logger.Error("failed to get account", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get account"})
		return
	}
	if account == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Account not found."})
		return
	}
	writeJSON(w, http.StatusOK, accountToResp(account))
}

func (d *Dependencies) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("account_id")

	var req UpdateAccountReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name != nil && (len(*req.Name) == 0 || len(*req.Name) > 255) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}

	account, err := d.Store.UpdateAccount(r.Context(), id, store.UpdateAccountParams{
		Name: req.Name,
	})
	if err != nil {
		d.Logger.Error("failed to update account", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update account"})
		return
	}
	if account == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Account not found."})
		return
	}
	writeJSON(w, http.StatusOK, accountToResp(account))
}

func (d *Dependencies) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("account_id")
	err := d.Store.DeleteAccount(r.Context(), id)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Account not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to delete account", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete account"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("account_id")
	account, plainKey, err := d.Store.RotateAPIKey(r.Context(), id)
	if err != nil {
		d.Logger.Error("failed to rotate key", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate API key"})
		return
	}
	writeJSON(w, http.StatusOK, RotateKeyResp{
		APIKey:       plainKey,
		APIKeyPrefix: account.APIKeyPrefix,
	})
}

func accountToResp(a *store.Account) AccountResp {
	return AccountResp{
		ID:           a.ID,
		Name:         a.Name,
		APIKeyPrefix: a.APIKeyPrefix,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
