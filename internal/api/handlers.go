package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rafyaudit/internal/checklist"
	"rafyaudit/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler exchanges credentials for a token.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	resp, err := s.store.Login(req.Email, req.Password)
	if err != nil {
		s.logger.Info("login refused", zap.String("email", req.Email))
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MeHandler returns the profile behind the bearer token.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	_, tok, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	u, ok := s.store.Authenticate(strings.TrimSpace(tok))
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) ListAuditsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

// CreateAuditHandler stores a new audit. The overall result is taken as sent.
func (s *Server) CreateAuditHandler(w http.ResponseWriter, r *http.Request) {
	var rec models.AuditRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body: "+err.Error())
		return
	}
	if msg := validate(rec); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	created := s.store.Create(rec)
	s.logger.Info("audit created", zap.String("id", created.ID), zap.String("commercial", created.CommercialControle))
	writeJSON(w, http.StatusOK, created)
}

func validate(rec models.AuditRecord) string {
	switch {
	case strings.TrimSpace(rec.DateControle) == "":
		return "date_controle requis"
	case strings.TrimSpace(rec.CommercialControle) == "":
		return "commercial_controle requis"
	case strings.TrimSpace(rec.ControleurInterne) == "":
		return "controleur_interne requis"
	}
	if _, err := checklist.ParseStatus(string(rec.ResultatGlobal)); err != nil {
		return "resultat_global invalide"
	}
	return ""
}

func (s *Server) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Audit introuvable")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) DeleteAuditHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, ErrAuditNotFound) {
			writeDetail(w, http.StatusNotFound, "Audit introuvable")
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("audit deleted", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

// AuditPDFHandler renders a one-page summary PDF of the audit.
func (s *Server) AuditPDFHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Audit introuvable")
		return
	}
	doc := RenderPDF(rec)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=PV_Audit_"+rec.CommercialControle+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.Write(doc)
}

func (s *Server) CommercialsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Commercials())
}

func (s *Server) ControllersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Controllers())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
