package web

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rafyaudit/internal/backend"
	"rafyaudit/internal/checklist"
	"rafyaudit/internal/dashboard"
	"rafyaudit/internal/guard"
	"rafyaudit/internal/models"
)

const loginFailed = "Échec de la connexion"

type loginView struct {
	Email string
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", "Connexion", loginView{})
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.render(w, r, http.StatusOK, "login", "Connexion", loginView{Email: email},
			Flash{Kind: flashError, Message: "Email et mot de passe requis"})
		return
	}
	user, err := st.session.Login(r.Context(), email, password)
	if err != nil {
		st.logger.Info("login failed", zap.String("email", email), zap.Error(err))
		msg := backend.Detail(err)
		if msg == "" {
			msg = loginFailed
		}
		s.render(w, r, http.StatusOK, "login", "Connexion", loginView{Email: email},
			Flash{Kind: flashError, Message: msg})
		return
	}
	s.redirectWith(w, r, guard.HomeRoute, flashSuccess, "Bienvenue, "+user.Name)
}

// logout forgets the token and any open draft. The backend is not called.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	s.dropDraft(r)
	if err := st.session.Logout(); err != nil {
		st.logger.Warn("logout", zap.Error(err))
	}
	s.redirectWith(w, r, guard.LoginRoute, flashSuccess, "Vous êtes déconnecté")
}

type dashboardView struct {
	Stats  dashboard.Stats
	Query  string
	Audits []models.AuditRecord
	// Empty is the message shown when Audits is empty.
	Empty string
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	audits, err := st.client.ListAudits(r.Context())
	if err != nil {
		st.logger.Warn("list audits", zap.Error(err))
		s.render(w, r, http.StatusOK, "dashboard", "Tableau de bord",
			dashboardView{Query: q, Empty: "Aucun audit à afficher"},
			Flash{Kind: flashError, Message: backendMessage("Erreur lors du chargement des audits", err)})
		return
	}
	v := dashboardView{
		Stats:  dashboard.Compute(audits),
		Query:  q,
		Audits: dashboard.Filter(audits, q),
	}
	switch {
	case len(audits) == 0:
		v.Empty = "Aucun audit pour le moment. Créez votre premier audit."
	case len(v.Audits) == 0:
		v.Empty = "Aucun audit ne correspond à « " + q + " »"
	}
	s.render(w, r, http.StatusOK, "dashboard", "Tableau de bord", v)
}

type categoryView struct {
	Name    string
	Summary checklist.Summary
	Items   []itemView
}

type itemView struct {
	Key     string
	Label   string
	Status  checklist.Status
	Comment string
}

type photoView struct {
	Key   string
	Label string
	URI   *string
}

type detailView struct {
	Audit      models.AuditRecord
	Categories []categoryView
	Photos     []photoView
	Signatures []photoView
}

func (s *Server) categories(entries checklist.Entries) []categoryView {
	out := make([]categoryView, 0, len(s.schema.Categories))
	for _, c := range s.schema.Categories {
		cv := categoryView{Name: c.Name, Summary: s.schema.Summary(c, entries)}
		for _, it := range c.Items {
			e := entries.Get(it.Key)
			cv.Items = append(cv.Items, itemView{Key: it.Key, Label: it.Label, Status: e.Status, Comment: e.Comment})
		}
		out = append(out, cv)
	}
	return out
}

func photos(a *models.AuditRecord) []photoView {
	out := make([]photoView, 0, len(models.PhotoSlots))
	for _, p := range models.PhotoSlots {
		out = append(out, photoView{Key: p.Key, Label: p.Label, URI: *a.Photo(p.Key)})
	}
	return out
}

func signatures(a *models.AuditRecord) []photoView {
	return []photoView{
		{Key: models.SignatureCommercial, Label: "Signature Commercial", URI: a.SignatureCommercial},
		{Key: models.SignatureControleur, Label: "Signature Contrôleur", URI: a.SignatureControleur},
	}
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := mux.Vars(r)["id"]
	a, err := st.client.GetAudit(r.Context(), id)
	if err != nil {
		st.logger.Warn("get audit", zap.String("id", id), zap.Error(err))
		s.redirectWith(w, r, guard.HomeRoute, flashError, backendMessage("Impossible de charger l'audit", err))
		return
	}
	v := detailView{
		Audit:      a,
		Categories: s.categories(a.Checklist),
		Photos:     photos(&a),
		Signatures: signatures(&a),
	}
	s.render(w, r, http.StatusOK, "detail", "Audit "+a.CommercialControle, v)
}

// downloadPDF streams the backend PDF under a name built from the audit.
func (s *Server) downloadPDF(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := mux.Vars(r)["id"]
	back := "/audit/" + id
	a, err := st.client.GetAudit(r.Context(), id)
	if err != nil {
		s.redirectWith(w, r, guard.HomeRoute, flashError, backendMessage("Impossible de charger l'audit", err))
		return
	}
	pdf, err := st.client.AuditPDF(r.Context(), id)
	if err != nil {
		st.logger.Warn("download pdf", zap.String("id", id), zap.Error(err))
		s.redirectWith(w, r, back, flashError, backendMessage("Erreur lors du téléchargement du PDF", err))
		return
	}
	defer pdf.Body.Close()

	name := dashboard.PDFFilename(a.CommercialControle, a.DateControle)
	w.Header().Set("Content-Type", pdf.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if pdf.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(pdf.Length, 10))
	}
	if _, err := io.Copy(w, pdf.Body); err != nil {
		st.logger.Warn("stream pdf", zap.String("id", id), zap.Error(err))
	}
}

func (s *Server) confirmDelete(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := mux.Vars(r)["id"]
	a, err := st.client.GetAudit(r.Context(), id)
	if err != nil {
		s.redirectWith(w, r, guard.HomeRoute, flashError, backendMessage("Impossible de charger l'audit", err))
		return
	}
	s.render(w, r, http.StatusOK, "delete", "Supprimer l'audit", a)
}

// deleteAudit removes the audit once the backend acknowledges it.
func (s *Server) deleteAudit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := mux.Vars(r)["id"]
	if err := st.client.DeleteAudit(r.Context(), id); err != nil {
		st.logger.Warn("delete audit", zap.String("id", id), zap.Error(err))
		s.redirectWith(w, r, guard.HomeRoute, flashError, backendMessage("Erreur lors de la suppression", err))
		return
	}
	st.logger.Info("audit deleted", zap.String("id", id))
	s.redirectWith(w, r, guard.HomeRoute, flashSuccess, "Audit supprimé")
}

// backendMessage appends the backend detail to a user message when there is one.
func backendMessage(msg string, err error) string {
	if d := backend.Detail(err); d != "" {
		return msg + " : " + d
	}
	return msg
}
