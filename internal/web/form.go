package web

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rafyaudit/internal/auditform"
	"rafyaudit/internal/backend"
	"rafyaudit/internal/checklist"
	"rafyaudit/internal/files"
	"rafyaudit/internal/guard"
)

const (
	draftKey    = "draft_id"
	formRoute   = "/audit/new"
	maxFormBody = 2*auditform.MaxImageSize + 1<<20
)

type formView struct {
	Form        *auditform.Form
	Categories  []categoryView
	Photos      []photoView
	Signatures  []photoView
	MaxImageMiB int
}

// loadDraft returns the form of the current draft, or nil when there is none.
func (s *Server) loadDraft(r *http.Request) (*auditform.Form, string) {
	st := stateFrom(r)
	id, _ := st.cookie.Values[draftKey].(string)
	if id == "" {
		return nil, ""
	}
	var f auditform.Form
	if err := s.drafts.Load(id, &f); err != nil {
		if !errors.Is(err, files.ErrDraftNotFound) {
			st.logger.Info("draft unusable", zap.String("draft", id), zap.Error(err))
		}
		return nil, id
	}
	return &f, id
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request, id string, f *auditform.Form) error {
	st := stateFrom(r)
	if id == "" {
		id = s.drafts.NewID()
	}
	if err := s.drafts.Save(id, f); err != nil {
		return err
	}
	if cur, _ := st.cookie.Values[draftKey].(string); cur != id {
		st.cookie.Values[draftKey] = id
		return st.cookie.Save(r, w)
	}
	return nil
}

// dropDraft deletes the draft file and forgets its id. The caller saves the cookie.
func (s *Server) dropDraft(r *http.Request) {
	st := stateFrom(r)
	id, _ := st.cookie.Values[draftKey].(string)
	if id == "" {
		return
	}
	if err := s.drafts.Delete(id); err != nil {
		st.logger.Warn("delete draft", zap.String("draft", id), zap.Error(err))
	}
	delete(st.cookie.Values, draftKey)
}

// formPage shows the current step, starting a draft and fetching the
// selection lists when none is open.
func (s *Server) formPage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	f, id := s.loadDraft(r)
	var extra []Flash
	if f == nil {
		f = auditform.New(s.schema, s.now())
		if err := f.LoadLists(r.Context(), st.client); err != nil {
			st.logger.Warn("load selection lists", zap.Error(err))
			extra = append(extra, Flash{Kind: flashError, Message: "Impossible de charger les listes de commerciaux et contrôleurs"})
		}
		id = ""
		if err := s.saveDraft(w, r, id, f); err != nil {
			st.logger.Error("save draft", zap.Error(err))
			extra = append(extra, Flash{Kind: flashError, Message: "Le brouillon n'a pas pu être enregistré"})
		}
	}
	v := formView{
		Form:        f,
		Categories:  s.categories(f.Record.Checklist),
		Photos:      photos(&f.Record),
		Signatures:  signatures(&f.Record),
		MaxImageMiB: auditform.MaxImageSize >> 20,
	}
	s.render(w, r, http.StatusOK, "form", "Nouvel audit", v, extra...)
}

// formAction applies one user action to the draft, then redirects back to the form.
func (s *Server) formAction(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	f, id := s.loadDraft(r)
	if f == nil {
		s.redirectWith(w, r, formRoute, flashError, "Le brouillon a expiré, le formulaire a été réinitialisé")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	action := mux.Vars(r)["action"]

	if action == "reset" {
		s.dropDraft(r)
		s.redirectWith(w, r, formRoute, flashSuccess, "Formulaire réinitialisé")
		return
	}
	if action == "submit" {
		s.submit(w, r, f, id)
		return
	}

	if !formActions[action] {
		s.notFound(w, r)
		return
	}
	// a failed validation leaves the draft as it was
	if err := s.apply(r, f, action); err != nil {
		st.logger.Info("form action rejected", zap.String("action", action), zap.Error(err))
		s.flash(w, r, flashError, userMessage(err))
	} else if err := s.saveDraft(w, r, id, f); err != nil {
		st.logger.Error("save draft", zap.Error(err))
		s.redirectWith(w, r, formRoute, flashError, "Le brouillon n'a pas pu être enregistré")
		return
	}
	http.Redirect(w, r, formRoute, http.StatusSeeOther)
}

var formActions = map[string]bool{
	"save": true, "next": true, "previous": true, "general": true,
	"status": true, "comment": true, "toggle": true,
	"photo": true, "photo-remove": true, "signature": true, "signature-clear": true,
}

// apply keeps every field posted with the current step, then runs the action.
func (s *Server) apply(r *http.Request, f *auditform.Form, action string) error {
	if err := s.applyStep(r, f); err != nil {
		return err
	}
	switch action {
	case "next":
		f.Next()
	case "previous":
		f.Previous()
	case "general":
		return f.SetGeneral(generalFrom(r))
	case "status":
		return f.SetStatus(r.PostFormValue("key"), checklist.Status(r.PostFormValue("status")))
	case "comment":
		return f.SetComment(r.PostFormValue("key"), r.PostFormValue("comment"))
	case "toggle":
		f.ToggleCategory(r.PostFormValue("category"))
	case "photo":
		return attachPhoto(r, f)
	case "photo-remove":
		return f.RemovePhoto(r.PostFormValue("slot"))
	case "signature":
		who := r.PostFormValue("who")
		if r.PostFormValue("clear") != "" {
			return f.ClearSignature(who)
		}
		return f.SaveSignature(who, signatureData(r, who))
	case "signature-clear":
		return f.ClearSignature(r.PostFormValue("who"))
	}
	return nil
}

// signatureData reads "data", or "data_<who>" when the pads share one form.
func signatureData(r *http.Request, who string) string {
	if v, ok := r.PostForm["data"]; ok && len(v) > 0 {
		return v[0]
	}
	return r.PostFormValue("data_" + who)
}

func generalFrom(r *http.Request) auditform.General {
	return auditform.General{
		Date:       r.PostFormValue("date_controle"),
		Time:       r.PostFormValue("heure"),
		Location:   r.PostFormValue("lieu"),
		Commercial: r.PostFormValue("commercial_controle"),
		Controller: r.PostFormValue("controleur_interne"),
	}
}

// parseBody reads url-encoded and multipart bodies alike.
func parseBody(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(auditform.MaxImageSize + 1<<20)
	}
	return r.ParseForm()
}

// applyStep saves the fields posted with the current step.
func (s *Server) applyStep(r *http.Request, f *auditform.Form) error {
	if err := parseBody(r); err != nil {
		return err
	}
	switch f.Step {
	case auditform.StepGeneral:
		if _, ok := r.PostForm["date_controle"]; ok {
			return f.SetGeneral(generalFrom(r))
		}
	case auditform.StepChecklist:
		for _, key := range s.schema.Keys() {
			if v, ok := r.PostForm["status_"+key]; ok && len(v) > 0 {
				if err := f.SetStatus(key, checklist.Status(v[0])); err != nil {
					return err
				}
			}
			if v, ok := r.PostForm["comment_"+key]; ok && len(v) > 0 {
				if err := f.SetComment(key, v[0]); err != nil {
					return err
				}
			}
		}
	case auditform.StepMedia:
		if _, ok := r.PostForm["observations"]; ok {
			f.SetNotes(r.PostFormValue("observations"), r.PostFormValue("actions_correctives"))
		}
	}
	return nil
}

func attachPhoto(r *http.Request, f *auditform.Form) error {
	if err := r.ParseMultipartForm(auditform.MaxImageSize + 1<<20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return auditform.ErrImageTooLarge
		}
		return err
	}
	slot := r.FormValue("slot")
	file, hdr, err := r.FormFile("file_" + slot)
	if errors.Is(err, http.ErrMissingFile) {
		file, hdr, err = r.FormFile("file")
	}
	if err != nil {
		return auditform.ErrNotAnImage
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, auditform.MaxImageSize+1))
	if err != nil {
		return err
	}
	return f.AttachPhoto(slot, hdr.Header.Get("Content-Type"), data)
}

// submit sends the audit. Validation failures never reach the backend.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, f *auditform.Form, id string) {
	st := stateFrom(r)
	if err := s.applyStep(r, f); err != nil {
		s.flash(w, r, flashError, userMessage(err))
		http.Redirect(w, r, formRoute, http.StatusSeeOther)
		return
	}
	if err := s.drafts.Save(id, f); err != nil {
		st.logger.Warn("save draft before submit", zap.Error(err))
	}
	created, err := f.Submit(r.Context(), st.client)
	if err != nil {
		if msg := auditform.Message(err); msg != "" {
			s.flash(w, r, flashError, msg)
		} else {
			st.logger.Warn("create audit", zap.Error(err))
			s.flash(w, r, flashError, backendMessage("Erreur lors de l'enregistrement de l'audit", err))
		}
		http.Redirect(w, r, formRoute, http.StatusSeeOther)
		return
	}
	st.logger.Info("audit created", zap.String("id", created.ID), zap.String("commercial", created.CommercialControle))
	s.dropDraft(r)
	s.redirectWith(w, r, guard.HomeRoute, flashSuccess, "Audit enregistré avec succès")
}

func userMessage(err error) string {
	if msg := auditform.Message(err); msg != "" {
		return msg
	}
	if errors.Is(err, checklist.ErrUnknownKey) {
		return "Point de contrôle inconnu"
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return auditform.Message(auditform.ErrImageTooLarge)
	}
	return "Requête invalide"
}

var (
	_ auditform.Directory = (*backend.Client)(nil)
	_ auditform.Creator   = (*backend.Client)(nil)
)
