package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"rafyaudit/internal/checklist"
	"rafyaudit/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "dashboard", "form", "detail", "delete", "loading"}

type templates map[string]*template.Template

var funcs = template.FuncMap{
	"conforme": func(s checklist.Status) bool { return s == checklist.Conforme },
	"imageURI": imageURI,
	"add":      func(a, b int) int { return a + b },
}

// imageURI lets data:image URIs through html/template; anything else is dropped.
func imageURI(s *string) template.URL {
	if s == nil || !strings.HasPrefix(*s, "data:image/") {
		return ""
	}
	return template.URL(*s)
}

func loadTemplates() (templates, error) {
	t := make(templates, len(pageNames))
	for _, name := range pageNames {
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		t[name] = tpl
	}
	return t, nil
}

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

const (
	flashSuccess = "success"
	flashError   = "error"
)

type page struct {
	Title   string
	User    *models.User
	Flashes []Flash
	Data    any
}

// flash queues a notification and saves the cookie. Call before writing the response.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	st := stateFrom(r)
	st.cookie.AddFlash(msg, kind)
	if err := st.cookie.Save(r, w); err != nil {
		st.logger.Warn("save flash", zap.Error(err))
	}
}

// redirectWith queues a notification and redirects with 303.
func (s *Server) redirectWith(w http.ResponseWriter, r *http.Request, target, kind, msg string) {
	s.flash(w, r, kind, msg)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	st := stateFrom(r)
	if st == nil {
		return nil
	}
	var out []Flash
	for _, kind := range []string{flashError, flashSuccess} {
		for _, v := range st.cookie.Flashes(kind) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := st.cookie.Save(r, w); err != nil {
			st.logger.Warn("save session", zap.Error(err))
		}
	}
	return out
}

// render executes a page inside the layout. extra flashes are shown after the queued ones.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, extra ...Flash) {
	p := page{Title: title, Data: data}
	if st := stateFrom(r); st != nil {
		p.User = st.session.User()
	}
	p.Flashes = append(s.takeFlashes(w, r), extra...)

	var buf bytes.Buffer
	if err := s.pages[name].Execute(&buf, p); err != nil {
		s.logger.Error("render", zap.String("page", name), zap.Error(err))
		http.Error(w, "Erreur interne", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `<!doctype html><title>Page introuvable</title><p>Page introuvable. <a href="/">Retour au tableau de bord</a></p>`)
}
