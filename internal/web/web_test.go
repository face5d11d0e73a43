package web

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"rafyaudit/internal/api"
	"rafyaudit/internal/auditform"
	"rafyaudit/internal/backend"
	"rafyaudit/internal/checklist"
	"rafyaudit/internal/files"
	"rafyaudit/internal/models"
)

type harness struct {
	t       *testing.T
	api     *api.Server
	web     *httptest.Server
	browser *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	apiSrv := api.NewServer(api.NewStore(api.DefaultConfig()), nil)
	apiTS := httptest.NewServer(apiSrv.NewRouter("/api"))
	t.Cleanup(apiTS.Close)

	secret := bytes.Repeat([]byte{7}, 32)
	cookies, err := NewCookieStore(secret, false, 3600)
	require.NoError(t, err)
	drafts, err := files.NewDraftStore(t.TempDir(), bytes.Repeat([]byte{9}, 32), time.Hour)
	require.NoError(t, err)

	s, err := New(Options{
		Backend: backend.New(apiTS.URL + "/api"),
		Cookies: cookies,
		Drafts:  drafts,
		Now:     func() time.Time { return time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	webTS := httptest.NewServer(s.NewRouter())
	t.Cleanup(webTS.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{t: t, api: apiSrv, web: webTS, browser: &http.Client{Jar: jar}}
}

// fetchedPage is a fetched and parsed response.
type fetchedPage struct {
	path string
	code int
	body string
	doc  *html.Node
}

func (h *harness) finish(resp *http.Response, err error) fetchedPage {
	h.t.Helper()
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	p := fetchedPage{path: resp.Request.URL.Path, code: resp.StatusCode, body: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		p.doc, err = html.Parse(bytes.NewReader(raw))
		require.NoError(h.t, err)
	}
	return p
}

func (h *harness) get(path string) fetchedPage {
	return h.finish(h.browser.Get(h.web.URL + path))
}

func (h *harness) post(path string, form url.Values) fetchedPage {
	return h.finish(h.browser.PostForm(h.web.URL+path, form))
}

func (h *harness) login() fetchedPage {
	return h.post("/login", url.Values{"email": {"direction@rafygold.com"}, "password": {"dev"}})
}

func (h *harness) seed(commercial, lieu, controller string, res checklist.Status) models.AuditRecord {
	entries := checklist.Default().NewEntries()
	return h.api.Store().Create(models.AuditRecord{
		DateControle: "2026-05-20", Heure: "10:00", Lieu: lieu,
		CommercialControle: commercial, ControleurInterne: controller,
		Checklist: entries, ResultatGlobal: res,
	})
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, "id") == id }
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func toasts(p fetchedPage) []string {
	var out []string
	for _, n := range findAll(p.doc, hasClass("toast")) {
		out = append(out, text(n))
	}
	return out
}

func rows(p fetchedPage) []string {
	var ids []string
	for _, n := range findAll(p.doc, hasClass("audit")) {
		ids = append(ids, attr(n, "data-id"))
	}
	return ids
}

func TestLoginDashboardLogout(t *testing.T) {
	h := newHarness(t)
	a := h.seed("Julien Martin", "Paris", "Direction", checklist.Conforme)
	b := h.seed("Sophie Bernard", "Lyon", "Direction", checklist.NonConforme)

	p := h.get("/")
	assert.Equal(t, "/login", p.path)

	p = h.login()
	require.Equal(t, "/", p.path)
	assert.Contains(t, toasts(p), "Bienvenue, DIRECTION")
	assert.Equal(t, []string{b.ID, a.ID}, rows(p))
	assert.Equal(t, "Total audits 2", text(findAll(p.doc, byID("stat-total"))[0]))
	assert.Equal(t, "Taux de conformité 50%", text(findAll(p.doc, byID("stat-rate"))[0]))

	p = h.get("/login")
	assert.Equal(t, "/", p.path, "authenticated users are sent home")

	before := h.api.TotalCalls()
	p = h.post("/logout", nil)
	assert.Equal(t, "/login", p.path)
	assert.Contains(t, toasts(p), "Vous êtes déconnecté")
	assert.Equal(t, before, h.api.TotalCalls(), "logout never reaches the backend")

	p = h.get("/")
	assert.Equal(t, "/login", p.path)
}

func TestLoginFailureShowsBackendDetail(t *testing.T) {
	h := newHarness(t)
	p := h.post("/login", url.Values{"email": {"direction@rafygold.com"}, "password": {"nope"}})
	assert.Equal(t, "/login", p.path)
	assert.Equal(t, []string{"Unauthorized"}, toasts(p))
	inputs := findAll(p.doc, func(n *html.Node) bool { return n.Data == "input" && attr(n, "name") == "email" })
	require.Len(t, inputs, 1)
	assert.Equal(t, "direction@rafygold.com", attr(inputs[0], "value"))

	p = h.get("/")
	assert.Equal(t, "/login", p.path)
}

func TestDashboardEmptyStatesAndSearch(t *testing.T) {
	h := newHarness(t)
	h.login()
	p := h.get("/")
	assert.Equal(t, "Aucun audit pour le moment. Créez votre premier audit.", text(findAll(p.doc, hasClass("empty"))[0]))
	assert.Equal(t, "Taux de conformité 0%", text(findAll(p.doc, byID("stat-rate"))[0]))

	h.seed("Julien Martin", "Paris", "Direction", checklist.Conforme)
	target := h.seed("Sophie Bernard", "Lyon", "Hélène Roux", checklist.NonConforme)
	h.seed("Karim Haddad", "Marseille", "Direction", checklist.Conforme)

	p = h.get("/?q=" + url.QueryEscape("HÉLÈNE"))
	assert.Equal(t, []string{target.ID}, rows(p))
	assert.Equal(t, "Total audits 3", text(findAll(p.doc, byID("stat-total"))[0]), "counters cover the whole list")

	p = h.get("/?q=Nantes")
	assert.Empty(t, rows(p))
	assert.Contains(t, text(findAll(p.doc, hasClass("empty"))[0]), "Nantes")
}

func TestDetailPDFAndDelete(t *testing.T) {
	h := newHarness(t)
	a := h.seed("Julien Martin", "Paris", "Direction", checklist.NonConforme)
	h.login()

	p := h.get("/audit/" + a.ID)
	require.Equal(t, "/audit/"+a.ID, p.path)
	summaries := findAll(p.doc, hasClass("summary"))
	require.Len(t, summaries, 3)
	assert.Equal(t, "0/13", text(summaries[0]))
	assert.Equal(t, "0/10", text(summaries[1]))
	assert.Contains(t, p.body, "Aucune photo jointe")
	assert.Contains(t, p.body, "Non fournie")

	resp, err := h.browser.Get(h.web.URL + "/audit/" + a.ID + "/pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="PV_Audit_Julien Martin_2026-05-20.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	p = h.get("/audit/" + a.ID + "/delete")
	assert.Contains(t, p.body, "Confirmer la suppression")
	_, err = h.api.Store().Get(a.ID)
	require.NoError(t, err, "confirmation page deletes nothing")

	p = h.post("/audit/"+a.ID+"/delete", nil)
	assert.Equal(t, "/", p.path)
	assert.Contains(t, toasts(p), "Audit supprimé")
	assert.Empty(t, rows(p))

	p = h.get("/audit/" + a.ID)
	assert.Equal(t, "/", p.path)
	assert.Contains(t, toasts(p), "Impossible de charger l'audit : Audit introuvable")
}

func fillGeneral(h *harness) fetchedPage {
	h.get("/audit/new")
	return h.post("/audit/new/next", url.Values{
		"date_controle":       {"2026-06-01"},
		"heure":               {"09:30"},
		"lieu":                {"Agence Lyon"},
		"commercial_controle": {"Sophie Bernard"},
		"controleur_interne":  {"Direction"},
	})
}

func step(p fetchedPage) string {
	return text(findAll(p.doc, byID("step"))[0])
}

func TestFormNavigation(t *testing.T) {
	h := newHarness(t)
	h.login()

	p := h.get("/audit/new")
	assert.Equal(t, "Étape 1 / 3", step(p))
	dates := findAll(p.doc, func(n *html.Node) bool { return attr(n, "name") == "date_controle" })
	require.Len(t, dates, 1)
	assert.Equal(t, "2026-06-01", attr(dates[0], "value"))
	assert.Equal(t, 1, h.api.Calls(backend.EndpointCommercials))

	p = h.post("/audit/new/next", url.Values{
		"date_controle": {"2026-06-01"}, "commercial_controle": {"Sophie Bernard"}, "controleur_interne": {"Personne"},
	})
	assert.Equal(t, "Étape 1 / 3", step(p))
	assert.Contains(t, toasts(p), "Contrôleur inconnu")

	p = fillGeneral(h)
	assert.Equal(t, "Étape 2 / 3", step(p))
	assert.Equal(t, 1, h.api.Calls(backend.EndpointCommercials), "lists are fetched once per form")

	key := checklist.Default().Keys()[0]
	p = h.post("/audit/new/status", url.Values{"key": {key}, "status": {"CONFORME"}})
	assert.Equal(t, "1/13", text(findAll(p.doc, hasClass("summary"))[0]))
	assert.Contains(t, text(findAll(p.doc, byID("resultat-global"))[0]), "NON CONFORME")

	p = h.post("/audit/new/toggle", url.Values{"category": {"Achats"}})
	items := findAll(p.doc, func(n *html.Node) bool { return n.Data == "li" && attr(n, "data-key") == "verification_etat_valise" })
	assert.Empty(t, items, "collapsed category hides its items")

	p = h.post("/audit/new/next", nil)
	assert.Equal(t, "Étape 3 / 3", step(p))
	p = h.post("/audit/new/next", nil)
	assert.Equal(t, "Étape 3 / 3", step(p))
	p = h.post("/audit/new/previous", url.Values{"observations": {"RAS"}, "actions_correctives": {""}})
	assert.Equal(t, "Étape 2 / 3", step(p))

	p = h.post("/audit/new/reset", nil)
	assert.Equal(t, "Étape 1 / 3", step(p))
	assert.Equal(t, 2, h.api.Calls(backend.EndpointCommercials))
}

func TestSubmitWithoutSignaturesIsRejectedLocally(t *testing.T) {
	h := newHarness(t)
	h.login()
	fillGeneral(h)
	h.post("/audit/new/next", nil)

	sig := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n0000"))
	p := h.post("/audit/new/signature", url.Values{"who": {models.SignatureCommercial}, "data": {""}})
	assert.Contains(t, toasts(p), "Veuillez signer avant d'enregistrer")

	h.post("/audit/new/signature", url.Values{"who": {models.SignatureCommercial}, "data": {sig}})
	p = h.post("/audit/new/submit", url.Values{"observations": {"RAS"}, "actions_correctives": {""}})
	assert.Equal(t, "/audit/new", p.path)
	assert.Contains(t, toasts(p), "Les deux signatures sont requises")
	assert.Zero(t, h.api.Calls(backend.EndpointCreateAudit))
	assert.Equal(t, "Étape 3 / 3", step(p), "form stays populated")
}

func TestSubmitCreatesAudit(t *testing.T) {
	h := newHarness(t)
	h.login()
	fillGeneral(h)
	for _, key := range checklist.Default().Keys() {
		h.post("/audit/new/status", url.Values{"key": {key}, "status": {"CONFORME"}})
	}
	h.post("/audit/new/next", nil)

	sig := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n0000"))
	h.post("/audit/new/signature", url.Values{"who": {models.SignatureCommercial}, "data": {sig}})
	h.post("/audit/new/signature", url.Values{"who": {models.SignatureControleur}, "data": {sig}})
	p := h.post("/audit/new/submit", url.Values{"observations": {"RAS"}, "actions_correctives": {"Aucune"}})

	require.Equal(t, "/", p.path)
	assert.Contains(t, toasts(p), "Audit enregistré avec succès")
	list := h.api.Store().List()
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "Sophie Bernard", got.CommercialControle)
	assert.Equal(t, "Direction", got.ControleurInterne)
	assert.Equal(t, "Agence Lyon", got.Lieu)
	assert.Equal(t, "RAS", got.Observations)
	assert.Equal(t, checklist.Conforme, got.ResultatGlobal)
	assert.Equal(t, []string{got.ID}, rows(p))

	p = h.get("/audit/new")
	assert.Equal(t, "Étape 1 / 3", step(p), "a new draft starts after submission")
}

func upload(h *harness, slot string, data []byte) fetchedPage {
	return h.postMultipart("/audit/new/photo", url.Values{"slot": {slot}}, "file", data)
}

// postMultipart sends fields plus one file part, the way the step 3 form does.
func (h *harness) postMultipart(path string, fields url.Values, fileField string, data []byte) fetchedPage {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(h.t, mw.WriteField(k, v))
		}
	}
	fw, err := mw.CreateFormFile(fileField, "photo.png")
	require.NoError(h.t, err)
	_, err = fw.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())
	return h.finish(h.browser.Post(h.web.URL+path, mw.FormDataContentType(), &body))
}

func photoImages(p fetchedPage, slot string) []*html.Node {
	var out []*html.Node
	for _, div := range findAll(p.doc, func(n *html.Node) bool { return attr(n, "data-slot") == slot }) {
		out = append(out, findAll(div, func(n *html.Node) bool { return n.Data == "img" })...)
	}
	return out
}

func TestPhotoUpload(t *testing.T) {
	h := newHarness(t)
	h.login()
	fillGeneral(h)
	h.post("/audit/new/next", nil)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	big := append(append([]byte{}, png...), bytes.Repeat([]byte{0}, auditform.MaxImageSize)...)
	p := upload(h, models.PhotoErreur1, big)
	assert.Contains(t, toasts(p), "L'image ne doit pas dépasser 5 Mo")
	assert.Empty(t, photoImages(p, models.PhotoErreur1))

	p = upload(h, models.PhotoErreur1, []byte("just some text"))
	assert.Contains(t, toasts(p), "Le fichier doit être une image")

	p = upload(h, models.PhotoErreur1, png)
	imgs := photoImages(p, models.PhotoErreur1)
	require.Len(t, imgs, 1)
	assert.True(t, strings.HasPrefix(attr(imgs[0], "src"), "data:image/png;base64,"))

	p = h.post("/audit/new/photo-remove", url.Values{"slot": {models.PhotoErreur1}})
	assert.Empty(t, photoImages(p, models.PhotoErreur1))
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	p := h.get("/healthz")
	assert.Equal(t, "OK\n", p.body)

	h.login()
	p = h.get("/metrics")
	assert.Contains(t, p.body, `rafyaudit_backend_requests_total`)
	assert.Contains(t, p.body, `rafyaudit_http_requests_total{method="POST",route="/login",status="303"} 1`)
}

func TestUnknownFormAction(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.get("/audit/new")
	p := h.post("/audit/new/fly", nil)
	assert.Equal(t, http.StatusNotFound, p.code)
}

func named(name string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, "name") == name }
}

func TestChecklistInputsTravelWithNavigation(t *testing.T) {
	h := newHarness(t)
	h.login()
	p := fillGeneral(h)
	key := checklist.Default().Keys()[0]

	form := findAll(p.doc, byID("step-checklist"))
	require.Len(t, form, 1)
	assert.Len(t, findAll(form[0], named("comment_"+key)), 1)
	assert.Len(t, findAll(form[0], named("status_"+key)), 2)

	p = h.post("/audit/new/save", url.Values{"status_" + key: {"CONFORME"}})
	assert.Equal(t, "1/13", text(findAll(p.doc, hasClass("summary"))[0]))

	// a comment typed without pressing OK is kept by next
	p = h.post("/audit/new/next", url.Values{"comment_" + key: {"Valise rayée"}})
	assert.Equal(t, "Étape 3 / 3", step(p))
	p = h.post("/audit/new/previous", url.Values{"observations": {""}, "actions_correctives": {""}})
	comments := findAll(p.doc, named("comment_"+key))
	require.Len(t, comments, 1)
	assert.Equal(t, "Valise rayée", attr(comments[0], "value"))

	p = h.post("/audit/new/toggle", url.Values{"category": {"Achats"}, "comment_" + key: {"Valise neuve"}})
	assert.Equal(t, "Valise neuve", attr(findAll(p.doc, named("comment_"+key))[0], "value"))

	p = h.post("/audit/new/save", url.Values{"comment_unknown": {"x"}, "status_" + key: {"PEUT-ETRE"}})
	assert.NotEmpty(t, toasts(p))
	assert.Equal(t, "1/13", text(findAll(p.doc, hasClass("summary"))[0]), "a rejected status leaves the draft as it was")
}

func TestMediaNotesSurviveSideActions(t *testing.T) {
	h := newHarness(t)
	h.login()
	fillGeneral(h)
	p := h.post("/audit/new/next", nil)
	require.Len(t, findAll(p.doc, byID("step-media")), 1)

	sig := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n0000"))
	form := url.Values{
		"who":                 {models.SignatureCommercial},
		"observations":        {"RAS"},
		"actions_correctives": {"Former l'équipe"},
	}
	form.Set("data_"+models.SignatureCommercial, sig)
	form.Set("data_"+models.SignatureControleur, "")
	p = h.post("/audit/new/signature", form)
	assert.Empty(t, toasts(p))
	obs := findAll(p.doc, named("observations"))
	require.Len(t, obs, 1)
	assert.Equal(t, "RAS", text(obs[0]))
	assert.Equal(t, "Former l'équipe", text(findAll(p.doc, named("actions_correctives"))[0]))
	signed := findAll(p.doc, func(n *html.Node) bool { return attr(n, "data-who") == models.SignatureCommercial })
	require.Len(t, signed, 1)
	assert.Len(t, findAll(signed[0], func(n *html.Node) bool { return n.Data == "img" }), 1)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	p = h.postMultipart("/audit/new/photo", url.Values{
		"slot":         {models.PhotoErreur1},
		"observations": {"RAS, photo jointe"},
	}, "file_"+models.PhotoErreur1, png)
	assert.Len(t, photoImages(p, models.PhotoErreur1), 1)
	assert.Equal(t, "RAS, photo jointe", text(findAll(p.doc, named("observations"))[0]))

	p = h.post("/audit/new/signature-clear", url.Values{"who": {models.SignatureCommercial}, "observations": {"RAS"}})
	signed = findAll(p.doc, func(n *html.Node) bool { return attr(n, "data-who") == models.SignatureCommercial })
	assert.Empty(t, findAll(signed[0], func(n *html.Node) bool { return n.Data == "img" }))
	assert.Equal(t, "RAS", text(findAll(p.doc, named("observations"))[0]))
}

func TestCookieStoreRoundTrip(t *testing.T) {
	secret := bytes.Repeat([]byte{7}, 32)
	cs, err := NewCookieStore(secret, true, 600)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := cs.Get(req, CookieName)
	require.NoError(t, err)
	sess.Values[draftKey] = "draft-1"
	rec := httptest.NewRecorder()
	require.NoError(t, sess.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	again, err := NewCookieStore(secret, true, 600)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, err := again.Get(req, CookieName)
	require.NoError(t, err)
	assert.False(t, got.IsNew)
	assert.Equal(t, "draft-1", got.Values[draftKey])

	other, err := NewCookieStore(bytes.Repeat([]byte{8}, 32), true, 600)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, err = other.Get(req, CookieName)
	assert.Error(t, err)
	assert.True(t, got.IsNew)
}
