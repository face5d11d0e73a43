// Package auditform is the three-step audit creation form: general
// information, checklist, then photos and signatures.
package auditform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rafyaudit/internal/checklist"
	"rafyaudit/internal/models"
)

// Steps of the form, in order.
const (
	StepGeneral   = 1
	StepChecklist = 2
	StepMedia     = 3
)

// Validation errors. Message gives the text shown to the user.
var (
	ErrMissingField       = errors.New("required field missing")
	ErrUnknownCommercial  = errors.New("commercial not in list")
	ErrUnknownController  = errors.New("controller not in list")
	ErrSignaturesMissing  = errors.New("both signatures must be saved")
	ErrInvalidDateOrTime  = errors.New("invalid date or time")
	ErrUnknownPhotoSlot   = errors.New("unknown photo slot")
	ErrUnknownSignatory   = errors.New("unknown signatory")
	ErrSignatureEmpty     = errors.New("empty signature")
	ErrSignatureMalformed = errors.New("signature is not an image data URI")
	ErrImageTooLarge      = errors.New("image larger than 5 MiB")
	ErrNotAnImage         = errors.New("file is not an image")
)

var messages = map[error]string{
	ErrMissingField:       "Veuillez remplir les champs obligatoires",
	ErrUnknownCommercial:  "Commercial inconnu",
	ErrUnknownController:  "Contrôleur inconnu",
	ErrSignaturesMissing:  "Les deux signatures sont requises",
	ErrInvalidDateOrTime:  "Date ou heure invalide",
	ErrUnknownPhotoSlot:   "Emplacement photo inconnu",
	ErrUnknownSignatory:   "Signataire inconnu",
	ErrSignatureEmpty:     "Veuillez signer avant d'enregistrer",
	ErrSignatureMalformed: "Signature invalide",
	ErrImageTooLarge:      "L'image ne doit pas dépasser 5 Mo",
	ErrNotAnImage:         "Le fichier doit être une image",
}

// Message returns the French text for a validation error, or "" if err is not one.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return ""
}

// General is the step 1 input.
type General struct {
	Date       string
	Time       string
	Location   string
	Commercial string
	Controller string
}

// Form is the in-progress audit. It is serialized as a draft between requests.
type Form struct {
	Step   int                `json:"step"`
	Record models.AuditRecord `json:"record"`
	// Collapsed holds the step 2 categories the user folded.
	Collapsed map[string]bool `json:"collapsed,omitempty"`

	Commercials []models.Commercial `json:"commercials,omitempty"`
	Controllers []string            `json:"controllers,omitempty"`
	ListsLoaded bool                `json:"lists_loaded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New starts a form at step 1 dated now, every item NON CONFORME.
func New(schema *checklist.Schema, now time.Time) *Form {
	entries := schema.NewEntries()
	return &Form{
		Step: StepGeneral,
		Record: models.AuditRecord{
			DateControle:   now.Format("2006-01-02"),
			Heure:          now.Format("15:04"),
			Checklist:      entries,
			ResultatGlobal: checklist.GlobalResult(entries),
		},
		Collapsed: make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (f *Form) touch() { f.UpdatedAt = time.Now() }

// Next advances one step, stopping at the last.
func (f *Form) Next() {
	if f.Step < StepMedia {
		f.Step++
	}
	f.clamp()
}

// Previous goes back one step, stopping at the first.
func (f *Form) Previous() {
	if f.Step > StepGeneral {
		f.Step--
	}
	f.clamp()
}

func (f *Form) clamp() {
	if f.Step < StepGeneral {
		f.Step = StepGeneral
	}
	if f.Step > StepMedia {
		f.Step = StepMedia
	}
}

// Directory lists the people selectable in step 1.
type Directory interface {
	Commercials(ctx context.Context) ([]models.Commercial, error)
	Controllers(ctx context.Context) ([]string, error)
}

// LoadLists fetches both selection lists. Whatever succeeds is kept; a failure
// is returned for display but never blocks the form.
func (f *Form) LoadLists(ctx context.Context, d Directory) error {
	var errs []error
	commercials, err := d.Commercials(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("commercials: %w", err))
	} else {
		f.Commercials = commercials
	}
	controllers, err := d.Controllers(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("controllers: %w", err))
	} else {
		f.Controllers = controllers
	}
	f.ListsLoaded = len(errs) == 0
	return errors.Join(errs...)
}

// SetGeneral records step 1. Commercial and controller must come from the
// fetched lists when those lists are available.
func (f *Form) SetGeneral(g General) error {
	g.Date = strings.TrimSpace(g.Date)
	g.Time = strings.TrimSpace(g.Time)
	if g.Date != "" {
		if _, err := time.Parse("2006-01-02", g.Date); err != nil {
			return ErrInvalidDateOrTime
		}
	}
	if g.Time != "" {
		if _, err := time.Parse("15:04", g.Time); err != nil {
			return ErrInvalidDateOrTime
		}
	}
	if g.Commercial != "" && len(f.Commercials) > 0 && !f.knownCommercial(g.Commercial) {
		return ErrUnknownCommercial
	}
	if g.Controller != "" && len(f.Controllers) > 0 && !contains(f.Controllers, g.Controller) {
		return ErrUnknownController
	}
	f.Record.DateControle = g.Date
	f.Record.Heure = g.Time
	f.Record.Lieu = strings.TrimSpace(g.Location)
	f.Record.CommercialControle = g.Commercial
	f.Record.ControleurInterne = g.Controller
	f.touch()
	return nil
}

func (f *Form) knownCommercial(name string) bool {
	for _, c := range f.Commercials {
		if c.Name == name {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// SetStatus changes one item and recomputes the overall result.
func (f *Form) SetStatus(key string, status checklist.Status) error {
	if _, ok := f.Record.Checklist[key]; !ok {
		return fmt.Errorf("%w: %s", checklist.ErrUnknownKey, key)
	}
	if _, err := checklist.ParseStatus(string(status)); err != nil {
		return err
	}
	f.Record.Checklist.Set(key, status)
	f.Record.ResultatGlobal = checklist.GlobalResult(f.Record.Checklist)
	f.touch()
	return nil
}

// SetComment changes the comment of one item. The overall result is untouched.
func (f *Form) SetComment(key, text string) error {
	if _, ok := f.Record.Checklist[key]; !ok {
		return fmt.Errorf("%w: %s", checklist.ErrUnknownKey, key)
	}
	f.Record.Checklist.Comment(key, text)
	f.touch()
	return nil
}

// ToggleCategory folds or unfolds a step 2 category.
func (f *Form) ToggleCategory(name string) {
	if f.Collapsed == nil {
		f.Collapsed = make(map[string]bool)
	}
	if f.Collapsed[name] {
		delete(f.Collapsed, name)
	} else {
		f.Collapsed[name] = true
	}
}

// Expanded reports whether a category is unfolded.
func (f *Form) Expanded(name string) bool { return !f.Collapsed[name] }

// SetNotes records the free-text observations and corrective actions.
func (f *Form) SetNotes(observations, actions string) {
	f.Record.Observations = observations
	f.Record.ActionsCorrectives = actions
	f.touch()
}

// ReadyToSubmit checks what must hold before anything is sent.
func (f *Form) ReadyToSubmit() error {
	r := f.Record
	if r.SignatureCommercial == nil || r.SignatureControleur == nil {
		return ErrSignaturesMissing
	}
	if strings.TrimSpace(r.DateControle) == "" || r.CommercialControle == "" || r.ControleurInterne == "" {
		return ErrMissingField
	}
	return nil
}

// Creator persists a finished audit.
type Creator interface {
	CreateAudit(ctx context.Context, rec models.AuditRecord) (models.AuditRecord, error)
}

// Submit sends the whole record once. Nothing is sent when ReadyToSubmit fails,
// and the form is left as is on any error.
func (f *Form) Submit(ctx context.Context, c Creator) (models.AuditRecord, error) {
	if err := f.ReadyToSubmit(); err != nil {
		return models.AuditRecord{}, err
	}
	rec := f.Record
	rec.Checklist = f.Record.Checklist.Clone()
	rec.ResultatGlobal = checklist.GlobalResult(rec.Checklist)
	return c.CreateAudit(ctx, rec)
}
