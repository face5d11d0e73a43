// Package dashboard derives the audit list view: counters, search and file names.
package dashboard

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"rafyaudit/internal/checklist"
	"rafyaudit/internal/models"
)

// Stats are the dashboard counters.
type Stats struct {
	Total        int
	Conformes    int
	NonConformes int
	// Rate is the rounded conformity percentage, 0 for an empty list.
	Rate int
}

// Compute counts audits by their stored overall result.
func Compute(audits []models.AuditRecord) Stats {
	st := Stats{Total: len(audits)}
	for _, a := range audits {
		if a.ResultatGlobal == checklist.Conforme {
			st.Conformes++
		}
	}
	st.NonConformes = st.Total - st.Conformes
	if st.Total > 0 {
		st.Rate = int(math.Round(100 * float64(st.Conformes) / float64(st.Total)))
	}
	return st
}

// Filter keeps audits whose commercial, location or controller contains term,
// ignoring case. An empty term keeps everything. Order is preserved.
func Filter(audits []models.AuditRecord, term string) []models.AuditRecord {
	term = strings.TrimSpace(term)
	if term == "" {
		return audits
	}
	// a Caser is stateful, so one per call
	folder := cases.Fold()
	fold := func(s string) string { return folder.String(norm.NFC.String(s)) }
	needle := fold(term)
	out := make([]models.AuditRecord, 0, len(audits))
	for _, a := range audits {
		if strings.Contains(fold(a.CommercialControle), needle) ||
			strings.Contains(fold(a.Lieu), needle) ||
			strings.Contains(fold(a.ControleurInterne), needle) {
			out = append(out, a)
		}
	}
	return out
}

var unsafeName = strings.NewReplacer("/", "_", "\\", "_", "\"", "", "'", "", "\r", "", "\n", "")

// PDFFilename is the download name of an audit report.
func PDFFilename(commercial, date string) string {
	return unsafeName.Replace("PV_Audit_" + commercial + "_" + date + ".pdf")
}
