package api

import (
	"bytes"
	"fmt"

	"rafyaudit/internal/checklist"
	"rafyaudit/internal/models"
)

// RenderPDF writes a plain text PDF summary of rec. It covers the general
// information, the overall result and the non-conforming items.
func RenderPDF(rec models.AuditRecord) []byte {
	lines := []string{
		"RAFY GOLD - Procès-Verbal de Contrôle Interne",
		"",
		"Date du contrôle: " + rec.DateControle + " " + rec.Heure,
		"Lieu: " + rec.Lieu,
		"Commercial contrôlé: " + rec.CommercialControle,
		"Contrôleur interne: " + rec.ControleurInterne,
		"Résultat global: " + string(rec.ResultatGlobal),
		"",
	}
	schema := checklist.Default()
	for _, c := range schema.Categories {
		sum := schema.Summary(c, rec.Checklist)
		lines = append(lines, fmt.Sprintf("%s: %d/%d conformes", c.Name, sum.Conformes, sum.Total))
		for _, it := range c.Items {
			if e := rec.Checklist.Get(it.Key); e.Status != checklist.Conforme {
				lines = append(lines, "  - "+it.Label)
			}
		}
	}
	return buildPDF(lines)
}

func buildPDF(lines []string) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 10 Tf 14 TL 50 800 Td\n")
	for _, l := range lines {
		content.WriteString("(")
		content.Write(pdfString(l))
		content.WriteString(") '\n")
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

// pdfString escapes s for a literal string in Latin-1.
func pdfString(s string) []byte {
	var b []byte
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b = append(b, '\\', byte(r))
		case r < 0x100:
			b = append(b, byte(r))
		default:
			b = append(b, '?')
		}
	}
	return b
}
