package artifact

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/iliyamo/albaranes/internal/model"
)

// Attestation is printed at the foot of every signed delivery note.
const Attestation = "Albarán firmado y elaborado con Gabrisp, aplicación especializada en la firma digital de albaranes. Muchas gracias."

var errIncomplete = errors.New("delivery note detail is missing its client, project or issuer")

// PDFRenderer lays out a delivery note on a single A4 page.
type PDFRenderer struct {
	// Now stamps the document metadata; defaults to time.Now.
	Now func() time.Time
}

// Render returns the PDF bytes for d.
func (r PDFRenderer) Render(d *model.DeliveryNoteDetail) ([]byte, error) {
	if d == nil || d.Client == nil || d.Project == nil || d.Issuer == nil {
		return nil, errIncomplete
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now().UTC())
	pdf.SetTitle("Albaran "+strconv.FormatUint(d.ID, 10), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	issuer := d.Issuer
	worker := issuer.DisplayName()

	// issuer block, left column
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(18, 22, tr(companyOr(issuer, worker)))
	pdf.SetFont("Helvetica", "", 10)
	left := []string{worker, taxID(issuer), companyAddress(issuer), issuer.Email}
	for i, line := range left {
		pdf.Text(18, 30+float64(i)*5, tr(line))
	}

	// recipient block, right column
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(130, 22, tr("ALBARÁN Nº "+strconv.FormatUint(d.ID, 10)))
	pdf.SetFont("Helvetica", "", 10)
	right := []string{"Facturar a:", d.Client.Name, d.Client.Address.OneLine(), orNA(d.Client.NIF)}
	for i, line := range right {
		pdf.Text(130, 30+float64(i)*5, tr(line))
	}

	pdf.Text(18, 62, tr("Fecha del albarán: "+d.WorkDate.Format("02/01/2006")))
	pdf.Text(18, 67, tr("Código proyecto cliente: "+d.Project.ProjectCode))

	// single line item
	qtyHeader, qty := "MATERIALES", ""
	if d.Format == model.FormatHours {
		qtyHeader = "HORAS"
		if d.Hours != nil {
			qty = strconv.FormatFloat(*d.Hours, 'f', -1, 64)
		}
	} else if d.Material != nil {
		qty = *d.Material
	}
	pdf.SetXY(18, 78)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(50, 7, tr("NOMBRE DEL TRABAJADOR"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(80, 7, tr("DESCRIPCIÓN DEL TRABAJO"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(44, 7, tr(qtyHeader), "B", 1, "L", false, 0, "")
	pdf.SetX(18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(50, 7, tr(worker), "", 0, "L", false, 0, "")
	pdf.CellFormat(80, 7, tr(d.Description), "", 0, "L", false, 0, "")
	pdf.CellFormat(44, 7, tr(qty), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(18, 110, "Observaciones")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(40, 117, "FIRMADO")

	pdf.SetXY(18, 128)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(174, 5, tr(Attestation), "", "J", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func companyOr(u *model.User, fallback string) string {
	if u.Company != nil && u.Company.Name != "" {
		return u.Company.Name
	}
	return fallback
}

func taxID(u *model.User) string {
	if cif := u.CompanyCIF(); cif != "" {
		return cif
	}
	return orNA(u.Personal.NIF)
}

func companyAddress(u *model.User) string {
	if u.Company != nil {
		return u.Company.Address
	}
	return ""
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
