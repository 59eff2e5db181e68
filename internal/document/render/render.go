// Package render produces the contract PDF a consumer signs: the business
// fields merged into a fixed layout, with the consumer's identity stamped
// into the document information dictionary.
package render

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"

	domainerrors "gridconsent/pkg/domain-errors"
)

// ContractData carries the fields merged into the contract template.
type ContractData struct {
	Title             string
	ConsumerName      string
	MeteringPointID   string
	SupplierName      string
	SupplierOrgNumber string
	RequestID         string
	IssuedAt          time.Time
}

// Renderer renders contract documents.
type Renderer struct {
	producer string
}

// NewRenderer constructs a Renderer. producer is stamped into the PDF
// metadata as the creating application.
func NewRenderer(producer string) *Renderer {
	return &Renderer{producer: producer}
}

// Contract renders the change-of-supplier contract and returns the PDF bytes.
func (r *Renderer) Contract(data ContractData) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(data.Title, true)
	pdf.SetAuthor(data.ConsumerName, true)
	pdf.SetCreator(r.producer, true)
	pdf.SetCreationDate(data.IssuedAt.UTC())

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 10, data.Title, "", "C", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(60, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 8, value, "", "L", false)
	}
	row("Consumer", data.ConsumerName)
	row("Metering point", data.MeteringPointID)
	row("New balance supplier", data.SupplierName)
	row("Supplier org. number", data.SupplierOrgNumber)
	row("Reference", data.RequestID)
	row("Date", data.IssuedAt.UTC().Format("2006-01-02"))

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6,
		"By signing this contract the consumer authorizes the named balance supplier "+
			"to perform a change of supplier for the metering point listed above.",
		"", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "render contract pdf")
	}
	return buf.Bytes(), nil
}
