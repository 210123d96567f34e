package invoice

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/Skotchmaster/shop/internal/models"
)

type Renderer interface {
	Render(order *models.Order, w io.Writer) error
}

func FileName(order *models.Order) string {
	return "invoice-" + order.ID.String() + ".pdf"
}

// PDF renders invoices, keeping a copy of each document under Dir.
type PDF struct {
	Dir string
}

func (p *PDF) Render(order *models.Order, w io.Writer) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("invoice dir: %w", err)
	}

	path := filepath.Join(p.Dir, FileName(order))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create invoice file: %w", err)
	}
	defer f.Close()

	doc := Build(order)
	if err := doc.Output(io.MultiWriter(f, w)); err != nil {
		return fmt.Errorf("write invoice %s: %w", path, err)
	}
	return nil
}

// Build lays out the invoice: heading, one line per item, then the total
// computed from the stored snapshot.
func Build(order *models.Order) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+order.ID.String(), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "U", 26)
	pdf.Cell(0, 12, "Invoice")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 14)
	pdf.Cell(0, 8, "-----------------------")
	pdf.Ln(8)

	for _, li := range order.Items {
		line := fmt.Sprintf("%s - %d x $%s", li.Product.Title, li.Quantity, li.Product.Price.StringFixed(2))
		pdf.Cell(0, 8, tr(line))
		pdf.Ln(8)
	}

	pdf.Cell(0, 8, "---")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 20)
	pdf.Cell(0, 10, "Total Price: $"+order.Total().StringFixed(2))

	return pdf
}
