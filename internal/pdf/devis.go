// Package pdf renders devis documents using maroto/v2.
package pdf

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

var (
	colorPrimary    = &props.Color{Red: 17, Green: 24, Blue: 39}
	colorSecondary  = &props.Color{Red: 107, Green: 114, Blue: 128}
	colorAccent     = &props.Color{Red: 146, Green: 64, Blue: 14}
	colorTableHead  = &props.Color{Red: 245, Green: 245, Blue: 244}
	colorTableAlt   = &props.Color{Red: 250, Green: 250, Blue: 249}
	colorGreenLight = &props.Color{Red: 220, Green: 252, Blue: 231}
	colorGreen      = &props.Color{Red: 22, Green: 163, Blue: 74}
	colorRedLight   = &props.Color{Red: 254, Green: 226, Blue: 226}
	colorRed        = &props.Color{Red: 220, Green: 38, Blue: 38}
	colorBorder     = &props.Color{Red: 226, Green: 232, Blue: 240}
)

// DevisData holds everything printed on a devis.
type DevisData struct {
	Reference     string
	Title         string
	Status        string
	Amount        decimal.Decimal
	FactureReglee bool
	Notes         string
	CreatedAt     time.Time

	ClientName   string
	ClientPhone  string
	ClientEmail  string
	ClientCity   string
	ProjectTitle string
	ProjectType  string
	Architect    string

	// Payments received on the client, printed for accepted devis.
	Payments []PaymentLine
}

type PaymentLine struct {
	PaidAt    time.Time
	Method    string
	Type      string
	Reference string
	Amount    decimal.Decimal
}

// Paid is the sum of the listed payments.
func (d DevisData) Paid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Remaining is the amount still due, never negative.
func (d DevisData) Remaining() decimal.Decimal {
	rest := d.Amount.Sub(d.Paid())
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// GenerateDevisPDF renders a single-page devis with its payment summary.
func GenerateDevisPDF(data DevisData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(12).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	if err := m.RegisterFooter(buildFooter(data)); err != nil {
		return nil, fmt.Errorf("register footer: %w", err)
	}

	m.AddRows(buildHeader(data)...)
	m.AddRows(separator(), row.New(6))
	m.AddRows(buildPartiesBlock(data)...)
	m.AddRows(row.New(6))

	if banner := buildStatusBanner(data); banner != nil {
		m.AddRows(banner, row.New(4))
	}

	m.AddRows(buildAmountTable(data)...)

	if data.Status == "accepte" && len(data.Payments) > 0 {
		m.AddRows(row.New(6))
		m.AddRows(buildPaymentsTable(data)...)
	}

	if strings.TrimSpace(data.Notes) != "" {
		m.AddRows(row.New(6))
		m.AddRows(buildNotesBlock(data.Notes)...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func buildHeader(data DevisData) []core.Row {
	return []core.Row{
		row.New(20).Add(
			col.New(6).Add(text.New(data.Title, props.Text{
				Size:  13,
				Style: fontstyle.Bold,
				Color: colorPrimary,
				Top:   4,
			})),
			col.New(6).Add(
				text.New("DEVIS", props.Text{
					Size:  24,
					Style: fontstyle.Bold,
					Align: align.Right,
					Color: colorAccent,
				}),
				text.New(data.Reference, props.Text{
					Size:  10,
					Align: align.Right,
					Color: colorSecondary,
					Top:   12,
				}),
			),
		),
	}
}

func buildPartiesBlock(data DevisData) []core.Row {
	label := func(s string, a align.Type) core.Col {
		return col.New(6).Add(text.New(s, props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent, Align: a}))
	}
	strong := props.Text{Size: 9, Style: fontstyle.Bold, Color: colorPrimary}
	muted := props.Text{Size: 8, Color: colorSecondary}
	mutedRight := props.Text{Size: 8, Color: colorSecondary, Align: align.Right}

	project := data.ProjectTitle
	if data.ProjectType != "" {
		project += " (" + data.ProjectType + ")"
	}

	rows := []core.Row{
		row.New(5).Add(label("CLIENT", align.Left), label("PROJET", align.Right)),
		row.New(5).Add(
			col.New(6).Add(text.New(data.ClientName, strong)),
			col.New(6).Add(text.New(project, props.Text{Size: 9, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right})),
		),
		row.New(5).Add(
			col.New(6).Add(text.New(joinParts([]string{data.ClientPhone, data.ClientEmail}, "  |  "), muted)),
			col.New(6).Add(text.New("Date : "+data.CreatedAt.Format("02/01/2006"), mutedRight)),
		),
	}
	if data.ClientCity != "" || data.Architect != "" {
		architect := ""
		if data.Architect != "" {
			architect = "Architecte : " + data.Architect
		}
		rows = append(rows, row.New(5).Add(
			col.New(6).Add(text.New(data.ClientCity, muted)),
			col.New(6).Add(text.New(architect, mutedRight)),
		))
	}
	return rows
}

func buildStatusBanner(data DevisData) core.Row {
	var label string
	var fg, bg *props.Color
	switch {
	case data.Status == "accepte" && data.FactureReglee:
		label, fg, bg = "Devis accepté, facture réglée", colorGreen, colorGreenLight
	case data.Status == "accepte":
		label, fg, bg = "Devis accepté", colorGreen, colorGreenLight
	case data.Status == "refuse":
		label, fg, bg = "Devis refusé", colorRed, colorRedLight
	default:
		return nil
	}
	return row.New(8).Add(
		col.New(12).Add(text.New(label, props.Text{Size: 9, Style: fontstyle.Bold, Color: fg, Top: 2})),
	).WithStyle(&props.Cell{BackgroundColor: bg})
}

func buildAmountTable(data DevisData) []core.Row {
	head := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5}
	headRight := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 1.5}

	return []core.Row{
		row.New(7).Add(
			col.New(6).Add(text.New("Désignation", head)),
			col.New(3).Add(text.New("Statut", head)),
			col.New(3).Add(text.New("Montant", headRight)),
		).WithStyle(&props.Cell{BackgroundColor: colorTableHead, BorderType: border.Bottom, BorderColor: colorBorder}),
		row.New(7).Add(
			col.New(6).Add(text.New(data.Title, props.Text{Size: 8, Color: colorPrimary, Top: 1})),
			col.New(3).Add(text.New(statusLabel(data.Status), props.Text{Size: 8, Color: statusColor(data.Status), Top: 1})),
			col.New(3).Add(text.New(formatAmount(data.Amount), props.Text{Size: 8, Color: colorPrimary, Align: align.Right, Top: 1})),
		),
		row.New(3),
		row.New(10).Add(
			col.New(9).Add(text.New("TOTAL", props.Text{Size: 12, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 2})),
			col.New(3).Add(text.New(formatAmount(data.Amount), props.Text{Size: 12, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 2})),
		).WithStyle(&props.Cell{BackgroundColor: colorTableHead, BorderType: border.Top | border.Bottom, BorderColor: colorBorder}),
	}
}

func buildPaymentsTable(data DevisData) []core.Row {
	head := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5}
	headRight := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 1.5}

	rows := []core.Row{
		row.New(7).Add(col.New(12).Add(text.New("RÈGLEMENTS", props.Text{Size: 8, Style: fontstyle.Bold, Color: colorAccent}))),
		row.New(7).Add(
			col.New(3).Add(text.New("Date", head)),
			col.New(3).Add(text.New("Type", head)),
			col.New(3).Add(text.New("Mode", head)),
			col.New(3).Add(text.New("Montant", headRight)),
		).WithStyle(&props.Cell{BackgroundColor: colorTableHead, BorderType: border.Bottom, BorderColor: colorBorder}),
	}

	for i, p := range data.Payments {
		normal := props.Text{Size: 8, Color: colorPrimary, Top: 1}
		mode := p.Method
		if p.Reference != "" {
			mode += " " + p.Reference
		}
		r := row.New(7).Add(
			col.New(3).Add(text.New(p.PaidAt.Format("02/01/2006"), normal)),
			col.New(3).Add(text.New(p.Type, normal)),
			col.New(3).Add(text.New(mode, normal)),
			col.New(3).Add(text.New(formatAmount(p.Amount), props.Text{Size: 8, Color: colorPrimary, Align: align.Right, Top: 1})),
		)
		if i%2 == 0 {
			r.WithStyle(&props.Cell{BackgroundColor: colorTableAlt})
		}
		rows = append(rows, r)
	}

	labelStyle := props.Text{Size: 9, Color: colorSecondary, Align: align.Right}
	valueStyle := props.Text{Size: 9, Color: colorPrimary, Align: align.Right}
	rows = append(rows,
		row.New(3),
		row.New(6).Add(
			col.New(9).Add(text.New("Total réglé", labelStyle)),
			col.New(3).Add(text.New(formatAmount(data.Paid()), valueStyle)),
		),
		row.New(6).Add(
			col.New(9).Add(text.New("Reste à payer", labelStyle)),
			col.New(3).Add(text.New(formatAmount(data.Remaining()), props.Text{Size: 9, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right})),
		),
	)
	return rows
}

func buildNotesBlock(notes string) []core.Row {
	return []core.Row{
		row.New(5).Add(col.New(12).Add(text.New("REMARQUES", props.Text{Size: 8, Style: fontstyle.Bold, Color: colorAccent}))),
		row.New(12).Add(col.New(12).Add(text.New(notes, props.Text{Size: 8, Color: colorSecondary, Top: 1}))),
	}
}

func buildFooter(data DevisData) core.Row {
	return row.New(10).Add(
		col.New(12).Add(text.New(joinParts([]string{"Devis " + data.Reference, data.ClientName, "Montants en dirhams (MAD)"}, "  ·  "), props.Text{
			Size:  6.5,
			Color: colorSecondary,
			Align: align.Center,
			Top:   4,
		})),
	).WithStyle(&props.Cell{BorderType: border.Top, BorderColor: colorBorder})
}

func separator() core.Row {
	return row.New(1).WithStyle(&props.Cell{BorderType: border.Bottom, BorderColor: colorBorder})
}

func statusLabel(status string) string {
	switch status {
	case "en_attente":
		return "En attente"
	case "accepte":
		return "Accepté"
	case "refuse":
		return "Refusé"
	default:
		return status
	}
}

func statusColor(status string) *props.Color {
	switch status {
	case "accepte":
		return colorGreen
	case "refuse":
		return colorRed
	default:
		return colorSecondary
	}
}

// formatAmount prints 1234567.5 as "1 234 567,50 MAD".
func formatAmount(v decimal.Decimal) string {
	fixed := v.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + b.String() + "," + frac + " MAD"
}

func joinParts(parts []string, sep string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
