package receipt

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/maintenance/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt",
	fx.Provide(New),
)

// Data is the printable view of a maintenance payment.
type Data struct {
	SocietyName    string
	SocietyAddress string

	ReceiptNumber string
	FlatNumber    string
	ResidentID    string
	PaymentMonth  string
	PaymentDate   string
	Method        string
	Reference     string
	Status        string

	BaseAmount    string
	PenaltyAmount string
	DaysLate      int
	TotalAmount   string
}

type Renderer interface {
	Render(ctx context.Context, data Data) (io.Reader, error)
}

type PDFRenderer struct {
	societyName    string
	societyAddress string
}

func New(cfg config.Config) *PDFRenderer {
	return &PDFRenderer{
		societyName:    cfg.SocietyName,
		societyAddress: cfg.SocietyAddress,
	}
}

// FromPayment builds receipt data for a payment using the configured society details.
func (r *PDFRenderer) FromPayment(p domain.Payment) Data {
	data := Data{
		SocietyName:    r.societyName,
		SocietyAddress: r.societyAddress,
		ReceiptNumber:  p.ReceiptNumber,
		FlatNumber:     p.FlatNumber,
		PaymentMonth:   p.PaymentMonth.Format("January 2006"),
		PaymentDate:    p.PaymentDate.Format(clock.DateLayout),
		Method:         methodLabel(p.PaymentMethod),
		Status:         string(p.Status),
		BaseAmount:     p.BaseAmount.StringFixed(2),
		PenaltyAmount:  p.PenaltyAmount.StringFixed(2),
		DaysLate:       p.DaysLate,
		TotalAmount:    p.TotalAmount.StringFixed(2),
	}
	if p.ResidentID != nil {
		data.ResidentID = *p.ResidentID
	}
	switch p.PaymentMethod {
	case domain.MethodCheque:
		if p.ChequeNumber != nil {
			data.Reference = "Cheque " + *p.ChequeNumber
		}
		if p.BankName != nil {
			data.Reference += ", " + *p.BankName
		}
	case domain.MethodUPIIMPS, domain.MethodBankTransfer:
		if p.TransactionReference != nil {
			data.Reference = *p.TransactionReference
		}
	}
	return data
}

// FileName is the download name of a receipt, prefixed with the society slug when one is configured.
func FileName(data Data) string {
	name := strings.TrimSpace(data.ReceiptNumber)
	if name == "" {
		name = "receipt"
	}
	if prefix := slug.Make(data.SocietyName); prefix != "" {
		name = prefix + "-" + name
	}
	return name + ".pdf"
}

func (r *PDFRenderer) Render(_ context.Context, data Data) (io.Reader, error) {
	cfg := marotoconfig.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, data.SocietyName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Maintenance Receipt", props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)
	if strings.TrimSpace(data.SocietyAddress) != "" {
		m.AddRow(10, text.NewCol(12, data.SocietyAddress, props.Text{Size: 9}))
	}
	m.AddRow(4, line.NewCol(12))

	m.AddRow(28,
		col.New(6).Add(
			text.New("Receipt number: "+data.ReceiptNumber, props.Text{Top: 0}),
			text.New("Flat: "+data.FlatNumber, props.Text{Top: 5}),
			text.New("Resident: "+orDash(data.ResidentID), props.Text{Top: 10}),
			text.New("Status: "+data.Status, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Month: "+data.PaymentMonth, props.Text{Top: 0, Align: align.Right}),
			text.New("Paid on: "+data.PaymentDate, props.Text{Top: 5, Align: align.Right}),
			text.New("Method: "+data.Method, props.Text{Top: 10, Align: align.Right}),
			text.New("Reference: "+orDash(data.Reference), props.Text{Top: 15, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		text.NewCol(8, "Maintenance for "+data.PaymentMonth, props.Text{Size: 9}),
		text.NewCol(4, data.BaseAmount, props.Text{Size: 9, Align: align.Right}),
	)
	if data.DaysLate > 0 {
		m.AddRow(8,
			text.NewCol(8, "Late payment penalty", props.Text{Size: 9}),
			text.NewCol(4, data.PenaltyAmount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(4, line.NewCol(12))
	m.AddRow(10,
		col.New(6),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(4, data.TotalAmount, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func methodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.MethodCash:
		return "Cash"
	case domain.MethodCheque:
		return "Cheque"
	case domain.MethodUPIIMPS:
		return "UPI/IMPS"
	case domain.MethodBankTransfer:
		return "Bank transfer"
	}
	return string(m)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
