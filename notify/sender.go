package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/pdfdoc"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/sirupsen/logrus"
)

const defaultBusinessName = "Kataria Stone World"

var billMailTemplate = template.Must(template.New("bill").Funcs(template.FuncMap{
	"amount": pdfdoc.FormatAmount,
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
<h2>{{.Business}}</h2>
<p><strong>Invoice Number:</strong> {{.Bill.BillNumber}}<br>
<strong>Invoice Date:</strong> {{.Date}}<br>
<strong>Invoice Type:</strong> {{.Bill.BillType}}<br>
<strong>Payment Status:</strong> {{.Bill.PaymentStatus}}</p>
{{if .Bill.CustomerName}}<p><strong>Bill To:</strong> {{.Bill.CustomerName}}</p>{{end}}
<table style="border-collapse: collapse; width: 100%;">
<tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Rate</th><th align="right">Amount</th></tr>
{{range .Bill.Items}}<tr><td>{{.ItemName}}</td><td align="right">{{amount .Quantity}} {{.Unit}}</td><td align="right">{{amount .PricePerUnit}}</td><td align="right">{{amount .TotalPrice}}</td></tr>
{{end}}</table>
<p><strong>Total:</strong> Rs. {{amount .Bill.TotalAmount}}</p>
{{if .HasPDF}}<p>The invoice is attached as a PDF.</p>{{end}}
<p>Thank you for your business.</p>
</body></html>`))

// Sender renders a bill PDF, emails it and archives it.
type Sender struct {
	Mailer Mailer
	Logger *logrus.Logger

	Seller   func(ctx context.Context) (*models.Seller, error)
	GstCodes func(ctx context.Context) (map[string]string, error)
	// Archive stores the rendered PDF. Nil disables archiving.
	Archive func(ctx context.Context, objectName string, data []byte) error
}

// NewSender wires the seller profile, state codes and the GCS archive when GCS_BUCKET is set.
func NewSender(mailer Mailer, logger *logrus.Logger) *Sender {
	s := &Sender{
		Mailer:   mailer,
		Logger:   logger,
		Seller:   models.GetSeller,
		GstCodes: models.GetStateGstCodes,
	}
	if utils.GCSEnabled() {
		s.Archive = func(ctx context.Context, objectName string, data []byte) error {
			return utils.UploadBytesToGCS(ctx, objectName, data, "application/pdf")
		}
	}
	return s
}

func (s *Sender) business(seller *models.Seller) string {
	if seller != nil && strings.TrimSpace(seller.Name) != "" {
		return seller.Name
	}
	if v := strings.TrimSpace(os.Getenv("BUSINESS_NAME")); v != "" {
		return v
	}
	return defaultBusinessName
}

// RenderPDF renders the bill with the configured seller profile.
func (s *Sender) RenderPDF(ctx context.Context, view *models.BillView) ([]byte, *models.Seller, error) {
	var seller *models.Seller
	codes := map[string]string{}
	if !pdfdoc.IsSimple(view) {
		var err error
		if s.Seller != nil {
			if seller, err = s.Seller(ctx); err != nil {
				return nil, nil, err
			}
		}
		if s.GstCodes != nil {
			if codes, err = s.GstCodes(ctx); err != nil {
				return nil, seller, err
			}
		}
	}
	data, err := pdfdoc.RenderBill(view, seller, codes)
	return data, seller, err
}

// Send mails the bill to email. A PDF that fails to render is logged and the mail goes without it.
func (s *Sender) Send(ctx context.Context, view *models.BillView, email string) error {
	pdf, seller, renderErr := s.RenderPDF(ctx, view)
	if renderErr != nil {
		config.LogError(s.Logger, "Notify", "Send", "render pdf", view.BillNumber, renderErr)
	}

	msg, err := s.buildMessage(view, seller, email, pdf)
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send bill %s to %s: %w", view.BillNumber, email, err)
	}

	if s.Archive != nil && len(pdf) > 0 {
		objectName := ArchiveObjectName(view)
		if err := s.Archive(ctx, objectName, pdf); err != nil {
			config.LogError(s.Logger, "Notify", "Send", "archive pdf", objectName, err)
		}
	}
	return nil
}

func (s *Sender) buildMessage(view *models.BillView, seller *models.Seller, email string, pdf []byte) (*Message, error) {
	business := s.business(seller)
	date := view.BillDate
	if t, err := time.Parse(models.BillDateLayout, view.BillDate); err == nil {
		date = t.Format("02 Jan 2006")
	}

	var body bytes.Buffer
	err := billMailTemplate.Execute(&body, map[string]any{
		"Business": business,
		"Bill":     view,
		"Date":     date,
		"HasPDF":   len(pdf) > 0,
	})
	if err != nil {
		return nil, fmt.Errorf("render mail body: %w", err)
	}

	msg := &Message{
		To:       email,
		Subject:  fmt.Sprintf("Invoice #%s - %s", view.BillNumber, business),
		HTMLBody: body.String(),
	}
	if len(pdf) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Name:        pdfdoc.FileName(view),
			ContentType: "application/pdf",
			Data:        pdf,
		})
	}
	return msg, nil
}

// ArchiveObjectName is bills/<series>/<yyyy-mm-dd>/Bill_<n>.pdf.
func ArchiveObjectName(view *models.BillView) string {
	return fmt.Sprintf("bills/%s/%s/%s", strings.ToLower(string(view.BillType)), view.BillDate, pdfdoc.FileName(view))
}
