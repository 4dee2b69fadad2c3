package email

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Discount kinds as they appear on the wire.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// PromotionEmail is the data rendered into a promotion announcement.
type PromotionEmail struct {
	Title         string
	Message       string
	Code          string
	DiscountKind  string
	DiscountValue float64
	MinPurchase   float64
	ExpiresAt     time.Time
	CTAURL        string
	CTALabel      string
}

// NotificationEmail is the data rendered into a plain notification message.
type NotificationEmail struct {
	Title       string
	Message     string
	ActionURL   string
	ActionLabel string
}

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with grouping and two fraction digits.
func FormatMoney(v float64) string {
	return printer.Sprintf("$%v", number.Decimal(v, number.Scale(2)))
}

// FormatDiscount renders a discount per its kind: "20% off" for percentage,
// "$50.00 off" for fixed amounts.
func FormatDiscount(kind string, value float64) string {
	if kind == DiscountPercentage {
		return printer.Sprintf("%v%% off", number.Decimal(value, number.MaxFractionDigits(2)))
	}
	return FormatMoney(value) + " off"
}

// FormatExpiry renders a human-readable expiry date.
func FormatExpiry(t time.Time) string {
	return t.Format("January 2, 2006")
}

var promotionTmpl = template.Must(template.New("promotion").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#f6f7f9;font-family:Arial,Helvetica,sans-serif;color:#1f2933;">
  <div style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px;">
    <h1 style="margin-top:0;font-size:22px;">{{.Title}}</h1>
    <p style="font-size:15px;line-height:1.6;">{{.Message}}</p>
    <div style="margin:24px 0;padding:16px;background:#eef2ff;border:1px dashed #4f46e5;border-radius:6px;text-align:center;">
      <span style="display:block;font-size:12px;color:#6b7280;letter-spacing:1px;">USE CODE</span>
      <strong style="font-size:26px;letter-spacing:3px;color:#4f46e5;">{{.Code}}</strong>
    </div>
    <p style="font-size:15px;"><strong>{{.Discount}}</strong>{{if .MinPurchase}} on orders over {{.MinPurchase}}{{end}}</p>
    {{if .Expiry}}<p style="font-size:13px;color:#6b7280;">Offer valid until {{.Expiry}}.</p>{{end}}
    {{if .CTAURL}}<p style="text-align:center;margin:32px 0 16px;">
      <a href="{{.CTAURL}}" style="background:#4f46e5;color:#ffffff;padding:12px 28px;border-radius:6px;text-decoration:none;font-size:15px;">{{.CTALabel}}</a>
    </p>{{end}}
  </div>
</body>
</html>`))

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#f6f7f9;font-family:Arial,Helvetica,sans-serif;color:#1f2933;">
  <div style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px;">
    <h1 style="margin-top:0;font-size:22px;">{{.Title}}</h1>
    <p style="font-size:15px;line-height:1.6;">{{.Message}}</p>
    {{if .ActionURL}}<p style="text-align:center;margin:32px 0 16px;">
      <a href="{{.ActionURL}}" style="background:#4f46e5;color:#ffffff;padding:12px 28px;border-radius:6px;text-decoration:none;font-size:15px;">{{.ActionLabel}}</a>
    </p>{{end}}
  </div>
</body>
</html>`))

// RenderPromotion renders the promotion announcement HTML body.
func RenderPromotion(data PromotionEmail) (string, error) {
	label := data.CTALabel
	if label == "" {
		label = "Shop Now"
	}

	var minPurchase string
	if data.MinPurchase > 0 {
		minPurchase = FormatMoney(data.MinPurchase)
	}
	var expiry string
	if !data.ExpiresAt.IsZero() {
		expiry = FormatExpiry(data.ExpiresAt)
	}

	var sb strings.Builder
	err := promotionTmpl.Execute(&sb, struct {
		Title, Message, Code string
		Discount             string
		MinPurchase, Expiry  string
		CTAURL, CTALabel     string
	}{
		Title:       data.Title,
		Message:     data.Message,
		Code:        strings.ToUpper(data.Code),
		Discount:    FormatDiscount(data.DiscountKind, data.DiscountValue),
		MinPurchase: minPurchase,
		Expiry:      expiry,
		CTAURL:      data.CTAURL,
		CTALabel:    label,
	})
	if err != nil {
		return "", fmt.Errorf("email: render promotion: %w", err)
	}
	return sb.String(), nil
}

// RenderNotification renders a plain notification HTML body.
func RenderNotification(data NotificationEmail) (string, error) {
	label := data.ActionLabel
	if label == "" {
		label = "View"
	}

	var sb strings.Builder
	err := notificationTmpl.Execute(&sb, NotificationEmail{
		Title:       data.Title,
		Message:     data.Message,
		ActionURL:   data.ActionURL,
		ActionLabel: label,
	})
	if err != nil {
		return "", fmt.Errorf("email: render notification: %w", err)
	}
	return sb.String(), nil
}
