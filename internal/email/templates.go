// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// OrderInfo contains the information needed for order email templates.
type OrderInfo struct {
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	StoreName       string
	OrderDate       string
	Items           []OrderItem
	Subtotal        string
	Shipping        string
	Tax             string
	Discount        string
	Total           string
	Status          string
	StatusNote      string
	ReturnID        string
	ReturnReason    string
	ShippingAddress string
	TrackingNumber  string
}

// OrderItem represents a single line in an order email.
type OrderItem struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
	Dimensions string
}

// Renderer provides methods to render email templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer creates a new email template renderer with built-in templates.
func NewRenderer() (*Renderer, error) {
	templates := map[string]struct {
		HTML string
		Text string
	}{
		"order_confirmation": {HTML: orderConfirmationHTML, Text: orderConfirmationText},
		"status_update":      {HTML: statusUpdateHTML, Text: statusUpdateText},
		"return_received":    {HTML: returnReceivedHTML, Text: returnReceivedText},
	}

	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
	}

	tmpl := template.New("email").Funcs(funcMap)
	for key, t := range templates {
		if _, err := tmpl.New(key + "_html").Parse(t.HTML); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", key, err)
		}
		if _, err := tmpl.New(key + "_text").Parse(t.Text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", key, err)
		}
	}

	return &Renderer{templates: tmpl}, nil
}

// Render renders an email template with the given data.
func (r *Renderer) Render(ctx context.Context, templateName string, data *OrderInfo) (*Email, error) {
	var htmlBuf, textBuf bytes.Buffer

	if err := r.templates.ExecuteTemplate(&htmlBuf, templateName+"_html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.templates.ExecuteTemplate(&textBuf, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	subject := ""
	switch templateName {
	case "order_confirmation":
		subject = fmt.Sprintf("Order Confirmed - %s - %s", data.OrderNumber, data.StoreName)
	case "status_update":
		subject = fmt.Sprintf("Order Update - %s - %s", data.OrderNumber, data.StoreName)
	case "return_received":
		subject = fmt.Sprintf("Return Request Received - %s", data.ReturnID)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

const orderConfirmationText = `Thank you for your order!

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Items:
{{range .Items}}
- {{.Name}}{{if .Dimensions}} ({{.Dimensions}}){{end}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}

Subtotal: {{.Subtotal}}
Shipping: {{.Shipping}}
Tax: {{.Tax}}
{{if .Discount}}Discount: -{{.Discount}}
{{end}}Total: {{.Total}}

Shipping to:
{{.ShippingAddress}}

We'll send you another email as your order moves along.

Thank you for shopping with {{.StoreName}}!
`

const orderConfirmationHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order Confirmation</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #7c4a2d; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .items-table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items-table th { text-align: left; padding: 10px; background: #f3f4f6; border-bottom: 2px solid #e5e7eb; }
    .items-table td { padding: 10px; border-bottom: 1px solid #e5e7eb; }
    .total { font-size: 18px; font-weight: bold; text-align: right; padding: 15px 0; }
    .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Order Confirmed!</h1>
    <p>Thank you for your order, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <p><strong>Order Number:</strong> {{.OrderNumber}}<br>
    <strong>Order Date:</strong> {{.OrderDate}}</p>
    <table class="items-table">
      <thead>
        <tr><th>Item</th><th>Qty</th><th>Price</th></tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Name}}{{if .Dimensions}}<br><small>{{.Dimensions}}</small>{{end}}</td>
          <td>{{.Quantity}}</td>
          <td>{{.TotalPrice}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <div class="total">
      <p>Subtotal: {{.Subtotal}}</p>
      <p>Shipping: {{.Shipping}}</p>
      <p>Tax: {{.Tax}}</p>
      {{if .Discount}}<p>Discount: -{{.Discount}}</p>{{end}}
      <p>Total: {{.Total}}</p>
    </div>
    <p>We'll send you another email as your order moves along.</p>
  </div>
  <div class="footer">
    <p>Thank you for shopping with {{.StoreName}}</p>
  </div>
</body>
</html>
`

const statusUpdateText = `Your order has been updated.

Order Number: {{.OrderNumber}}
New Status: {{.Status}}
{{if .StatusNote}}Note: {{.StatusNote}}
{{end}}{{if .TrackingNumber}}Tracking Number: {{.TrackingNumber}}
{{end}}
Thank you for shopping with {{.StoreName}}!
`

const statusUpdateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order Update</title>
</head>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Order Update</h1>
  <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
  <p><strong>New Status:</strong> {{.Status}}</p>
  {{if .StatusNote}}<p><strong>Note:</strong> {{.StatusNote}}</p>{{end}}
  {{if .TrackingNumber}}<p><strong>Tracking Number:</strong> {{.TrackingNumber}}</p>{{end}}
  <p>Thank you for shopping with {{.StoreName}}!</p>
</body>
</html>
`

const returnReceivedText = `We received your return request.

Return ID: {{.ReturnID}}
Order Number: {{.OrderNumber}}
Reason: {{.ReturnReason}}

Keep the Return ID handy; you can use it to check on your return at any time.
We'll email you again once the request has been reviewed.

{{.StoreName}}
`

const returnReceivedHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Return Request Received</title>
</head>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Return Request Received</h1>
  <p><strong>Return ID:</strong> {{.ReturnID}}</p>
  <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
  <p><strong>Reason:</strong> {{.ReturnReason}}</p>
  <p>Keep the Return ID handy; you can use it to check on your return at any time.
  We'll email you again once the request has been reviewed.</p>
  <p>{{.StoreName}}</p>
</body>
</html>
`
