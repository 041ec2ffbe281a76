package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	texttmpl "text/template"

	"academy-storefront/internal/model"
	"academy-storefront/internal/queue"
)

//go:embed templates
var templateFS embed.FS

var (
	orderText = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/order_created.txt"))
	orderHTML = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/order_created.gohtml"))
)

type orderData struct {
	queue.OrderCreatedEvent
	BankTransfer bool
	DashboardURL string
}

// OrderNotifier mails the customer when an order is created, with a blind
// copy to the back office when one is configured.
type OrderNotifier struct {
	mailer  Mailer
	baseURL string
	bcc     []mail.Address
}

func NewOrderNotifier(mailer Mailer, baseURL string, backOffice string) *OrderNotifier {
	n := &OrderNotifier{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
	if backOffice != "" {
		n.bcc = []mail.Address{{Address: backOffice}}
	}
	return n
}

func (n *OrderNotifier) OrderCreated(ctx context.Context, ev queue.OrderCreatedEvent) error {
	msg, err := n.render(ev)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}

func (n *OrderNotifier) render(ev queue.OrderCreatedEvent) (*Message, error) {
	if ev.CustomerEmail == "" {
		return nil, fmt.Errorf("order %s has no customer email", ev.OrderID)
	}

	data := orderData{
		OrderCreatedEvent: ev,
		BankTransfer:      ev.PaymentMethod == model.PaymentMethodBankTransfer,
		DashboardURL:      n.baseURL + "/dashboard/orders",
	}

	var text, html bytes.Buffer
	if err := orderText.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	if err := orderHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	return &Message{
		To:      []mail.Address{{Name: ev.CustomerName, Address: ev.CustomerEmail}},
		Bcc:     n.bcc,
		Subject: "Order received: " + ev.ProgramTitle,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
