package leadquiz

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trading-academy/academy-web/internal/models"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// EmailNotifier は診断結果をリード本人にSendGridでメール送信します。
type EmailNotifier struct {
	key     string
	host    string
	from    *sgmail.Email
	baseURL string
}

// NewEmailNotifier はEmailNotifierを作成します。key が空なら nil を返します。
func NewEmailNotifier(key, fromName, fromEmail, baseURL string) Notifier {
	if key == "" {
		return nil
	}
	return &EmailNotifier{
		key:     key,
		host:    sendgridHost,
		from:    sgmail.NewEmail(fromName, fromEmail),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (n *EmailNotifier) Name() string { return "sendgrid" }

func (n *EmailNotifier) message(lead models.Lead, rec Recommendation) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = "Your trading plan: " + rec.Headline
	p.AddTos(sgmail.NewEmail(lead.Name, lead.Email))

	pricing := n.baseURL + "/pricing?required=" + string(rec.Tier)
	text := fmt.Sprintf("Hi %s,\n\n%s\n%s\n\nSee the plan: %s\n", lead.Name, rec.Headline, rec.Summary, pricing)
	htmlBody := fmt.Sprintf("<p>Hi %s,</p><h2>%s</h2><p>%s</p><p><a href=\"%s\">See the plan</a></p>",
		html.EscapeString(lead.Name), html.EscapeString(rec.Headline), html.EscapeString(rec.Summary), html.EscapeString(pricing))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", text),
		sgmail.NewContent("text/html", htmlBody),
	)
	return m
}

// NotifyLead はメールを送信します。
func (n *EmailNotifier) NotifyLead(ctx context.Context, lead models.Lead, rec Recommendation) error {
	req := sendgrid.GetRequest(n.key, sendgridEndpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.message(lead, rec))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d", res.StatusCode)
	}
	return nil
}

// MessageSender はTelegramへメッセージを送るクライアントです。*tgbotapi.BotAPI が満たします。
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier は新しいリードを管理者チャットへ通知します。
type TelegramNotifier struct {
	bot    MessageSender
	chatID int64
}

// NewTelegramNotifier はTelegramNotifierを作成します。bot が nil か chatID が 0 なら nil を返します。
func NewTelegramNotifier(bot MessageSender, chatID int64) Notifier {
	if bot == nil || chatID == 0 {
		return nil
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

// NotifyLead は管理者チャットに通知を送ります。
func (n *TelegramNotifier) NotifyLead(_ context.Context, lead models.Lead, rec Recommendation) error {
	text := fmt.Sprintf("New lead: %s <%s>\nScore: %d\nRecommended: %s", lead.Name, lead.Email, lead.Score, rec.Tier)
	if lead.Phone != "" {
		text += "\nPhone: " + lead.Phone
	}
	if lead.Source != "" {
		text += "\nSource: " + lead.Source
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// FunctionInvoker はSupabase Edge Functionを呼び出すクライアントです。*database.EdgeFunctions が満たします。
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, payload interface{}) ([]byte, error)
}

// FunctionNotifier はリードをEdge Functionに渡してCRMと同期します。
type FunctionNotifier struct {
	functions FunctionInvoker
	name      string
}

// NewFunctionNotifier はFunctionNotifierを作成します。name が空なら nil を返します。
func NewFunctionNotifier(functions FunctionInvoker, name string) Notifier {
	if functions == nil || name == "" {
		return nil
	}
	return &FunctionNotifier{functions: functions, name: name}
}

func (n *FunctionNotifier) Name() string { return "edge-function:" + n.name }

// NotifyLead はEdge Functionを呼び出します。
func (n *FunctionNotifier) NotifyLead(ctx context.Context, lead models.Lead, rec Recommendation) error {
	payload := map[string]interface{}{
		"lead":           lead,
		"recommendation": rec,
	}
	if _, err := n.functions.Invoke(ctx, n.name, payload); err != nil {
		return fmt.Errorf("lead sync failed: %w", err)
	}
	return nil
}
