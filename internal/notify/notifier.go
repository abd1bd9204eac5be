package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lakon-apparel/storefront/internal/httputil"
	"github.com/lakon-apparel/storefront/internal/logging"
)

// Notifier delivers a text message to a phone number. Delivery is best
// effort; callers log failures and carry on.
type Notifier interface {
	Send(ctx context.Context, to, text string) error
}

// LinkNotifier does not push anything; it logs the click-to-chat link so an
// operator can follow up by hand.
type LinkNotifier struct {
	log *logging.Logger
}

// NewLinkNotifier creates a LinkNotifier.
func NewLinkNotifier(log *logging.Logger) *LinkNotifier {
	if log == nil {
		log = logging.NewNop()
	}
	return &LinkNotifier{log: log}
}

func (n *LinkNotifier) Send(ctx context.Context, to, text string) error {
	n.log.WithContext(ctx).WithField("link", ClickToChatURL(to, text)).Info("whatsapp message ready")
	return nil
}

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// CloudAPIConfig configures the WhatsApp Cloud API client.
type CloudAPIConfig struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// CloudAPINotifier sends text messages through the WhatsApp Cloud API.
type CloudAPINotifier struct {
	client        *httputil.Client
	phoneNumberID string
	log           *logging.Logger
}

// NewCloudAPINotifier creates a Cloud API notifier.
func NewCloudAPINotifier(cfg CloudAPIConfig, log *logging.Logger) (*CloudAPINotifier, error) {
	if cfg.Token == "" || cfg.PhoneNumberID == "" {
		return nil, errors.New("whatsapp: token and phone number id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphURL
	}
	if log == nil {
		log = logging.NewNop()
	}
	bearer := "Bearer " + cfg.Token
	return &CloudAPINotifier{
		client: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    cfg.BaseURL,
			Timeout:    10 * time.Second,
			MaxRetries: 1,
			Decorate:   func(r *http.Request) { r.Header.Set("Authorization", bearer) },
			HTTPClient: cfg.HTTPClient,
		}),
		phoneNumberID: cfg.PhoneNumberID,
		log:           log,
	}, nil
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

func (n *CloudAPINotifier) Send(ctx context.Context, to, text string) error {
	msg := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	msg.Text.Body = text
	msg.Text.PreviewURL = true

	resp, err := n.client.Post(ctx, "/"+n.phoneNumberID+"/messages", msg)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	data, err := httputil.ReadResponse(resp)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	n.log.WithContext(ctx).WithField("message_id", gjson.GetBytes(data, "messages.0.id").String()).Debug("whatsapp message sent")
	return nil
}
