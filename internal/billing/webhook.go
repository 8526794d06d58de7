package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/dgellow/mcp-boilerplate/internal/log"
	"github.com/dgellow/mcp-boilerplate/internal/metrics"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const maxWebhookBody = 64 << 10

// WebhookHandler verifies and logs Stripe webhook events.
type WebhookHandler struct {
	secretKey     string
	webhookSecret string
	metrics       *metrics.Metrics
}

func NewWebhookHandler(secretKey, webhookSecret string, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{secretKey: secretKey, webhookSecret: webhookSecret, metrics: m}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secretKey == "" || h.webhookSecret == "" {
		log.LogError("Missing required Stripe secrets for webhook")
		http.Error(w, "Server configuration error", http.StatusInternalServerError)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Webhook error: "+err.Error(), http.StatusBadRequest)
		return
	}

	log.LogTrace("Stripe webhook payload: %d bytes", len(payload))

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		http.Error(w, "No Stripe signature found", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, h.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.LogErrorWithFields("webhook", "Webhook error", map[string]any{"error": err.Error()})
		if isSignatureError(err) {
			http.Error(w, "Webhook signature verification failed. Check that your STRIPE_WEBHOOK_SECRET matches the signing secret in your Stripe dashboard.", http.StatusBadRequest)
			return
		}
		http.Error(w, "Webhook error: "+err.Error(), http.StatusBadRequest)
		return
	}

	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(string(event.Type)).Inc()
	}
	handleEvent(event)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook received"))
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func handleEvent(event stripe.Event) {
	fields := map[string]any{"type": string(event.Type), "event_id": event.ID}
	var obj map[string]any
	if event.Data != nil {
		obj = event.Data.Object
	}

	switch event.Type {
	case "checkout.session.completed":
		fields["session_id"] = obj["id"]
		fields["customer"] = obj["customer"]
		fields["payment_status"] = obj["payment_status"]
		log.LogInfoWithFields("webhook", "Payment completed", fields)

	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"customer.subscription.paused",
		"customer.subscription.resumed":
		fields["subscription_id"] = obj["id"]
		fields["customer"] = obj["customer"]
		fields["status"] = obj["status"]
		log.LogInfoWithFields("webhook", "Subscription event", fields)

	case "invoice.payment_succeeded", "invoice.payment_failed":
		fields["invoice_id"] = obj["id"]
		fields["customer"] = obj["customer"]
		fields["amount_paid"] = obj["amount_paid"]
		log.LogInfoWithFields("webhook", "Invoice event", fields)

	default:
		log.LogInfoWithFields("webhook", "Unhandled event type", fields)
	}
}
