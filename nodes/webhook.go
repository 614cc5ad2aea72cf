package nodes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/types"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the payload when
// a secret is configured, so receivers can authenticate deliveries.
const signatureHeader = "X-Flowgrid-Signature"

// WebhookHandler delivers the node's inputs as a JSON payload to an
// external URL. With continueOnError set, a failed delivery becomes a
// successful result carrying the failure details, so the workflow can
// treat notification as best-effort.
type WebhookHandler struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(client *http.Client, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		client: client,
		logger: logger.With(zap.String("handler", "webhook")),
	}
}

// Execute implements Handler.
func (h *WebhookHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	endpoint := strings.TrimSpace(configString(nc.Config, "url"))
	if endpoint == "" {
		return types.Fail("webhook node has no URL configured")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return types.Fail(fmt.Sprintf("webhook URL %q is not a valid http(s) URL", endpoint))
	}

	continueOnError := configBool(nc.Config, "continueOnError")

	payload, err := json.Marshal(nc.Inputs)
	if err != nil {
		return types.Fail(fmt.Sprintf("failed to serialize webhook payload: %v", err))
	}

	method := strings.ToUpper(configString(nc.Config, "method"))
	if method == "" {
		method = http.MethodPost
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.Fail(fmt.Sprintf("failed to build webhook request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range configStringMap(nc.Config, "headers") {
		req.Header.Set(key, value)
	}
	if secret := configString(nc.Config, "secret"); secret != "" {
		req.Header.Set(signatureHeader, sign(payload, secret))
	}

	h.logger.Debug("delivering webhook",
		zap.String("node_id", nc.NodeID),
		zap.String("url", endpoint),
		zap.Bool("continue_on_error", continueOnError),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return h.deliveryFailure(continueOnError, 0,
			fmt.Sprintf("webhook delivery to %s failed: %v", endpoint, err))
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return h.deliveryFailure(continueOnError, resp.StatusCode,
			fmt.Sprintf("webhook endpoint returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	return types.Succeed(map[string]any{
		"delivered": true,
		"status":    resp.StatusCode,
	})
}

// ValidateConfig implements Handler.
func (h *WebhookHandler) ValidateConfig(config map[string]any) *ValidationResult {
	if strings.TrimSpace(configString(config, "url")) == "" {
		return invalidConfig("url is required")
	}
	return validConfig()
}

func (h *WebhookHandler) deliveryFailure(continueOnError bool, status int, message string) *types.NodeResult {
	if !continueOnError {
		return types.Fail(message)
	}
	h.logger.Warn("webhook delivery failed, continuing", zap.String("error", message))
	output := map[string]any{
		"delivered": false,
		"error":     message,
	}
	if status != 0 {
		output["status"] = status
	}
	return types.Succeed(output)
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
