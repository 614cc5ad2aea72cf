package nodes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/internal/paths"
	"github.com/flowgrid/flowgrid/types"
)

// urlPlaceholder is the URL the visual editor seeds into a freshly added
// api node. Executing it unmodified is always a configuration mistake.
const urlPlaceholder = "https://api.example.com/endpoint"

// maxErrorBodySnippet caps how much of an error response body is embedded
// in a failure message.
const maxErrorBodySnippet = 200

// APIHandler performs an outbound HTTP request with interpolated URL,
// headers, and body.
//
// Unresolved template paths render as empty strings here, unlike the
// generic interpolation everywhere else which keeps the literal
// placeholder. Both behaviors are long-standing and workflows depend on
// each; do not unify them.
type APIHandler struct {
	client *http.Client
	logger *zap.Logger
}

// NewAPIHandler creates the api handler.
func NewAPIHandler(client *http.Client, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		client: client,
		logger: logger.With(zap.String("handler", "api")),
	}
}

// Execute implements Handler.
func (h *APIHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	rawURL := strings.TrimSpace(configString(nc.Config, "url"))
	if rawURL == "" {
		return types.Fail("API node has no URL configured")
	}
	if rawURL == urlPlaceholder {
		return types.Fail("API node still has the placeholder URL; set the real endpoint in the node settings")
	}

	endpoint := paths.InterpolateEmpty(rawURL, nc.Inputs)
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return types.Fail(fmt.Sprintf("API node URL %q is not a valid http(s) URL", endpoint))
	}

	method := strings.ToUpper(configString(nc.Config, "method"))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if rawBody := configString(nc.Config, "body"); rawBody != "" && method != http.MethodGet {
		body = strings.NewReader(paths.InterpolateEmpty(rawBody, nc.Inputs))
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, body)
	if err != nil {
		return types.Fail(fmt.Sprintf("failed to build API request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range configStringMap(nc.Config, "headers") {
		req.Header.Set(key, paths.InterpolateEmpty(value, nc.Inputs))
	}

	h.logger.Debug("calling external API",
		zap.String("node_id", nc.NodeID),
		zap.String("method", method),
		zap.String("url", endpoint),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return types.Fail(fmt.Sprintf("API request to %s timed out after %s", endpoint, defaultHTTPTimeout))
		}
		return types.Fail(fmt.Sprintf("API request to %s failed: %v", endpoint, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Fail(fmt.Sprintf("failed to read API response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > maxErrorBodySnippet {
			snippet = snippet[:maxErrorBodySnippet]
		}
		return types.Fail(fmt.Sprintf("API returned %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), snippet))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return types.Succeed(map[string]any{"response": string(data)})
	}

	var parsedBody any
	if err := json.Unmarshal(data, &parsedBody); err != nil {
		return types.Fail(fmt.Sprintf("API response declared JSON but is not parseable: %v", err))
	}

	if mapping := configStringMap(nc.Config, "responseMapping"); len(mapping) > 0 {
		return types.Succeed(applyResponseMapping(parsedBody, mapping))
	}

	return types.Succeed(shapeResponse(parsedBody))
}

// ValidateConfig implements Handler.
func (h *APIHandler) ValidateConfig(config map[string]any) *ValidationResult {
	var errs []string
	rawURL := strings.TrimSpace(configString(config, "url"))
	if rawURL == "" {
		errs = append(errs, "url is required")
	} else if rawURL == urlPlaceholder {
		errs = append(errs, "url is still the editor placeholder")
	}
	if method := configString(config, "method"); method != "" {
		switch strings.ToUpper(method) {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			errs = append(errs, fmt.Sprintf("unsupported HTTP method %q", method))
		}
	}
	if len(errs) > 0 {
		return invalidConfig(errs...)
	}
	return validConfig()
}

// applyResponseMapping builds the output by resolving each mapped JSON
// path against the parsed body.
func applyResponseMapping(body any, mapping map[string]string) map[string]any {
	scope, _ := body.(map[string]any)
	output := make(map[string]any, len(mapping))
	for key, path := range mapping {
		if scope == nil {
			output[key] = nil
			continue
		}
		value, _ := paths.GetNestedValue(scope, path)
		output[key] = value
	}
	return output
}

// shapeResponse applies the default output shaping: arrays become
// {data, count}, objects spread directly, scalars become {response}.
func shapeResponse(body any) map[string]any {
	switch v := body.(type) {
	case []any:
		return map[string]any{"data": v, "count": len(v)}
	case map[string]any:
		return v
	default:
		return map[string]any{"response": v}
	}
}
