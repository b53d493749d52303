// Package webhook turns inbound HTTP calls into trigger fires.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowgraph/pkg/graph"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/registry"
	"github.com/dukex/flowgraph/pkg/triggers"
	"github.com/dukex/flowgraph/pkg/workflow"
)

const (
	SecretHeader    = "x-webhook-secret"
	SignatureHeader = "x-webhook-signature"
)

// Request is the transport-independent view of an inbound webhook call.
// Header names are lower case.
type Request struct {
	TriggerID  string
	Method     string
	Headers    map[string]string
	Query      map[string]string
	PathParams map[string]string
	Body       []byte
	ClientIP   string
}

// Result is the outcome of processing a webhook. StatusCode reflects trigger
// resolution and execution start only, not the execution itself.
type Result struct {
	StatusCode  int            `json:"-"`
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	ExecutionID string         `json:"workflow_execution_id,omitempty"`
	TriggerID   string         `json:"trigger_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Inputs      map[string]any `json:"-"`
}

type TriggerGetter interface {
	Get(ctx context.Context, id string) (*models.WorkflowTrigger, error)
}

type Processor struct {
	logger     *slog.Logger
	triggers   TriggerGetter
	dispatcher triggers.Firer
	now        func() time.Time
}

func NewProcessor(logger *slog.Logger, getter TriggerGetter, dispatcher triggers.Firer) *Processor {
	return &Processor{
		logger:     logger.With("module", "webhook_processor"),
		triggers:   getter,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Process authenticates the call against the trigger configuration, maps it to
// workflow parameters and fires the trigger.
func (p *Processor) Process(ctx context.Context, req Request) Result {
	logger := p.logger.With("trigger_id", req.TriggerID, "method", req.Method, "client_ip", req.ClientIP)

	trigger, err := p.triggers.Get(ctx, req.TriggerID)
	if err != nil {
		if persistence.IsTriggerNotFound(err) {
			logger.WarnContext(ctx, "webhook trigger not found")

			return p.failure(req.TriggerID, http.StatusNotFound, "trigger not found")
		}

		logger.ErrorContext(ctx, "failed to load webhook trigger", "error", err)

		return p.failure(req.TriggerID, http.StatusInternalServerError, "failed to load trigger")
	}

	result, ok := p.authorize(trigger, req)
	if !ok {
		logger.WarnContext(ctx, "webhook rejected", "status", result.StatusCode, "reason", result.Message)

		return result
	}

	body, err := parseBody(req.Body)
	if err != nil {
		return p.failure(trigger.ID, http.StatusBadRequest, err.Error())
	}

	if len(trigger.Config.BodySchema) > 0 {
		err = registry.ValidateSchema(trigger.Config.BodySchema, body)
		if err != nil {
			logger.WarnContext(ctx, "webhook body rejected", "error", err)

			return p.failure(trigger.ID, http.StatusBadRequest, err.Error())
		}
	}

	inputs := p.inputs(trigger, req, body)

	execution, err := p.dispatcher.Fire(ctx, triggers.FireRequest{
		TriggerID:  trigger.ID,
		Type:       models.TriggerTypeWebhook,
		Parameters: inputs,
	})
	if err != nil {
		return p.failure(trigger.ID, fireStatus(err), err.Error())
	}

	return Result{
		StatusCode:  http.StatusAccepted,
		Success:     true,
		Message:     "workflow triggered",
		ExecutionID: execution.ID,
		TriggerID:   trigger.ID,
		Timestamp:   p.now(),
		Inputs:      inputs,
	}
}

func (p *Processor) authorize(trigger *models.WorkflowTrigger, req Request) (Result, bool) {
	config := trigger.Config

	switch {
	case !trigger.Enabled:
		return p.failure(trigger.ID, http.StatusForbidden, "trigger is disabled"), false
	case trigger.Type != models.TriggerTypeWebhook:
		return p.failure(trigger.ID, http.StatusBadRequest, "trigger is not a webhook trigger"), false
	case len(config.AllowedMethods) > 0 && !slices.Contains(config.AllowedMethods, strings.ToUpper(req.Method)):
		return p.failure(trigger.ID, http.StatusMethodNotAllowed, "method not allowed"), false
	case !ipAllowed(config.IPWhitelist, req.ClientIP):
		return p.failure(trigger.ID, http.StatusForbidden, "ip not allowed"), false
	case !secretValid(config.WebhookSecret, req):
		return p.failure(trigger.ID, http.StatusUnauthorized, "invalid webhook secret"), false
	case !headersPresent(config.RequiredHeaders, req.Headers):
		return p.failure(trigger.ID, http.StatusBadRequest, "missing required headers"), false
	}

	return Result{}, true
}

func (p *Processor) inputs(trigger *models.WorkflowTrigger, req Request, body any) map[string]any {
	config := trigger.Config

	inputs := map[string]any{
		"trigger_id":   trigger.ID,
		"trigger_type": string(trigger.Type),
		"timestamp":    p.now().Format(time.RFC3339),
		"webhook": map[string]any{
			"method":      strings.ToUpper(req.Method),
			"headers":     req.Headers,
			"query":       req.Query,
			"path_params": req.PathParams,
			"client_ip":   req.ClientIP,
		},
	}

	for param, name := range config.PathParamMapping {
		if value, ok := req.PathParams[param]; ok {
			inputs[name] = value
		}
	}

	for param, name := range config.QueryParamMapping {
		if value, ok := req.Query[param]; ok {
			inputs[name] = value
		}
	}

	if body == nil {
		return inputs
	}

	if len(config.BodyMapping) == 0 {
		inputs["body"] = body

		return inputs
	}

	fields, ok := body.(map[string]any)
	if !ok {
		return inputs
	}

	for field, name := range config.BodyMapping {
		if value, ok := fields[field]; ok && value != nil {
			inputs[name] = value
		}
	}

	return inputs
}

func (p *Processor) failure(triggerID string, status int, message string) Result {
	return Result{StatusCode: status, Message: message, TriggerID: triggerID, Timestamp: p.now()}
}

func fireStatus(err error) int {
	switch {
	case persistence.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, triggers.ErrTriggerDisabled):
		return http.StatusForbidden
	case errors.Is(err, triggers.ErrTriggerType):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrWorkflowArchived), errors.Is(err, workflow.ErrNoCurrentVersion):
		return http.StatusConflict
	case graph.IsValidationError(err), errors.Is(err, registry.ErrExecutorNotFound), errors.Is(err, registry.ErrSchemaViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseBody decodes a JSON body. A body that is not JSON is kept as a string.
func parseBody(raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}

	var body any

	err := json.Unmarshal(raw, &body)
	if err != nil {
		return string(raw), nil
	}

	return body, nil
}

func ipAllowed(whitelist []string, clientIP string) bool {
	if len(whitelist) == 0 {
		return true
	}

	addr, err := netip.ParseAddr(clientIP)

	for _, entry := range whitelist {
		if entry == clientIP {
			return true
		}

		if err != nil || !strings.Contains(entry, "/") {
			continue
		}

		prefix, perr := netip.ParsePrefix(entry)
		if perr == nil && prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// secretValid accepts either the shared secret in SecretHeader or a base64
// HMAC-SHA256 of the raw body keyed by the secret in SignatureHeader.
func secretValid(secret string, req Request) bool {
	if secret == "" {
		return true
	}

	provided, ok := req.Headers[SecretHeader]
	if ok && subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1 {
		return true
	}

	signature, ok := req.Headers[SignatureHeader]
	if !ok {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(decoded, Sign(secret, req.Body))
}

// Sign computes the HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return mac.Sum(nil)
}

func headersPresent(required, headers map[string]string) bool {
	for name, want := range required {
		got, ok := headers[strings.ToLower(name)]
		if !ok || got != want {
			return false
		}
	}

	return true
}
