package models

import (
	"time"
)

// TriggerType is the activation mode of a trigger.
type TriggerType string

const (
	TriggerTypeManual    TriggerType = "MANUAL"
	TriggerTypeScheduled TriggerType = "SCHEDULED"
	TriggerTypeWebhook   TriggerType = "WEBHOOK"
	TriggerTypeEvent     TriggerType = "EVENT"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerTypeManual, TriggerTypeScheduled, TriggerTypeWebhook, TriggerTypeEvent:
		return true
	default:
		return false
	}
}

// Trigger execution outcomes recorded on the trigger.
const (
	TriggerExecutionStarted = "STARTED"
	TriggerExecutionFailed  = "FAILED"
)

const (
	DefaultTriggerTimezone       = "UTC"
	DefaultTriggerTimeoutSeconds = 300
)

// TriggerConfig holds the type-specific settings of a trigger.
type TriggerConfig struct {
	// Scheduled
	CronExpression string     `json:"cron_expression,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	MaxExecutions  int        `json:"max_executions,omitempty"  validate:"gte=0"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`

	// Webhook
	WebhookSecret     string            `json:"webhook_secret,omitempty"`
	AllowedMethods    []string          `json:"allowed_methods,omitempty"`
	IPWhitelist       []string          `json:"ip_whitelist,omitempty"`
	RequiredHeaders   map[string]string `json:"required_headers,omitempty"`
	PathParamMapping  map[string]string `json:"path_param_mapping,omitempty"`
	QueryParamMapping map[string]string `json:"query_param_mapping,omitempty"`
	BodyMapping       map[string]string `json:"body_mapping,omitempty"`
	BodySchema        map[string]any    `json:"body_schema,omitempty"`

	// Event
	EventType        string            `json:"event_type,omitempty"`
	EventSource      string            `json:"event_source,omitempty"`
	EventFilters     map[string]any    `json:"event_filters,omitempty"`
	EventDataMapping map[string]string `json:"event_data_mapping,omitempty"`

	RetryAttempts     int            `json:"retry_attempts,omitempty"      validate:"gte=0"`
	RetryDelaySeconds int            `json:"retry_delay_seconds,omitempty" validate:"gte=0"`
	TimeoutSeconds    int            `json:"timeout_seconds,omitempty"     validate:"gte=0"`
	CustomConfig      map[string]any `json:"custom_config,omitempty"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *TriggerConfig) ApplyDefaults(triggerType TriggerType) {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTriggerTimeoutSeconds
	}

	switch triggerType {
	case TriggerTypeScheduled:
		if c.Timezone == "" {
			c.Timezone = DefaultTriggerTimezone
		}
	case TriggerTypeWebhook:
		if len(c.AllowedMethods) == 0 {
			c.AllowedMethods = []string{"POST"}
		}
	case TriggerTypeManual, TriggerTypeEvent:
	}
}

// WorkflowTrigger binds an activation mode to a workflow.
type WorkflowTrigger struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"                            validate:"required,min=1,max=255"`
	Description         string         `json:"description,omitempty"`
	WorkflowID          string         `json:"workflow_id"                     validate:"required"`
	ProjectID           string         `json:"project_id"                      validate:"required"`
	Type                TriggerType    `json:"type"                            validate:"required,oneof=MANUAL SCHEDULED WEBHOOK EVENT"`
	Config              TriggerConfig  `json:"config"`
	DefaultInputs       map[string]any `json:"default_inputs,omitempty"`
	Enabled             bool           `json:"enabled"`
	CreatedBy           string         `json:"created_by,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	ExecutionCount      int64          `json:"execution_count"`
	LastExecutionAt     *time.Time     `json:"last_execution_at,omitempty"`
	LastExecutionStatus string         `json:"last_execution_status,omitempty"`
	LastExecutionID     string         `json:"last_execution_id,omitempty"`
}

// TriggerStats summarises the activity of a trigger.
type TriggerStats struct {
	TriggerID           string      `json:"trigger_id"`
	Name                string      `json:"name"`
	Type                TriggerType `json:"type"`
	Enabled             bool        `json:"enabled"`
	ExecutionCount      int64       `json:"execution_count"`
	LastExecutionAt     *time.Time  `json:"last_execution_at,omitempty"`
	LastExecutionStatus string      `json:"last_execution_status,omitempty"`
	NextExecutionAt     *time.Time  `json:"next_execution_at,omitempty"`
}
