package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowgraph/pkg/locker"
	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/schedule"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

var webhookMethods = []string{"GET", "POST", "PUT", "DELETE"}

// TriggerManager owns trigger definitions. Mutations of one trigger, including
// the counters written by the trigger channels, are serialized by its lock.
type TriggerManager struct {
	logger    *slog.Logger
	triggers  persistence.TriggerRepository
	workflows persistence.WorkflowRepository
	locker    locker.Locker
	validate  *validator.Validate
	now       func() time.Time
}

func NewTriggerManager(logger *slog.Logger, p persistence.Persistence, lock locker.Locker) *TriggerManager {
	return &TriggerManager{
		logger:    logger.With("module", "trigger_manager"),
		triggers:  p.TriggerRepository(),
		workflows: p.WorkflowRepository(),
		locker:    lock,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateTriggerRequest struct {
	Name          string               `json:"name"           validate:"required,max=255"`
	Description   string               `json:"description"`
	WorkflowID    string               `json:"workflow_id"    validate:"required"`
	ProjectID     string               `json:"project_id"     validate:"required"`
	Type          models.TriggerType   `json:"type"           validate:"required"`
	Config        models.TriggerConfig `json:"config"`
	DefaultInputs map[string]any       `json:"default_inputs"`
	Enabled       *bool                `json:"enabled"`
	CreatedBy     string               `json:"created_by"`
}

type UpdateTriggerRequest struct {
	Name          *string               `json:"name"           validate:"omitempty,min=1,max=255"`
	Description   *string               `json:"description"`
	Config        *models.TriggerConfig `json:"config"`
	DefaultInputs map[string]any        `json:"default_inputs"`
	Enabled       *bool                 `json:"enabled"`
}

// Create validates and stores a trigger. Nothing is persisted when the
// request, the name or the type-specific configuration is rejected.
func (m *TriggerManager) Create(ctx context.Context, req CreateTriggerRequest) (*models.WorkflowTrigger, error) {
	err := m.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("CreateTrigger", "INVALID_TRIGGER", err.Error(), err)
	}

	if !req.Type.Valid() {
		return nil, NewValidationError("CreateTrigger", "INVALID_TRIGGER_TYPE",
			fmt.Sprintf("unknown trigger type %q", req.Type), ErrInvalidTriggerType)
	}

	_, err = m.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	unlock, err := m.lockName(ctx, req.ProjectID, req.Name)
	if err != nil {
		return nil, err
	}

	defer m.unlock(ctx, req.Name, unlock)

	err = m.ensureUniqueName(ctx, req.ProjectID, req.Name, "")
	if err != nil {
		return nil, err
	}

	config := req.Config
	config.ApplyDefaults(req.Type)

	err = m.validateConfig(req.Type, &config)
	if err != nil {
		return nil, err
	}

	if req.Type == models.TriggerTypeWebhook && config.WebhookSecret == "" {
		config.WebhookSecret = newWebhookSecret()
	}

	now := m.now()
	trigger := &models.WorkflowTrigger{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		WorkflowID:    req.WorkflowID,
		ProjectID:     req.ProjectID,
		Type:          req.Type,
		Config:        config,
		DefaultInputs: req.DefaultInputs,
		Enabled:       req.Enabled == nil || *req.Enabled,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = m.triggers.Save(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	m.logger.InfoContext(ctx, "trigger created",
		"trigger_id", trigger.ID, "workflow_id", trigger.WorkflowID, "type", trigger.Type)

	return trigger, nil
}

// Update changes the set fields of a trigger. The type is immutable.
func (m *TriggerManager) Update(ctx context.Context, id string, req UpdateTriggerRequest) (*models.WorkflowTrigger, error) {
	err := m.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("UpdateTrigger", "INVALID_TRIGGER", err.Error(), err)
	}

	if req.Name != nil {
		current, err := m.triggers.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		unlock, err := m.lockName(ctx, current.ProjectID, *req.Name)
		if err != nil {
			return nil, err
		}

		defer m.unlock(ctx, *req.Name, unlock)
	}

	var updated *models.WorkflowTrigger

	err = m.withLock(ctx, id, func(trigger *models.WorkflowTrigger) error {
		if req.Name != nil && *req.Name != trigger.Name {
			err := m.ensureUniqueName(ctx, trigger.ProjectID, *req.Name, trigger.ID)
			if err != nil {
				return err
			}

			trigger.Name = *req.Name
		}

		if req.Description != nil {
			trigger.Description = *req.Description
		}

		if req.Config != nil {
			config := *req.Config
			config.ApplyDefaults(trigger.Type)

			err := m.validateConfig(trigger.Type, &config)
			if err != nil {
				return err
			}

			if trigger.Type == models.TriggerTypeWebhook && config.WebhookSecret == "" {
				config.WebhookSecret = trigger.Config.WebhookSecret
			}

			trigger.Config = config
		}

		if req.DefaultInputs != nil {
			trigger.DefaultInputs = req.DefaultInputs
		}

		if req.Enabled != nil {
			trigger.Enabled = *req.Enabled
		}

		updated = trigger

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (m *TriggerManager) Enable(ctx context.Context, id string) (*models.WorkflowTrigger, error) {
	enabled := true

	return m.Update(ctx, id, UpdateTriggerRequest{Enabled: &enabled})
}

func (m *TriggerManager) Disable(ctx context.Context, id string) (*models.WorkflowTrigger, error) {
	enabled := false

	return m.Update(ctx, id, UpdateTriggerRequest{Enabled: &enabled})
}

func (m *TriggerManager) Delete(ctx context.Context, id string) error {
	unlock, err := m.Lock(ctx, id)
	if err != nil {
		return err
	}

	defer m.unlock(ctx, id, unlock)

	return m.triggers.Delete(ctx, id)
}

func (m *TriggerManager) Get(ctx context.Context, id string) (*models.WorkflowTrigger, error) {
	return m.triggers.GetByID(ctx, id)
}

func (m *TriggerManager) ListByProject(ctx context.Context, projectID string) ([]*models.WorkflowTrigger, error) {
	return m.triggers.ListByProject(ctx, projectID)
}

func (m *TriggerManager) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowTrigger, error) {
	return m.triggers.ListByWorkflow(ctx, workflowID)
}

func (m *TriggerManager) ListByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	if !triggerType.Valid() {
		return nil, NewValidationError("ListByType", "INVALID_TRIGGER_TYPE",
			fmt.Sprintf("unknown trigger type %q", triggerType), ErrInvalidTriggerType)
	}

	return m.triggers.ListByType(ctx, triggerType)
}

func (m *TriggerManager) ListEnabled(ctx context.Context) ([]*models.WorkflowTrigger, error) {
	return m.triggers.ListEnabled(ctx)
}

func (m *TriggerManager) ListEnabledByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error) {
	return m.triggers.ListEnabledByType(ctx, triggerType)
}

// Stats summarises a trigger. Enabled scheduled triggers also report their
// next fire time.
func (m *TriggerManager) Stats(ctx context.Context, id string) (*models.TriggerStats, error) {
	trigger, err := m.triggers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &models.TriggerStats{
		TriggerID:           trigger.ID,
		Name:                trigger.Name,
		Type:                trigger.Type,
		Enabled:             trigger.Enabled,
		ExecutionCount:      trigger.ExecutionCount,
		LastExecutionAt:     trigger.LastExecutionAt,
		LastExecutionStatus: trigger.LastExecutionStatus,
	}

	if trigger.Type == models.TriggerTypeScheduled && trigger.Enabled {
		next, err := schedule.Next(trigger.Config.CronExpression, trigger.Config.Timezone, m.now())
		if err == nil {
			stats.NextExecutionAt = &next
		}
	}

	return stats, nil
}

// Lock acquires the per-trigger lock shared with the trigger channels.
func (m *TriggerManager) Lock(ctx context.Context, id string) (locker.Unlock, error) {
	unlock, err := m.locker.Lock(ctx, "trigger:"+id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock trigger %s: %w", id, err)
	}

	return unlock, nil
}

// RecordFire stores the outcome of one fire. The caller must hold the lock
// of trigger.
func (m *TriggerManager) RecordFire(ctx context.Context, trigger *models.WorkflowTrigger, executionID string, fireErr error) error {
	now := m.now()
	trigger.LastExecutionAt = &now

	if fireErr != nil {
		trigger.LastExecutionStatus = models.TriggerExecutionFailed
	} else {
		trigger.ExecutionCount++
		trigger.LastExecutionStatus = models.TriggerExecutionStarted
		trigger.LastExecutionID = executionID
	}

	err := m.triggers.Save(ctx, trigger)
	if err != nil {
		return fmt.Errorf("failed to record trigger fire: %w", err)
	}

	return nil
}

// Retire disables a trigger that will never fire again. The caller must hold
// the lock of trigger.
func (m *TriggerManager) Retire(ctx context.Context, trigger *models.WorkflowTrigger, reason string) error {
	trigger.Enabled = false

	err := m.triggers.Save(ctx, trigger)
	if err != nil {
		return fmt.Errorf("failed to disable trigger: %w", err)
	}

	m.logger.InfoContext(ctx, "trigger disabled", "trigger_id", trigger.ID, "reason", reason)

	return nil
}

// lockName serializes the uniqueness check and the save of a trigger name
// within a project. It is taken before any per-trigger lock.
func (m *TriggerManager) lockName(ctx context.Context, projectID, name string) (locker.Unlock, error) {
	unlock, err := m.locker.Lock(ctx, "trigger-name:"+projectID+":"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to lock trigger name %s: %w", name, err)
	}

	return unlock, nil
}

func (m *TriggerManager) withLock(ctx context.Context, id string, fn func(*models.WorkflowTrigger) error) error {
	unlock, err := m.Lock(ctx, id)
	if err != nil {
		return err
	}

	defer m.unlock(ctx, id, unlock)

	trigger, err := m.triggers.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = fn(trigger)
	if err != nil {
		return err
	}

	return m.triggers.Save(ctx, trigger)
}

func (m *TriggerManager) unlock(ctx context.Context, key string, unlock locker.Unlock) {
	err := unlock(context.WithoutCancel(ctx))
	if err != nil {
		m.logger.WarnContext(ctx, "failed to release trigger lock", "key", key, "error", err)
	}
}

func (m *TriggerManager) ensureUniqueName(ctx context.Context, projectID, name, selfID string) error {
	existing, err := m.triggers.GetByProjectAndName(ctx, projectID, name)

	switch {
	case persistence.IsTriggerNotFound(err):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check trigger name: %w", err)
	case existing.ID == selfID:
		return nil
	default:
		return NewConflictError("ensureUniqueName", "DUPLICATE_TRIGGER_NAME",
			fmt.Sprintf("trigger with name %q already exists in this project", name), ErrDuplicateTriggerName)
	}
}

func (m *TriggerManager) validateConfig(triggerType models.TriggerType, config *models.TriggerConfig) error {
	err := m.validate.Struct(config)
	if err != nil {
		return NewValidationError("validateConfig", "INVALID_TRIGGER_CONFIG", err.Error(), ErrInvalidTriggerConfig)
	}

	switch triggerType {
	case models.TriggerTypeScheduled:
		return validateScheduled(config)
	case models.TriggerTypeWebhook:
		return validateWebhook(config)
	case models.TriggerTypeEvent:
		if strings.TrimSpace(config.EventType) == "" {
			return NewValidationError("validateConfig", "EVENT_TYPE_REQUIRED",
				"event type is required for event triggers", ErrInvalidTriggerConfig)
		}
	case models.TriggerTypeManual:
	}

	return nil
}

func validateScheduled(config *models.TriggerConfig) error {
	if strings.TrimSpace(config.CronExpression) == "" {
		return NewValidationError("validateConfig", "CRON_REQUIRED",
			"cron expression is required for scheduled triggers", ErrInvalidCron)
	}

	err := schedule.Validate(config.CronExpression)
	if err != nil {
		return NewValidationError("validateConfig", "INVALID_CRON", err.Error(), errors.Join(ErrInvalidCron, err))
	}

	_, err = time.LoadLocation(config.Timezone)
	if err != nil {
		return NewValidationError("validateConfig", "INVALID_TIMEZONE",
			fmt.Sprintf("unknown timezone %q", config.Timezone), ErrInvalidTriggerConfig)
	}

	if config.StartDate != nil && config.EndDate != nil && !config.EndDate.After(*config.StartDate) {
		return NewValidationError("validateConfig", "INVALID_DATE_RANGE",
			"end_date must be after start_date", ErrInvalidTriggerConfig)
	}

	return nil
}

func validateWebhook(config *models.TriggerConfig) error {
	for i, method := range config.AllowedMethods {
		method = strings.ToUpper(method)
		if !slices.Contains(webhookMethods, method) {
			return NewValidationError("validateConfig", "INVALID_METHOD",
				fmt.Sprintf("method %q is not supported for webhooks", method), ErrInvalidTriggerConfig)
		}

		config.AllowedMethods[i] = method
	}

	if len(config.BodySchema) > 0 {
		_, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(config.BodySchema))
		if err != nil {
			return NewValidationError("validateConfig", "INVALID_BODY_SCHEMA", err.Error(), ErrInvalidTriggerConfig)
		}
	}

	return nil
}

func newWebhookSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
