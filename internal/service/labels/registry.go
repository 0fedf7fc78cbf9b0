// Package labels manages the mapping between semantic labels and the
// provider's label ids, including auto-provisioning missing labels.
package labels

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
)

// Mailbox is the slice of the provider client the registry needs.
type Mailbox interface {
	ListLabels(ctx context.Context) ([]model.ProviderLabel, error)
	CreateLabel(ctx context.Context, name string) (string, error)
}

// MailboxFactory yields a fresh mailbox client per operation.
type MailboxFactory interface {
	Mailbox(ctx context.Context) (Mailbox, error)
}

type settingsStore interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Registry reads and writes the semantic-to-provider label mapping.
type Registry struct {
	mailbox  MailboxFactory
	settings settingsStore
	logger   *zap.Logger
}

func NewRegistry(mailbox MailboxFactory, settings settingsStore, logger *zap.Logger) *Registry {
	return &Registry{mailbox: mailbox, settings: settings, logger: logger}
}

// ListProviderLabels returns the mailbox's user-defined labels.
func (r *Registry) ListProviderLabels(ctx context.Context) ([]model.ProviderLabel, error) {
	client, err := r.mailbox.Mailbox(ctx)
	if err != nil {
		return nil, err
	}
	return client.ListLabels(ctx)
}

// GetMapping returns the stored mapping, empty when none has been configured.
func (r *Registry) GetMapping(ctx context.Context) (model.LabelMapping, error) {
	var mapping model.LabelMapping
	ok, err := r.settings.Get(ctx, model.SettingLabels, &mapping)
	if err != nil {
		return nil, fmt.Errorf("read label mapping: %w", err)
	}
	if !ok || mapping == nil {
		return model.LabelMapping{}, nil
	}
	return mapping, nil
}

// SetMapping replaces the stored mapping wholesale. Keys must be known
// semantic labels; partial updates are not supported, the caller always sends
// the full mapping.
func (r *Registry) SetMapping(ctx context.Context, mapping model.LabelMapping) error {
	for label := range mapping {
		if !label.Valid() {
			return apperr.Config("unknown semantic label %q", label)
		}
	}
	if err := r.settings.Set(ctx, model.SettingLabels, mapping); err != nil {
		return fmt.Errorf("persist label mapping: %w", err)
	}
	return nil
}

// AutoProvision creates a provider label for every semantic label missing
// from the current mapping, using the configured display names, and persists
// the completed mapping. Nothing is persisted unless every missing label was
// created, so a half-provisioned run can simply be retried.
func (r *Registry) AutoProvision(ctx context.Context) (model.LabelMapping, error) {
	mapping, err := r.GetMapping(ctx)
	if err != nil {
		return nil, err
	}

	var displayNames map[model.SemanticLabel]string
	ok, err := r.settings.Get(ctx, model.SettingLangLabels, &displayNames)
	if err != nil {
		return nil, fmt.Errorf("read label display names: %w", err)
	}
	if !ok {
		return nil, apperr.Config("label display names are not configured")
	}

	missing := make([]model.SemanticLabel, 0)
	for _, label := range model.AllSemanticLabels() {
		if _, mapped := mapping[label]; !mapped {
			missing = append(missing, label)
		}
	}
	if len(missing) == 0 {
		return mapping, nil
	}

	client, err := r.mailbox.Mailbox(ctx)
	if err != nil {
		return nil, err
	}

	created := make(model.LabelMapping, len(missing))
	for _, label := range missing {
		name, ok := displayNames[label]
		if !ok || name == "" {
			return nil, apperr.Config("no display name configured for label %q", label)
		}
		id, err := client.CreateLabel(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("create label %q: %w", name, err)
		}
		created[label] = id
		r.logger.Info("provisioned provider label",
			zap.String("label", string(label)),
			zap.String("name", name),
			zap.String("provider_id", id))
	}

	for label, id := range created {
		mapping[label] = id
	}
	if err := r.settings.Set(ctx, model.SettingLabels, mapping); err != nil {
		return nil, fmt.Errorf("persist label mapping: %w", err)
	}
	return mapping, nil
}
