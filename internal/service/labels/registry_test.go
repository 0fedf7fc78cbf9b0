package labels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
)

type fakeSettings struct {
	values map[string]any
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]any{}}
}

func (s *fakeSettings) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	v, ok := s.values[key]
	if !ok {
		return false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dest)
}

func (s *fakeSettings) Set(_ context.Context, key string, value interface{}) error {
	s.values[key] = value
	return nil
}

type fakeMailbox struct {
	labels    []model.ProviderLabel
	created   []string
	createErr map[string]error
}

func (m *fakeMailbox) ListLabels(context.Context) ([]model.ProviderLabel, error) {
	return m.labels, nil
}

func (m *fakeMailbox) CreateLabel(_ context.Context, name string) (string, error) {
	if err, ok := m.createErr[name]; ok {
		return "", err
	}
	m.created = append(m.created, name)
	return "Label_" + name, nil
}

type fakeFactory struct {
	mailbox *fakeMailbox
	err     error
	builds  int
}

func (f *fakeFactory) Mailbox(context.Context) (Mailbox, error) {
	f.builds++
	return f.mailbox, f.err
}

func displayNamesForAll() map[string]string {
	names := map[string]string{}
	for _, label := range model.AllSemanticLabels() {
		names[string(label)] = "Display " + string(label)
	}
	return names
}

func TestMappingRoundTrip(t *testing.T) {
	settings := newFakeSettings()
	r := NewRegistry(&fakeFactory{}, settings, zap.NewNop())

	mapping, err := r.GetMapping(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mapping)

	want := model.LabelMapping{
		model.LabelInquiry:        "Label_1",
		model.LabelAdministrative: "Label_2",
	}
	require.NoError(t, r.SetMapping(context.Background(), want))

	got, err := r.GetMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetMappingReplacesWholesale(t *testing.T) {
	settings := newFakeSettings()
	r := NewRegistry(&fakeFactory{}, settings, zap.NewNop())

	require.NoError(t, r.SetMapping(context.Background(), model.LabelMapping{
		model.LabelInquiry:  "Label_1",
		model.LabelAcademic: "Label_2",
	}))
	require.NoError(t, r.SetMapping(context.Background(), model.LabelMapping{
		model.LabelInquiry: "Label_9",
	}))

	got, err := r.GetMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.LabelMapping{model.LabelInquiry: "Label_9"}, got)
}

func TestSetMappingRejectsUnknownLabels(t *testing.T) {
	r := NewRegistry(&fakeFactory{}, newFakeSettings(), zap.NewNop())

	err := r.SetMapping(context.Background(), model.LabelMapping{"bogus": "Label_1"})
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
}

func TestAutoProvisionCreatesMissingLabels(t *testing.T) {
	settings := newFakeSettings()
	settings.values[model.SettingLangLabels] = displayNamesForAll()
	settings.values[model.SettingLabels] = model.LabelMapping{
		model.LabelInquiry: "Label_existing",
	}
	mailbox := &fakeMailbox{}
	r := NewRegistry(&fakeFactory{mailbox: mailbox}, settings, zap.NewNop())

	mapping, err := r.AutoProvision(context.Background())
	require.NoError(t, err)

	assert.Len(t, mapping, len(model.AllSemanticLabels()))
	assert.Equal(t, "Label_existing", mapping[model.LabelInquiry])
	assert.Len(t, mailbox.created, len(model.AllSemanticLabels())-1)
}

func TestAutoProvisionIsIdempotentWhenComplete(t *testing.T) {
	settings := newFakeSettings()
	settings.values[model.SettingLangLabels] = displayNamesForAll()
	full := model.LabelMapping{}
	for _, label := range model.AllSemanticLabels() {
		full[label] = "Label_" + string(label)
	}
	settings.values[model.SettingLabels] = full

	factory := &fakeFactory{mailbox: &fakeMailbox{}}
	r := NewRegistry(factory, settings, zap.NewNop())

	mapping, err := r.AutoProvision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, full, mapping)
	assert.Zero(t, factory.builds)
}

func TestAutoProvisionRequiresDisplayNames(t *testing.T) {
	settings := newFakeSettings()
	r := NewRegistry(&fakeFactory{mailbox: &fakeMailbox{}}, settings, zap.NewNop())

	_, err := r.AutoProvision(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
}

func TestAutoProvisionAbortsOnPartialFailure(t *testing.T) {
	settings := newFakeSettings()
	names := displayNamesForAll()
	settings.values[model.SettingLangLabels] = names

	failing := names[string(model.AllSemanticLabels()[2])]
	mailbox := &fakeMailbox{createErr: map[string]error{failing: errors.New("quota exceeded")}}
	r := NewRegistry(&fakeFactory{mailbox: mailbox}, settings, zap.NewNop())

	_, err := r.AutoProvision(context.Background())
	require.Error(t, err)

	// Nothing was persisted; a retry starts from a clean slate.
	_, stored := settings.values[model.SettingLabels]
	assert.False(t, stored)
}

func TestAutoProvisionRequiresEveryDisplayName(t *testing.T) {
	settings := newFakeSettings()
	names := displayNamesForAll()
	missing := model.AllSemanticLabels()[0]
	delete(names, string(missing))
	settings.values[model.SettingLangLabels] = names

	r := NewRegistry(&fakeFactory{mailbox: &fakeMailbox{}}, settings, zap.NewNop())

	_, err := r.AutoProvision(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
	assert.Contains(t, err.Error(), fmt.Sprintf("%q", missing))
}
