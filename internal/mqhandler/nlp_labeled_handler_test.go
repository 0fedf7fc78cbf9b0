package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "mailroom/contracts/mq"
	"mailroom/internal/apperr"
	"mailroom/internal/model"
	"mailroom/internal/repository"
)

type fakeEmailStore struct {
	byID      map[int]*model.Email
	byGmailID map[string]*model.Email
	updated   map[int][]model.SemanticLabel
	updateErr error
}

func newFakeEmailStore(emails ...*model.Email) *fakeEmailStore {
	s := &fakeEmailStore{
		byID:      map[int]*model.Email{},
		byGmailID: map[string]*model.Email{},
		updated:   map[int][]model.SemanticLabel{},
	}
	for _, e := range emails {
		s.byID[e.ID] = e
		s.byGmailID[e.GmailMessageID] = e
	}
	return s
}

func (s *fakeEmailStore) FindByID(_ context.Context, id int) (*model.Email, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e, nil
}

func (s *fakeEmailStore) FindByGmailMessageID(_ context.Context, gmailID string) (*model.Email, error) {
	e, ok := s.byGmailID[gmailID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e, nil
}

func (s *fakeEmailStore) UpdateSemanticLabels(_ context.Context, id int, labels []model.SemanticLabel) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated[id] = labels
	return nil
}

type fakeMapper struct {
	mapping model.LabelMapping
	err     error
}

func (m *fakeMapper) GetMapping(context.Context) (model.LabelMapping, error) {
	return m.mapping, m.err
}

type fakeWriter struct {
	applied map[string][]string
	err     error
}

func (w *fakeWriter) AddLabels(_ context.Context, messageID string, labelIDs []string) error {
	if w.err != nil {
		return w.err
	}
	if w.applied == nil {
		w.applied = map[string][]string{}
	}
	w.applied[messageID] = labelIDs
	return nil
}

type fakeWriterFactory struct {
	writer *fakeWriter
	err    error
}

func (f *fakeWriterFactory) Mailbox(context.Context) (LabelWriter, error) {
	return f.writer, f.err
}

type fakeDeduper struct {
	acquired bool
	calls    int
}

func (d *fakeDeduper) AcquireOnce(context.Context, string, int) bool {
	d.calls++
	return d.acquired
}

func payloadJSON(t *testing.T, payload contracts.NlpLabeledPayload) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func storedEmail() *model.Email {
	return &model.Email{ID: 7, GmailMessageID: "gm-7"}
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	h := NewNlpLabeledHandler(newFakeEmailStore(), &fakeMapper{}, &fakeWriterFactory{}, &fakeDeduper{}, zap.NewNop())

	err := h.Handle(context.Background(), json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.True(t, apperr.IsMalformed(err))
}

func TestHandleRejectsPayloadWithoutReference(t *testing.T) {
	h := NewNlpLabeledHandler(newFakeEmailStore(), &fakeMapper{}, &fakeWriterFactory{}, &fakeDeduper{}, zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Labels: []model.SemanticLabel{model.LabelInquiry},
	}))
	require.Error(t, err)
	assert.True(t, apperr.IsMalformed(err))
}

func TestHandleRejectsUnknownLabels(t *testing.T) {
	h := NewNlpLabeledHandler(newFakeEmailStore(storedEmail()), &fakeMapper{}, &fakeWriterFactory{}, &fakeDeduper{}, zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 7},
		Labels:   []model.SemanticLabel{"made_up"},
	}))
	require.Error(t, err)
	assert.True(t, apperr.IsMalformed(err))
}

func TestHandleDropsResultForUnknownMessage(t *testing.T) {
	store := newFakeEmailStore()
	h := NewNlpLabeledHandler(store, &fakeMapper{}, &fakeWriterFactory{}, &fakeDeduper{}, zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 99, GmailMessageID: "gm-99"},
		Labels:   []model.SemanticLabel{model.LabelInquiry},
	}))
	assert.NoError(t, err)
	assert.Empty(t, store.updated)
}

func TestHandleFallsBackToGmailMessageID(t *testing.T) {
	email := storedEmail()
	store := newFakeEmailStore(email)
	writer := &fakeWriter{}
	h := NewNlpLabeledHandler(store,
		&fakeMapper{mapping: model.LabelMapping{model.LabelInquiry: "Label_inq"}},
		&fakeWriterFactory{writer: writer},
		&fakeDeduper{acquired: true},
		zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 12345, GmailMessageID: "gm-7"},
		Labels:   []model.SemanticLabel{model.LabelInquiry},
	}))
	require.NoError(t, err)
	assert.Equal(t, []model.SemanticLabel{model.LabelInquiry}, store.updated[7])
	assert.Equal(t, []string{"Label_inq"}, writer.applied["gm-7"])
}

func TestHandlePersistsAndMirrorsLabels(t *testing.T) {
	email := storedEmail()
	store := newFakeEmailStore(email)
	writer := &fakeWriter{}
	dedup := &fakeDeduper{acquired: true}
	h := NewNlpLabeledHandler(store,
		&fakeMapper{mapping: model.LabelMapping{
			model.LabelInquiry:  "Label_inq",
			model.LabelAcademic: "Label_aca",
		}},
		&fakeWriterFactory{writer: writer},
		dedup,
		zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 7},
		Labels:   []model.SemanticLabel{model.LabelInquiry, model.LabelAcademic},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Label_inq", "Label_aca"}, writer.applied["gm-7"])
}

func TestHandleSkipsUnmappedLabelsButPersists(t *testing.T) {
	store := newFakeEmailStore(storedEmail())
	writer := &fakeWriter{}
	h := NewNlpLabeledHandler(store,
		&fakeMapper{mapping: model.LabelMapping{}},
		&fakeWriterFactory{writer: writer},
		&fakeDeduper{acquired: true},
		zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 7},
		Labels:   []model.SemanticLabel{model.LabelGraduation},
	}))
	require.NoError(t, err)
	assert.Equal(t, []model.SemanticLabel{model.LabelGraduation}, store.updated[7])
	assert.Empty(t, writer.applied)
}

func TestHandleRedeliveryDoesNotReapplyProviderLabels(t *testing.T) {
	store := newFakeEmailStore(storedEmail())
	writer := &fakeWriter{}
	dedup := &fakeDeduper{acquired: false}
	h := NewNlpLabeledHandler(store,
		&fakeMapper{mapping: model.LabelMapping{model.LabelInquiry: "Label_inq"}},
		&fakeWriterFactory{writer: writer},
		dedup,
		zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 7},
		Labels:   []model.SemanticLabel{model.LabelInquiry},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, dedup.calls)
	assert.Empty(t, writer.applied)
	// The stored labels are still written on every delivery.
	assert.Equal(t, []model.SemanticLabel{model.LabelInquiry}, store.updated[7])
}

func TestHandleProviderFailureIsSwallowed(t *testing.T) {
	store := newFakeEmailStore(storedEmail())
	h := NewNlpLabeledHandler(store,
		&fakeMapper{mapping: model.LabelMapping{model.LabelInquiry: "Label_inq"}},
		&fakeWriterFactory{writer: &fakeWriter{err: errors.New("gmail down")}},
		&fakeDeduper{acquired: true},
		zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 7},
		Labels:   []model.SemanticLabel{model.LabelInquiry},
	}))
	assert.NoError(t, err)
	assert.Equal(t, []model.SemanticLabel{model.LabelInquiry}, store.updated[7])
}

func TestHandleStorageFailureIsRetryable(t *testing.T) {
	store := newFakeEmailStore(storedEmail())
	store.updateErr = errors.New("db down")
	h := NewNlpLabeledHandler(store, &fakeMapper{}, &fakeWriterFactory{}, &fakeDeduper{}, zap.NewNop())

	err := h.Handle(context.Background(), payloadJSON(t, contracts.NlpLabeledPayload{
		Internal: &contracts.NlpLabeledInternal{ID: 7},
		Labels:   []model.SemanticLabel{model.LabelInquiry},
	}))
	require.Error(t, err)
	assert.False(t, apperr.IsMalformed(err))
}
