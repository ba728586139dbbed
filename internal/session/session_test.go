package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/phone"
)

type fakeGateway struct {
	contacts   []model.Contact
	createErr  error
	importErr  error
	sendErr    error
	created    []model.Contact
	imported   []model.Contact
	sentTo     []model.Recipient
	sentBody   string
	failCreate int // fail the nth create call (1-based), 0 means never
	createdN   int
}

func (g *fakeGateway) ListContacts(context.Context) ([]model.Contact, error) {
	return g.contacts, nil
}

func (g *fakeGateway) CreateContact(_ context.Context, name, number string) (model.Contact, error) {
	g.createdN++
	if g.createErr != nil || (g.failCreate > 0 && g.createdN == g.failCreate) {
		err := g.createErr
		if err == nil {
			err = errors.New("store unavailable")
		}
		return model.Contact{}, err
	}
	c := model.Contact{ID: fmt.Sprintf("c%d", g.createdN), Name: name, Phone: number}
	g.created = append(g.created, c)
	return c, nil
}

func (g *fakeGateway) ImportContacts(_ context.Context, contacts []model.Contact) (int, error) {
	if g.importErr != nil {
		return 0, g.importErr
	}
	g.imported = contacts
	return len(contacts), nil
}

func (g *fakeGateway) SendSMS(_ context.Context, recipients []model.Recipient, message string) (*model.SendReport, error) {
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.sentTo = recipients
	g.sentBody = message
	return &model.SendReport{Sent: len(recipients)}, nil
}

type fakeEvents struct {
	renders map[string]any
	notices []model.Notification
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{renders: make(map[string]any)}
}

func (e *fakeEvents) Render(scope string, data any) {
	e.renders[scope] = data
}

func (e *fakeEvents) Notify(level model.NotificationLevel, message string) {
	e.notices = append(e.notices, model.Notification{Level: level, Message: message})
}

func (e *fakeEvents) lastNotice() model.Notification {
	if len(e.notices) == 0 {
		return model.Notification{}
	}
	return e.notices[len(e.notices)-1]
}

// fakeScheduler hands the armed callback to the test instead of a timer.
type fakeScheduler struct {
	fn       func()
	canceled bool
}

func (s *fakeScheduler) After(_ time.Duration, fn func()) func() bool {
	s.fn = fn
	s.canceled = false
	return func() bool {
		s.canceled = true
		return true
	}
}

func (s *fakeScheduler) fire() {
	if s.fn != nil {
		s.fn()
	}
}

func newTestSession(t *testing.T) (*Session, *fakeGateway, *fakeEvents, *fakeScheduler) {
	t.Helper()
	gw := &fakeGateway{}
	ev := newFakeEvents()
	sched := &fakeScheduler{}
	s := New("test-session", Options{
		Logger:    zerolog.Nop(),
		Gateway:   gw,
		Events:    ev,
		Scheduler: sched,
		Plan:      phone.DefaultPlan,
	})
	return s, gw, ev, sched
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDispatchUnknownAction(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	err := s.Dispatch(context.Background(), Command{Action: "nope"})
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatchMalformedPayload(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	err := s.Dispatch(context.Background(), Command{Action: "recipients/add", Payload: json.RawMessage(`{`)})
	require.Error(t, err)
}

func TestAddRecipient(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	ctx := context.Background()

	cmd := Command{Action: "recipients/add", Payload: payload(t, map[string]string{
		"name": "Alice", "phone": "010-1111-2222",
	})}
	require.NoError(t, s.Dispatch(ctx, cmd))
	require.Len(t, gw.created, 1)
	assert.Equal(t, model.LevelSuccess, ev.lastNotice().Level)

	// the same number again, in a different written form
	cmd.Payload = payload(t, map[string]string{"name": "Alice2", "phone": "01011112222"})
	require.NoError(t, s.Dispatch(ctx, cmd))
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
	assert.Equal(t, 1, s.recipients.Size())
}

func TestAddRecipientMissingFields(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	cmd := Command{Action: "recipients/add", Payload: payload(t, map[string]string{"name": "   ", "phone": ""})}
	require.NoError(t, s.Dispatch(context.Background(), cmd))
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
	assert.Zero(t, gw.createdN)
}

func TestAddRecipientGatewayError(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	gw.createErr = errors.New("invalid phone number")
	cmd := Command{Action: "recipients/add", Payload: payload(t, map[string]string{"name": "A", "phone": "123"})}
	require.NoError(t, s.Dispatch(context.Background(), cmd))
	assert.Equal(t, model.LevelError, ev.lastNotice().Level)
	assert.Zero(t, s.recipients.Size())
}

func TestToggleRecipientDeselectOnly(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.recipients.Add(model.Recipient{ID: "c1", Name: "A", Phone: "010-1111-2222"})

	// checked=true never re-adds anything
	cmd := Command{Action: "recipients/toggle", Payload: payload(t, map[string]any{"key": "c1", "checked": true})}
	require.NoError(t, s.Dispatch(context.Background(), cmd))
	assert.Equal(t, 1, s.recipients.Size())

	cmd.Payload = payload(t, map[string]any{"key": "c1", "checked": false})
	require.NoError(t, s.Dispatch(context.Background(), cmd))
	assert.Zero(t, s.recipients.Size())
}

func TestClearRecipients(t *testing.T) {
	s, _, ev, _ := newTestSession(t)
	s.recipients.Add(model.Recipient{Phone: "010-1111-2222"})
	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "recipients/clear"}))
	assert.Zero(t, s.recipients.Size())
	assert.Contains(t, ev.renders, "recipients")
}

func TestGridSubmitCreatesFreshContacts(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	ctx := context.Background()
	gw.contacts = []model.Contact{{ID: "old", Name: "Known", Phone: "010-9999-8888"}}

	s.grid.SetCell(0, FieldName, "Alice")
	s.grid.SetCell(0, FieldPhone, "010-1111-2222")
	r := s.grid.AddRow()
	s.grid.SetCell(r, FieldName, "Known Again")
	s.grid.SetCell(r, FieldPhone, "01099998888") // duplicate of the stored contact

	require.NoError(t, s.Dispatch(ctx, Command{Action: "grid/submit"}))

	require.Len(t, gw.created, 1)
	assert.Equal(t, "Alice", gw.created[0].Name)
	assert.Equal(t, 1, s.recipients.Size())
	assert.Equal(t, model.LevelSuccess, ev.lastNotice().Level)
	// grid cleared back to one blank row
	assert.Equal(t, []Row{{}}, s.grid.Rows())
}

func TestGridSubmitAllDuplicates(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	gw.contacts = []model.Contact{{Name: "Known", Phone: "010-1111-2222"}}
	s.grid.SetCell(0, FieldName, "Same")
	s.grid.SetCell(0, FieldPhone, "010-1111-2222")

	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "grid/submit"}))
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
	assert.Zero(t, gw.createdN)
}

func TestGridSubmitStopsOnFirstFailure(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	gw.failCreate = 2

	s.grid.SetCell(0, FieldName, "First")
	s.grid.SetCell(0, FieldPhone, "010-1111-2222")
	r := s.grid.AddRow()
	s.grid.SetCell(r, FieldName, "Second")
	s.grid.SetCell(r, FieldPhone, "010-2222-3333")
	r = s.grid.AddRow()
	s.grid.SetCell(r, FieldName, "Third")
	s.grid.SetCell(r, FieldPhone, "010-3333-4444")

	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "grid/submit"}))

	// the first succeeded and stays selected, the rest were not attempted
	require.Len(t, gw.created, 1)
	assert.Equal(t, 2, gw.createdN) // two calls made, third never issued
	assert.Equal(t, 1, s.recipients.Size())
	assert.Equal(t, model.LevelError, ev.lastNotice().Level)
	// the grid keeps its rows for correction
	assert.Len(t, s.grid.Rows(), 3)
}

func TestGridSubmitRowErrors(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	for i := 0; i < 7; i++ {
		r := i
		if i > 0 {
			r = s.grid.AddRow()
		}
		s.grid.SetCell(r, FieldName, fmt.Sprintf("P%d", i))
		s.grid.SetCell(r, FieldPhone, "123")
	}

	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "grid/submit"}))
	notice := ev.lastNotice()
	assert.Equal(t, model.LevelError, notice.Level)
	assert.Contains(t, notice.Message, "(and 2 more)")
	assert.Zero(t, gw.createdN)
}

func TestComposeCharLevels(t *testing.T) {
	s, _, ev, _ := newTestSession(t)
	ctx := context.Background()

	compose := func(text string) map[string]any {
		require.NoError(t, s.Dispatch(ctx, Command{Action: "compose", Payload: payload(t, map[string]string{"text": text})}))
		return ev.renders["compose"].(map[string]any)
	}

	got := compose("hello")
	assert.Equal(t, 5, got["count"])
	assert.Equal(t, "ok", got["level"])

	long := make([]rune, 801)
	for i := range long {
		long[i] = '가'
	}
	got = compose(string(long))
	assert.Equal(t, 801, got["count"])
	assert.Equal(t, "warn", got["level"])

	got = compose(string(long) + string(long[:200]))
	assert.Equal(t, 1001, got["count"])
	assert.Equal(t, "over", got["level"])
}

func TestSendRequiresMessageAndRecipients(t *testing.T) {
	s, _, ev, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Dispatch(ctx, Command{Action: "send", Payload: payload(t, map[string]string{"message": "  "})}))
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)

	require.NoError(t, s.Dispatch(ctx, Command{Action: "send", Payload: payload(t, map[string]string{"message": "hi"})}))
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
}

func TestSendClearsStateOnSuccess(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	s.recipients.Add(model.Recipient{Name: "A", Phone: "010-1111-2222"})
	s.draft = "hello"

	cmd := Command{Action: "send", Payload: payload(t, map[string]string{"message": "hello"})}
	require.NoError(t, s.Dispatch(context.Background(), cmd))

	require.Len(t, gw.sentTo, 1)
	assert.Equal(t, "hello", gw.sentBody)
	assert.Zero(t, s.recipients.Size())
	assert.Empty(t, s.draft)
	assert.Contains(t, ev.renders, "send_results")
	assert.Equal(t, model.LevelSuccess, ev.lastNotice().Level)
}

func TestSendFailureKeepsRecipients(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	gw.sendErr = errors.New("bridge offline")
	s.recipients.Add(model.Recipient{Name: "A", Phone: "010-1111-2222"})

	cmd := Command{Action: "send", Payload: payload(t, map[string]string{"message": "hello"})}
	require.NoError(t, s.Dispatch(context.Background(), cmd))
	assert.Equal(t, model.LevelError, ev.lastNotice().Level)
	assert.Equal(t, 1, s.recipients.Size())
}

func TestUploadReconciliation(t *testing.T) {
	s, _, ev, _ := newTestSession(t)
	s.recipients.Add(model.Recipient{Name: "Existing", Phone: "010-1111-2222"})

	gen := s.BeginUpload()
	result := &model.UploadResult{
		TotalParsed:     2,
		TotalNew:        1,
		TotalDuplicates: 1,
		ParsedContacts: []model.Contact{
			{Name: "Dup", Phone: "01011112222"},
			{Name: "New", Phone: "010-3333-4444"},
		},
		NewContacts: []model.Contact{{Name: "New", Phone: "010-3333-4444"}},
	}
	s.CompleteUpload(gen, result, nil)

	assert.Equal(t, 2, s.recipients.Size())
	assert.Equal(t, model.LevelSuccess, ev.lastNotice().Level)
	assert.Contains(t, ev.lastNotice().Message, "1 added to recipients")
	assert.NotNil(t, s.lastUpload)
}

func TestUploadGuardDropsLateOutcome(t *testing.T) {
	s, _, ev, sched := newTestSession(t)

	gen := s.BeginUpload()
	assert.True(t, s.busy)

	sched.fire()
	assert.False(t, s.busy)
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
	assert.Contains(t, ev.lastNotice().Message, "timed out")

	before := len(ev.notices)
	s.CompleteUpload(gen, &model.UploadResult{TotalParsed: 1}, nil)
	assert.Equal(t, before, len(ev.notices), "late outcome must be silent")
	assert.Zero(t, s.recipients.Size())
	assert.Nil(t, s.lastUpload)
}

func TestUploadErrorNotifies(t *testing.T) {
	s, _, ev, _ := newTestSession(t)
	gen := s.BeginUpload()
	s.CompleteUpload(gen, nil, errors.New("no valid contacts found, check the file format"))
	assert.Equal(t, model.LevelError, ev.lastNotice().Level)
	assert.False(t, s.busy)
}

func TestImportWithoutUpload(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "import"}))
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
	assert.Nil(t, gw.imported)
}

func TestImportPersistsNewContacts(t *testing.T) {
	s, gw, ev, _ := newTestSession(t)
	s.lastUpload = &model.UploadResult{
		NewContacts: []model.Contact{{Name: "New", Phone: "010-3333-4444"}},
	}

	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "import"}))
	require.Len(t, gw.imported, 1)
	assert.Equal(t, model.LevelSuccess, ev.lastNotice().Level)
	assert.Nil(t, s.lastUpload)
	assert.False(t, s.busy)
}

func TestImportGuardDropsLateOutcome(t *testing.T) {
	s, gw, ev, sched := newTestSession(t)
	s.lastUpload = &model.UploadResult{
		NewContacts: []model.Contact{{Name: "New", Phone: "010-3333-4444"}},
	}
	// the gateway import fires the guard before returning, simulating a stall
	gw.importErr = nil
	slow := &stallGateway{inner: gw, stall: sched.fire}
	s.gateway = slow

	require.NoError(t, s.Dispatch(context.Background(), Command{Action: "import"}))

	// guard fired mid-flight: the warning is the last word, state unchanged
	assert.Equal(t, model.LevelWarning, ev.lastNotice().Level)
	assert.NotNil(t, s.lastUpload)
	assert.False(t, s.busy)
}

// stallGateway triggers a callback before delegating the import, used to model
// an operation finishing only after its guard timer fired.
type stallGateway struct {
	inner Gateway
	stall func()
}

func (g *stallGateway) ListContacts(ctx context.Context) ([]model.Contact, error) {
	return g.inner.ListContacts(ctx)
}

func (g *stallGateway) CreateContact(ctx context.Context, name, number string) (model.Contact, error) {
	return g.inner.CreateContact(ctx, name, number)
}

func (g *stallGateway) ImportContacts(ctx context.Context, contacts []model.Contact) (int, error) {
	g.stall()
	return g.inner.ImportContacts(ctx, contacts)
}

func (g *stallGateway) SendSMS(ctx context.Context, recipients []model.Recipient, message string) (*model.SendReport, error) {
	return g.inner.SendSMS(ctx, recipients, message)
}
