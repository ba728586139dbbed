package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/phone"
)

// Gateway is the backend collaborator the session talks to: the contact
// store, the file parser and the Messages bridge.
type Gateway interface {
	ListContacts(ctx context.Context) ([]model.Contact, error)
	CreateContact(ctx context.Context, name, phone string) (model.Contact, error)
	ImportContacts(ctx context.Context, contacts []model.Contact) (int, error)
	SendSMS(ctx context.Context, recipients []model.Recipient, message string) (*model.SendReport, error)
}

// Events is the presentation side: re-render signals whenever session state
// changes, plus toast notifications.
type Events interface {
	Render(scope string, data any)
	Notify(level model.NotificationLevel, message string)
}

// Command is one UI action routed through the dispatch table.
type Command struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var ErrUnknownAction = errors.New("unknown action")

const maxRowErrorsShown = 5

// Session owns the per-page state the browser used to hold: the recipient
// set, the bulk-entry grid, the last upload result, the message draft and the
// overlay guard timers. One logical command runs at a time; state is re-read
// after every gateway call rather than trusted across it.
type Session struct {
	ID string

	log     zerolog.Logger
	gateway Gateway
	events  Events
	sched   Scheduler
	plan    phone.Plan

	uploadGuard time.Duration
	importGuard time.Duration

	mu          sync.Mutex
	recipients  *RecipientSet
	grid        *Grid
	lastUpload  *model.UploadResult
	draft       string
	busy        bool
	busyGen     int
	cancelGuard func() bool
}

// Options carries the session dependencies.
type Options struct {
	Logger      zerolog.Logger
	Gateway     Gateway
	Events      Events
	Scheduler   Scheduler
	Plan        phone.Plan
	UploadGuard time.Duration
	ImportGuard time.Duration
}

func New(id string, opts Options) *Session {
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}
	if len(opts.Plan.Rules) == 0 {
		opts.Plan = phone.DefaultPlan
	}
	if opts.UploadGuard <= 0 {
		opts.UploadGuard = 10 * time.Second
	}
	if opts.ImportGuard <= 0 {
		opts.ImportGuard = 15 * time.Second
	}
	return &Session{
		ID:          id,
		log:         opts.Logger.With().Str("session_id", id).Logger(),
		gateway:     opts.Gateway,
		events:      opts.Events,
		sched:       opts.Scheduler,
		plan:        opts.Plan,
		uploadGuard: opts.UploadGuard,
		importGuard: opts.ImportGuard,
		recipients:  NewRecipientSet(),
		grid:        NewGrid(),
	}
}

type commandFunc func(*Session, context.Context, json.RawMessage) error

// dispatch maps UI action identifiers to handlers operating on the session
// state.
var dispatch = map[string]commandFunc{
	"recipients/add":        (*Session).cmdAddRecipient,
	"recipients/toggle":     (*Session).cmdToggleRecipient,
	"recipients/clear":      (*Session).cmdClearRecipients,
	"recipients/select-all": (*Session).cmdSelectAll,
	"grid/add-row":          (*Session).cmdGridAddRow,
	"grid/set-cell":         (*Session).cmdGridSetCell,
	"grid/paste":            (*Session).cmdGridPaste,
	"grid/submit":           (*Session).cmdGridSubmit,
	"compose":               (*Session).cmdCompose,
	"send":                  (*Session).cmdSend,
	"import":                (*Session).cmdImport,
}

// Dispatch runs one command. A returned error means the command itself was
// malformed; domain failures are reported through notifications and recovered
// here, at the boundary of the triggering action.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	fn, ok := dispatch[cmd.Action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, cmd.Action)
	}
	s.log.Debug().Str("action", cmd.Action).Msg("dispatching command")
	return fn(s, ctx, cmd.Payload)
}

// RenderAll pushes the full session state, used when a presentation client
// (re)connects.
func (s *Session) RenderAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderRecipients()
	s.renderGrid()
	s.renderCompose()
	s.renderUpload()
}

// ---- recipients ----

func (s *Session) cmdAddRecipient(ctx context.Context, payload json.RawMessage) error {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	number := strings.TrimSpace(req.Phone)
	if name == "" || number == "" {
		s.events.Notify(model.LevelWarning, "Enter both a name and a phone number.")
		return nil
	}

	contact, err := s.gateway.CreateContact(ctx, name, number)
	if err != nil {
		s.log.Warn().Err(err).Msg("contact creation rejected")
		s.events.Notify(model.LevelError, err.Error())
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recipients.Add(model.Recipient{ID: contact.ID, Name: contact.Name, Phone: contact.Phone}) {
		s.events.Notify(model.LevelWarning, "That phone number is already in the recipient list.")
		return nil
	}
	s.renderRecipients()
	s.events.Notify(model.LevelSuccess, "Added to the recipient list.")
	return nil
}

func (s *Session) cmdToggleRecipient(_ context.Context, payload json.RawMessage) error {
	var req struct {
		Key     string `json:"key"`
		Checked bool   `json:"checked"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Deselect only: an unchecked control removes its member, re-checking
	// cannot re-add since the control is gone after the re-render.
	if !req.Checked {
		s.recipients.Deselect(req.Key)
	}
	s.renderRecipients()
	return nil
}

func (s *Session) cmdClearRecipients(context.Context, json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients.Clear()
	s.renderRecipients()
	return nil
}

func (s *Session) cmdSelectAll(context.Context, json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Only already-selected recipients exist, so this is a plain re-render.
	s.renderRecipients()
	return nil
}

// ---- grid ----

func (s *Session) cmdGridAddRow(context.Context, json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.AddRow()
	s.renderGrid()
	return nil
}

func (s *Session) cmdGridSetCell(_ context.Context, payload json.RawMessage) error {
	var req struct {
		Row   int    `json:"row"`
		Field Field  `json:"field"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.grid.SetCell(req.Row, req.Field, req.Value) {
		return fmt.Errorf("invalid cell %d/%s", req.Row, req.Field)
	}
	s.renderGrid()
	return nil
}

func (s *Session) cmdGridPaste(_ context.Context, payload json.RawMessage) error {
	var req struct {
		Row   int    `json:"row"`
		Field Field  `json:"field"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	applied, parsed := s.grid.Paste(req.Row, req.Field, req.Text)
	s.renderGrid()
	if !parsed {
		return nil
	}
	if applied == 0 {
		s.events.Notify(model.LevelWarning, "No valid rows found in the pasted text.")
	} else {
		s.events.Notify(model.LevelInfo, fmt.Sprintf("%d row(s) added from the pasted text.", applied))
	}
	return nil
}

func (s *Session) cmdGridSubmit(ctx context.Context, _ json.RawMessage) error {
	s.mu.Lock()
	drafts, rowErrs := s.grid.Validate(s.plan)
	s.mu.Unlock()

	if len(rowErrs) > 0 {
		s.events.Notify(model.LevelError, formatRowErrors(rowErrs))
		return nil
	}
	if len(drafts) == 0 {
		s.events.Notify(model.LevelWarning, "Nothing to submit.")
		return nil
	}

	known, err := s.gateway.ListContacts(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("listing contacts failed")
		s.events.Notify(model.LevelError, "Could not load existing contacts.")
		return nil
	}
	seen := make(map[string]bool, len(known))
	for _, c := range known {
		seen[phone.Normalize(c.Phone)] = true
	}

	var fresh []model.Contact
	for _, d := range drafts {
		key := phone.Normalize(d.Phone)
		if seen[key] {
			continue
		}
		seen[key] = true
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		s.events.Notify(model.LevelWarning, "All entered contacts already exist.")
		return nil
	}

	// One request per contact; a failure stops the loop and keeps the
	// progress made so far.
	created := 0
	for _, d := range fresh {
		contact, err := s.gateway.CreateContact(ctx, d.Name, d.Phone)
		if err != nil {
			s.log.Error().Err(err).Int("created", created).Msg("bulk contact creation aborted")
			s.events.Notify(model.LevelError, "Contact creation failed; remaining rows were not processed.")
			return nil
		}
		created++

		s.mu.Lock()
		s.recipients.Add(model.Recipient{ID: contact.ID, Name: contact.Name, Phone: contact.Phone})
		s.renderRecipients()
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.grid.Reset()
	s.renderGrid()
	s.mu.Unlock()
	s.events.Notify(model.LevelSuccess, fmt.Sprintf("%d contact(s) added.", created))
	return nil
}

func formatRowErrors(errs []RowError) string {
	shown := errs
	if len(shown) > maxRowErrorsShown {
		shown = shown[:maxRowErrorsShown]
	}
	msgs := make([]string, len(shown))
	for i, e := range shown {
		msgs[i] = e.Message
	}
	out := strings.Join(msgs, "; ")
	if rest := len(errs) - len(shown); rest > 0 {
		out += fmt.Sprintf(" (and %d more)", rest)
	}
	return out
}

// ---- compose / send ----

func (s *Session) cmdCompose(_ context.Context, payload json.RawMessage) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = req.Text
	s.renderCompose()
	return nil
}

func (s *Session) cmdSend(ctx context.Context, payload json.RawMessage) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.events.Notify(model.LevelWarning, "Enter a message to send.")
		return nil
	}

	s.mu.Lock()
	recipients := s.recipients.Members()
	s.mu.Unlock()
	if len(recipients) == 0 {
		s.events.Notify(model.LevelWarning, "Select at least one recipient.")
		return nil
	}

	report, err := s.gateway.SendSMS(ctx, recipients, message)
	if err != nil {
		s.log.Error().Err(err).Msg("send failed")
		s.events.Notify(model.LevelError, fmt.Sprintf("Sending failed: %v", err))
		return nil
	}

	s.mu.Lock()
	s.recipients.Clear()
	s.draft = ""
	s.renderRecipients()
	s.renderCompose()
	s.mu.Unlock()

	s.events.Render("send_results", report)
	s.events.Notify(model.LevelSuccess, fmt.Sprintf("Send complete: %d sent, %d failed.", report.Sent, report.Failed))
	return nil
}

// ---- upload / import ----

// BeginUpload marks the session busy and arms the upload guard. The returned
// generation must be passed to CompleteUpload; if the guard fires first the
// late outcome is dropped.
func (s *Session) BeginUpload() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginBusy(s.uploadGuard, "File upload")
}

// CompleteUpload reconciles a finished upload into the session: every parsed
// contact is merged into the recipient set with normalized-phone dedup, and
// the result is retained to drive a later import.
func (s *Session) CompleteUpload(gen int, result *model.UploadResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endBusy(gen) {
		s.log.Warn().Msg("upload finished after guard timeout, result ignored")
		return
	}
	if err != nil {
		s.events.Notify(model.LevelError, err.Error())
		return
	}

	added := s.recipients.Merge(result.ParsedContacts)
	s.lastUpload = result
	s.renderRecipients()
	s.renderUpload()
	s.events.Notify(model.LevelSuccess,
		fmt.Sprintf("Parsed %d contact(s): %d new, %d duplicate(s); %d added to recipients.",
			result.TotalParsed, result.TotalNew, result.TotalDuplicates, added))
}

func (s *Session) cmdImport(ctx context.Context, _ json.RawMessage) error {
	s.mu.Lock()
	if s.lastUpload == nil || len(s.lastUpload.NewContacts) == 0 {
		s.mu.Unlock()
		s.events.Notify(model.LevelWarning, "No contacts to import.")
		return nil
	}
	toImport := s.lastUpload.NewContacts
	gen := s.beginBusy(s.importGuard, "Contact import")
	s.mu.Unlock()

	count, err := s.gateway.ImportContacts(ctx, toImport)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endBusy(gen) {
		s.log.Warn().Msg("import finished after guard timeout, result ignored")
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("import failed")
		s.events.Notify(model.LevelError, fmt.Sprintf("Importing contacts failed: %v", err))
		return nil
	}

	s.lastUpload = nil
	s.renderUpload()
	s.events.Notify(model.LevelSuccess, fmt.Sprintf("Imported %d contact(s).", count))
	return nil
}

// ---- busy guard ----

// beginBusy arms the overlay guard. Caller holds s.mu.
func (s *Session) beginBusy(guard time.Duration, what string) int {
	if s.cancelGuard != nil {
		s.cancelGuard()
	}
	s.busyGen++
	gen := s.busyGen
	s.busy = true
	s.cancelGuard = s.sched.After(guard, func() { s.guardFired(gen, what) })
	s.renderBusy()
	return gen
}

// endBusy reports whether the operation is still current. Caller holds s.mu.
func (s *Session) endBusy(gen int) bool {
	if gen != s.busyGen || !s.busy {
		return false
	}
	s.busy = false
	if s.cancelGuard != nil {
		s.cancelGuard()
		s.cancelGuard = nil
	}
	s.renderBusy()
	return true
}

// guardFired force-clears the busy overlay after the timeout. It only resets
// UI state; the in-flight request is not aborted and its outcome, if it ever
// arrives, is ignored via the generation check.
func (s *Session) guardFired(gen int, what string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.busyGen || !s.busy {
		return
	}
	s.busy = false
	s.busyGen++
	s.cancelGuard = nil
	s.log.Warn().Str("operation", what).Msg("guard timer fired, clearing overlay")
	s.renderBusy()
	s.events.Notify(model.LevelWarning, what+" timed out. Please try again.")
}

// ---- render helpers (callers hold s.mu) ----

func (s *Session) renderRecipients() {
	s.events.Render("recipients", map[string]any{
		"recipients":     s.recipients.Members(),
		"selected_count": s.recipients.Size(),
	})
}

func (s *Session) renderGrid() {
	s.events.Render("grid", map[string]any{"rows": s.grid.Rows()})
}

func (s *Session) renderUpload() {
	s.events.Render("upload", s.lastUpload)
}

func (s *Session) renderBusy() {
	s.events.Render("busy", map[string]any{"busy": s.busy})
}

func (s *Session) renderCompose() {
	count := utf8.RuneCountInString(s.draft)
	level := "ok"
	switch {
	case count > 1000:
		level = "over"
	case count > 800:
		level = "warn"
	}
	s.events.Render("compose", map[string]any{"count": count, "level": level})
}
