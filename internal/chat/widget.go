// Package chat implements the chat widget: the transcript, the draft, the
// optional attachment, and the lifecycle of one submission against the relay.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/auditsseus-chat/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultTimeout bounds one submission client-side. It is deliberately longer
// than the relay's own budget.
const DefaultTimeout = 5 * time.Minute

// State is the widget's submission state.
type State int

const (
	// StateIdle has nothing to send.
	StateIdle State = iota
	// StateComposing has a non-empty draft or a selected file.
	StateComposing
	// StateSubmitting is waiting on the relay.
	StateSubmitting
	// StateResolved is the outcome of a turn that produced a reply.
	StateResolved
	// StateFailed is the outcome of a turn that ended in an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateSubmitting:
		return "submitting"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// File is an attachment selected by the user.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Turn is a submission in flight.
type Turn struct {
	ID        string
	Request   Request
	loadingID string
}

// Option configures a Widget.
type Option func(*Widget)

// WithTimeout sets the client-side deadline of a submission.
func WithTimeout(d time.Duration) Option {
	return func(w *Widget) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

// Widget holds the transcript and drives submissions. It is safe for
// concurrent use; at most one turn is in flight at a time.
type Widget struct {
	sender   Sender
	previews *PreviewRegistry
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	state    State
	outcome  State
	messages []domain.Message
	input    string
	file     *File
	turn     *Turn
}

// New creates a widget that submits through sender.
func New(sender Sender, opts ...Option) *Widget {
	w := &Widget{
		sender:   sender,
		previews: NewPreviewRegistry(),
		timeout:  DefaultTimeout,
		now:      time.Now,
		state:    StateIdle,
		outcome:  StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetInput replaces the draft text. It is ignored while submitting.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		return
	}
	w.input = text
	w.settle()
}

// Input returns the current draft.
func (w *Widget) Input() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

// SelectFile sets the attachment for the next submission. Only images and
// PDFs are accepted; a missing content type is sniffed from the data.
func (w *Widget) SelectFile(f File) error {
	if f.ContentType == "" || f.ContentType == "application/octet-stream" {
		f.ContentType = mimetype.Detect(f.Data).String()
	}
	if !isSupportedType(f.ContentType) {
		return ErrUnsupportedFile
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		return ErrBusy
	}
	w.file = &f
	w.settle()
	return nil
}

// ClearFile drops the selected attachment.
func (w *Widget) ClearFile() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		return
	}
	w.file = nil
	w.settle()
}

// SelectedFile returns the pending attachment, if any.
func (w *Widget) SelectedFile() *File {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	f := *w.file
	return &f
}

// State returns the current submission state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Outcome returns how the last finished turn ended: StateResolved,
// StateFailed, or StateIdle before any turn finished.
func (w *Widget) Outcome() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// IsLoading reports whether a turn is in flight.
func (w *Widget) IsLoading() bool {
	return w.State() == StateSubmitting
}

// CanSubmit reports whether Begin would start a turn.
func (w *Widget) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canSubmit()
}

// Messages returns a copy of the transcript.
func (w *Widget) Messages() []domain.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Preview resolves an attachment URL created for a local file.
func (w *Widget) Preview(url string) (File, bool) {
	return w.previews.Resolve(url)
}

// Begin starts a turn: it appends the user message and the loading
// placeholder and clears the draft. It returns false when there is nothing to
// send or a turn is already in flight.
func (w *Widget) Begin() (*Turn, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.canSubmit() {
		return nil, false
	}

	now := w.now()
	text := strings.TrimSpace(w.input)
	user := domain.Message{
		ID:        uuid.NewString(),
		Text:      text,
		IsUser:    true,
		CreatedAt: now,
	}
	if w.file != nil {
		user.Attachments = []domain.Attachment{{
			URL:         w.previews.Create(*w.file),
			ContentType: w.file.ContentType,
			Title:       w.file.Name,
		}}
	}
	loading := domain.Message{
		ID:        uuid.NewString(),
		Text:      LoadingText,
		IsLoading: true,
		CreatedAt: now,
	}
	w.messages = append(w.messages, user, loading)

	turn := &Turn{
		ID:        uuid.NewString(),
		Request:   Request{Text: text, File: w.file},
		loadingID: loading.ID,
	}
	w.input = ""
	w.file = nil
	w.turn = turn
	w.state = StateSubmitting
	return turn, true
}

// Dispatch performs the network half of turn under the widget deadline.
func (w *Widget) Dispatch(ctx context.Context, turn *Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.sender.Send(ctx, turn.Request)
}

// Complete finishes turn with the relay's body or err. The loading
// placeholder is replaced by the normalized reply or one error message, and
// the widget returns to idle. Completing a stale turn is a no-op.
func (w *Widget) Complete(turn *Turn, body string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if turn == nil || w.turn == nil || w.turn.ID != turn.ID {
		return
	}

	w.removeMessage(turn.loadingID)
	now := w.now()
	if err != nil {
		w.messages = append(w.messages, domain.Message{
			ID:        uuid.NewString(),
			Text:      FailureText(err),
			CreatedAt: now,
		})
		w.outcome = StateFailed
	} else {
		w.messages = append(w.messages, ParseReply(body).Messages(now)...)
		w.outcome = StateResolved
	}

	w.turn = nil
	w.file = nil
	w.state = StateIdle
	w.settle()
}

// Submit runs one full turn. It returns false if the guard rejected it.
func (w *Widget) Submit(ctx context.Context) bool {
	turn, ok := w.Begin()
	if !ok {
		return false
	}
	body, err := w.Dispatch(ctx, turn)
	w.Complete(turn, body, err)
	return true
}

// Reset clears the transcript and releases every preview URL.
func (w *Widget) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSubmitting {
		return ErrBusy
	}
	w.messages = nil
	w.previews.RevokeAll()
	w.outcome = StateIdle
	return nil
}

// Close tears the widget down. A turn still in flight is abandoned.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
	w.turn = nil
	w.file = nil
	w.input = ""
	w.state = StateIdle
	w.previews.RevokeAll()
}

func (w *Widget) canSubmit() bool {
	if w.state == StateSubmitting {
		return false
	}
	return strings.TrimSpace(w.input) != "" || w.file != nil
}

// settle picks idle or composing from the draft. Callers hold mu.
func (w *Widget) settle() {
	if w.state == StateSubmitting {
		return
	}
	if w.canSubmit() {
		w.state = StateComposing
	} else {
		w.state = StateIdle
	}
}

func (w *Widget) removeMessage(id string) {
	for i, m := range w.messages {
		if m.ID == id {
			w.messages = append(w.messages[:i], w.messages[i+1:]...)
			return
		}
	}
}

func isSupportedType(contentType string) bool {
	base := contentType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	return strings.HasPrefix(base, "image/") || base == "application/pdf"
}
