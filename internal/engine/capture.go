package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

// ErrNotReviewing is returned when the analysis is edited outside review.
var ErrNotReviewing = errors.New("no analysis is under review")

// CaptureSnapshot is a point-in-time copy of a capture session.
type CaptureSnapshot struct {
	ID        string             `json:"id"`
	State     types.CaptureState `json:"state"`
	Person    *types.Person      `json:"person,omitempty"`
	Text      string             `json:"text"`
	Analysis  *types.Analysis    `json:"analysis,omitempty"`
	Error     string             `json:"error,omitempty"`
	Saved     *types.Memory      `json:"saved,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CaptureSession drives the add-memory workflow: pick a person, write the
// text, analyze it, review the analysis and save the merged record.
type CaptureSession struct {
	id       string
	persons  *PersonService
	memories *MemoryService
	analyzer Analyzer
	logger   *zap.Logger

	mu       sync.Mutex
	state    types.CaptureState
	person   *types.Person
	text     string
	analysis *types.Analysis
	errMsg   string
	saved    *types.Memory
	touched  time.Time

	// gen increments whenever the draft is reset, so a late analysis
	// result for an abandoned draft is dropped.
	gen uint64
}

// NewCaptureSession creates an idle session and selects the most recently
// added person, if any.
func NewCaptureSession(ctx context.Context, persons *PersonService, memories *MemoryService, analyzer Analyzer, logger *zap.Logger) *CaptureSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CaptureSession{
		id:       uuid.New().String(),
		persons:  persons,
		memories: memories,
		analyzer: analyzer,
		logger:   logger,
		state:    types.CaptureIdle,
		touched:  time.Now(),
	}

	list, err := persons.ListPersons(ctx)
	if err != nil {
		s.fail(ErrLoadPersons.Error())
		return s
	}
	if len(list) > 0 {
		first := list[0]
		s.person = &first
	}
	return s
}

// ID returns the session identifier.
func (s *CaptureSession) ID() string { return s.id }

// LastActive returns the time of the last interaction.
func (s *CaptureSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Snapshot returns a copy of the session state.
func (s *CaptureSession) Snapshot() CaptureSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CaptureSession) snapshotLocked() CaptureSnapshot {
	snap := CaptureSnapshot{
		ID:        s.id,
		State:     s.state,
		Text:      s.text,
		Error:     s.errMsg,
		UpdatedAt: s.touched,
	}
	if s.person != nil {
		p := *s.person
		snap.Person = &p
	}
	if s.analysis != nil {
		a := s.analysis.Clone()
		snap.Analysis = &a
	}
	if s.saved != nil {
		m := *s.saved
		snap.Saved = &m
	}
	return snap
}

// SelectPerson chooses the person the memory is about.
func (s *CaptureSession) SelectPerson(ctx context.Context, personID string) error {
	person, err := s.persons.GetPerson(ctx, personID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.person = person
	s.touch()
	return nil
}

// PersonDeleted moves the selection to the newest remaining person when the
// selected person was removed.
func (s *CaptureSession) PersonDeleted(ctx context.Context, personID string) {
	s.mu.Lock()
	selected := s.person != nil && s.person.ID == personID
	s.mu.Unlock()
	if !selected {
		return
	}

	list, err := s.persons.ListPersons(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.person == nil || s.person.ID != personID {
		return
	}
	s.person = nil
	if err != nil {
		s.fail(ErrLoadPersons.Error())
		return
	}
	if len(list) > 0 {
		first := list[0]
		s.person = &first
	}
	s.touch()
}

// SetText replaces the draft text.
func (s *CaptureSession) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.touch()
}

// AppendText adds text to the draft, separated by a space.
func (s *CaptureSession) AppendText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(s.text) == "" {
		s.text = text
	} else {
		s.text = s.text + " " + text
	}
	s.touch()
}

// Analyze runs the AI analysis of the draft and moves the session to
// review. On failure the session holds a displayable error.
func (s *CaptureSession) Analyze(ctx context.Context) (CaptureSnapshot, error) {
	s.mu.Lock()
	if s.person == nil {
		s.fail(ErrNoPersonChosen.Error())
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoPersonChosen
	}
	text := strings.TrimSpace(s.text)
	if text == "" {
		s.fail(ErrEmptyMemoryText.Error())
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrEmptyMemoryText
	}
	s.state = types.CaptureAnalyzing
	s.errMsg = ""
	s.gen++
	gen := s.gen
	s.touch()
	s.mu.Unlock()

	analysis, err := s.analyzer.Analyze(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return s.snapshotLocked(), context.Canceled
	}
	if err != nil {
		s.logger.Warn("capture analysis failed", zap.String("session_id", s.id), zap.Error(err))
		s.fail(FriendlyError(err))
		return s.snapshotLocked(), err
	}
	s.analysis = &analysis
	s.state = types.CaptureReviewing
	s.touch()
	return s.snapshotLocked(), nil
}

// UpdateAnalysis replaces the analysis under review with the user's edits.
func (s *CaptureSession) UpdateAnalysis(a types.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != types.CaptureReviewing || s.analysis == nil {
		return ErrNotReviewing
	}
	a.Normalize()
	s.analysis = &a
	s.touch()
	return nil
}

// Save creates the memory and applies the approved analysis. A nil approved
// analysis saves the one under review.
func (s *CaptureSession) Save(ctx context.Context, approved *types.Analysis) (*types.Memory, error) {
	s.mu.Lock()
	person, text, err := s.draftLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var analysis types.Analysis
	switch {
	case approved != nil:
		analysis = approved.Clone()
	case s.analysis != nil:
		analysis = s.analysis.Clone()
	default:
		s.mu.Unlock()
		return nil, ErrNotReviewing
	}
	s.beginSaveLocked()
	gen := s.gen
	s.mu.Unlock()

	memory, err := s.memories.CreateMemory(ctx, person.ID, text)
	if err != nil {
		s.finishSave(gen, nil, FriendlyError(err))
		return nil, err
	}

	updated, err := s.memories.ApplyAnalysis(ctx, memory.ID, analysis)
	if err != nil {
		s.memories.enqueue(memory.ID)
		s.finishSave(gen, nil, "Failed to save: "+FriendlyError(err))
		return nil, err
	}

	s.finishSave(gen, updated, "")
	return updated, nil
}

// SaveRaw saves the draft without analysis. The memory is left unprocessed
// and queued for background enrichment.
func (s *CaptureSession) SaveRaw(ctx context.Context) (*types.Memory, error) {
	s.mu.Lock()
	person, text, err := s.draftLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.beginSaveLocked()
	gen := s.gen
	s.mu.Unlock()

	memory, err := s.memories.SaveUnprocessed(ctx, person.ID, text)
	if err != nil {
		s.finishSave(gen, nil, FriendlyError(err))
		return nil, err
	}
	s.finishSave(gen, memory, "")
	return memory, nil
}

// Discard drops the analysis under review and returns to idle. The draft
// text is kept.
func (s *CaptureSession) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = nil
	s.state = types.CaptureIdle
	s.errMsg = ""
	s.gen++
	s.touch()
}

// Reset returns the session to idle, clearing the error.
func (s *CaptureSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = types.CaptureIdle
	s.errMsg = ""
	s.touch()
}

func (s *CaptureSession) draftLocked() (*types.Person, string, error) {
	if s.person == nil {
		s.fail(ErrNoPersonChosen.Error())
		return nil, "", ErrNoPersonChosen
	}
	text := strings.TrimSpace(s.text)
	if text == "" {
		s.fail(ErrEmptyMemoryText.Error())
		return nil, "", ErrEmptyMemoryText
	}
	p := *s.person
	return &p, text, nil
}

func (s *CaptureSession) beginSaveLocked() {
	s.state = types.CaptureSaving
	s.errMsg = ""
	s.gen++
	s.touch()
}

func (s *CaptureSession) finishSave(gen uint64, saved *types.Memory, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	if errMsg != "" {
		s.fail(errMsg)
		return
	}
	s.state = types.CaptureSuccess
	s.text = ""
	s.analysis = nil
	s.saved = saved
	s.touch()
}

func (s *CaptureSession) fail(msg string) {
	s.state = types.CaptureError
	s.errMsg = msg
	s.touch()
}

func (s *CaptureSession) touch() {
	s.touched = time.Now()
}
