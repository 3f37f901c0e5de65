package core

// session.go holds per-browser-session state: the uploaded file, the current
// parse settings, the selected target table and the validation gate.
//
// Preview and validation results are tagged with a generation number when
// they start. A result is recorded only if no newer request of the same kind
// (or a new upload) started in the meantime, so the newest request always
// wins regardless of completion order.

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ValidationState is the session's validation lifecycle.
type ValidationState string

const (
	ValidationIdle    ValidationState = "idle"
	ValidationRunning ValidationState = "running"
	ValidationPassed  ValidationState = "passed"
	ValidationFailed  ValidationState = "failed"
)

// runKey identifies what a validation run checked. Append is allowed only
// for the exact key of the last passing run.
type runKey struct {
	path     string
	target   TableRef
	settings ParseSettings
}

// Session is the state of one user's upload → append flow.
type Session struct {
	ID string

	mu            sync.Mutex
	file          *UploadedFile
	settings      ParseSettings
	target        TableRef
	previewGen    uint64
	preview       *PreviewResult
	validationGen uint64
	state         ValidationState
	report        *ValidationReport
	reportKey     runKey
	appending     bool
	appendPath    string
	orphan        string // replaced file still read by the running append
	lastSeen      time.Time
}

// SessionState is a point-in-time copy of a Session for rendering.
type SessionState struct {
	ID         string            `json:"id"`
	File       *UploadedFile     `json:"file,omitempty"`
	Settings   ParseSettings     `json:"settings"`
	Target     *TableRef         `json:"target,omitempty"`
	Validation ValidationState   `json:"validation"`
	Report     *ValidationReport `json:"report,omitempty"`
	CanAppend  bool              `json:"can_append"`
	Appending  bool              `json:"appending"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:       id,
		settings: DefaultParseSettings(),
		state:    ValidationIdle,
		lastSeen: now,
	}
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionState{
		ID:         s.ID,
		Settings:   s.settings,
		Validation: s.state,
		CanAppend:  s.canAppendLocked(),
		Appending:  s.appending,
	}
	if s.file != nil {
		f := *s.file
		st.File = &f
	}
	if !s.target.IsZero() {
		t := s.target
		st.Target = &t
	}
	if s.report != nil {
		r := *s.report
		st.Report = &r
	}
	return st
}

// File returns the uploaded file, if any.
func (s *Session) File() (UploadedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return UploadedFile{}, false
	}
	return *s.file, true
}

// Settings returns the current parse settings.
func (s *Session) Settings() ParseSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Target returns the selected target table (zero if none).
func (s *Session) Target() TableRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// LastPreview returns the most recent recorded preview.
func (s *Session) LastPreview() (PreviewResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		return PreviewResult{}, false
	}
	return *s.preview, true
}

// SetSettings replaces the parse settings. A previous passing validation
// stays on record but no longer enables append unless the settings are
// changed back.
func (s *Session) SetSettings(settings ParseSettings) error {
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// SelectTarget sets the target table.
func (s *Session) SelectTarget(ref TableRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.target = ref
	s.mu.Unlock()
	return nil
}

// reset installs a freshly uploaded file and clears everything derived from
// the previous one. In-flight results for the old file are discarded. It
// returns the storage path of the replaced file for removal, or "" if there
// is nothing to remove yet. A file an append is still reading is handed back
// by finishAppend instead.
func (s *Session) reset(file UploadedFile, settings ParseSettings) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous string
	if s.file != nil {
		previous = s.file.StoragePath
	}
	if s.appending && previous == s.appendPath {
		s.orphan = previous
		previous = ""
	}
	s.file = &file
	s.settings = settings
	s.target = TableRef{}
	s.preview = nil
	s.report = nil
	s.reportKey = runKey{}
	s.state = ValidationIdle
	s.previewGen++
	s.validationGen++
	return previous
}

// storagePath returns the stored file's path, or "" before any upload.
func (s *Session) storagePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.StoragePath
}

func (s *Session) currentKeyLocked() (runKey, error) {
	if s.file == nil {
		return runKey{}, ErrNoFile
	}
	if s.target.IsZero() {
		return runKey{}, ErrNoTarget
	}
	return runKey{path: s.file.StoragePath, target: s.target, settings: s.settings}, nil
}

func (s *Session) canAppendLocked() bool {
	if s.appending || s.state != ValidationPassed || s.report == nil || !s.report.Passed {
		return false
	}
	key, err := s.currentKeyLocked()
	return err == nil && key == s.reportKey
}

func (s *Session) beginPreview() (uint64, string, ParseSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, "", ParseSettings{}, ErrNoFile
	}
	s.previewGen++
	return s.previewGen, s.file.StoragePath, s.settings, nil
}

// finishPreview records res if gen is still the newest preview.
func (s *Session) finishPreview(gen uint64, res PreviewResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.previewGen {
		return false
	}
	s.preview = &res
	return true
}

func (s *Session) beginValidation() (uint64, runKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appending {
		return 0, runKey{}, ErrRunInProgress
	}
	key, err := s.currentKeyLocked()
	if err != nil {
		return 0, runKey{}, err
	}
	s.validationGen++
	s.state = ValidationRunning
	return s.validationGen, key, nil
}

// finishValidation records report if gen is still the newest validation.
func (s *Session) finishValidation(gen uint64, key runKey, report ValidationReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.validationGen {
		return false
	}
	s.report = &report
	s.reportKey = key
	if report.Passed {
		s.state = ValidationPassed
	} else {
		s.state = ValidationFailed
	}
	return true
}

func (s *Session) beginAppend() (runKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appending {
		return runKey{}, ErrRunInProgress
	}
	if _, err := s.currentKeyLocked(); err != nil {
		return runKey{}, err
	}
	if !s.canAppendLocked() {
		return runKey{}, ErrNotValidated
	}
	s.appending = true
	s.appendPath = s.reportKey.path
	return s.reportKey, nil
}

// finishAppend releases the append lock. After a successful append the gate
// closes so the same file is not appended twice by accident. It returns the
// path of a file replaced during the append, which is now safe to remove.
func (s *Session) finishAppend(succeeded bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appending = false
	s.appendPath = ""
	orphan := s.orphan
	s.orphan = ""
	if succeeded {
		s.state = ValidationIdle
		s.report = nil
		s.reportKey = runKey{}
	}
	return orphan
}

// SessionStore keeps sessions in memory and expires idle ones.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates a store whose sessions expire after ttl of inactivity.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with default settings.
func (st *SessionStore) Create() *Session {
	sess := newSession(uuid.NewString(), st.now())

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns a live session and marks it as used. Expired sessions are
// reported as missing but left for Sweep, which owns their cleanup.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	now := st.now()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if now.Sub(sess.lastSeen) > st.ttl {
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// Delete drops a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of sessions held, expired or not.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep removes expired sessions, skipping any with an append in flight.
// It returns how many were removed and the storage paths of their files,
// which the caller is expected to delete.
func (st *SessionStore) Sweep() (int, []string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	removed := 0
	var files []string
	for id, sess := range st.sessions {
		sess.mu.Lock()
		expired := now.Sub(sess.lastSeen) > st.ttl && !sess.appending
		if expired && sess.file != nil {
			files = append(files, sess.file.StoragePath)
		}
		sess.mu.Unlock()
		if expired {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed, files
}
