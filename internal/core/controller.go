package core

import (
	"context"
	"io"
)

// UploadToSession stores a new file and resets sess around it. The file it
// replaces is removed from the store. On failure the session keeps its
// previous file and selection.
func (s *Service) UploadToSession(ctx context.Context, sess *Session, filename string, size int64, r io.Reader) (UploadedFile, error) {
	file, err := s.Upload(ctx, filename, size, r)
	if err != nil {
		return UploadedFile{}, err
	}
	if previous := sess.reset(file, SettingsForFile(file.OriginalFilename)); previous != "" {
		s.removeFile(ctx, previous)
	}
	return file, nil
}

// EndSession drops sess and removes its uploaded file. Commands that own a
// session for their whole run call it on the way out.
func (s *Service) EndSession(ctx context.Context, sess *Session) {
	s.sessions.Delete(sess.ID)
	if path := sess.storagePath(); path != "" {
		s.removeFile(ctx, path)
	}
}

// removeFile deletes a stored upload. Failures are logged, not returned: a
// leftover file never blocks the flow that replaced it.
func (s *Service) removeFile(ctx context.Context, path string) {
	if err := s.store.RemoveFile(ctx, path); err != nil {
		s.logger(ctx).Warn("remove stored file", "path", path, "error", err)
		return
	}
	s.logger(ctx).Debug("stored file removed", "path", path)
}

// PreviewSession applies settings to sess and previews its file. If a newer
// preview starts before this one finishes, this result is returned to the
// caller but not recorded on the session.
func (s *Service) PreviewSession(ctx context.Context, sess *Session, settings ParseSettings) PreviewResult {
	gen, path, settings, err := s.beginSessionPreview(sess, settings)
	if err != nil {
		return PreviewResult{Table: EmptyTable(), Types: []DataType{}, Error: err.Error()}
	}
	res := s.Preview(ctx, path, settings, s.opts.PreviewRows)
	sess.finishPreview(gen, res)
	return res
}

// PreviewAsync runs PreviewSession in the background and calls done with the
// result only if no newer preview or upload superseded it. The returned
// channel is closed when the background work ends, whether or not done ran.
func (s *Service) PreviewAsync(ctx context.Context, sess *Session, settings ParseSettings, done func(PreviewResult)) <-chan struct{} {
	finished := make(chan struct{})

	gen, path, settings, err := s.beginSessionPreview(sess, settings)
	if err != nil {
		res := PreviewResult{Table: EmptyTable(), Types: []DataType{}, Error: err.Error()}
		go func() {
			defer close(finished)
			done(res)
		}()
		return finished
	}

	go func() {
		defer close(finished)
		res := s.Preview(ctx, path, settings, s.opts.PreviewRows)
		if sess.finishPreview(gen, res) {
			done(res)
		}
	}()
	return finished
}

func (s *Service) beginSessionPreview(sess *Session, settings ParseSettings) (uint64, string, ParseSettings, error) {
	if err := sess.SetSettings(settings); err != nil {
		return 0, "", ParseSettings{}, stageErr(StagePreview, err)
	}
	gen, path, current, err := sess.beginPreview()
	if err != nil {
		return 0, "", ParseSettings{}, stageErr(StagePreview, err)
	}
	return gen, path, current, nil
}

// ValidateSession applies settings to sess and validates its file against
// the selected target. A missing file or target is returned as an error;
// everything else is reported inside the ValidationReport.
func (s *Service) ValidateSession(ctx context.Context, sess *Session, settings ParseSettings) (ValidationReport, error) {
	if err := sess.SetSettings(settings); err != nil {
		return ValidationReport{}, stageErr(StageValidate, err)
	}
	gen, key, err := sess.beginValidation()
	if err != nil {
		return ValidationReport{}, stageErr(StageValidate, err)
	}

	report := s.Validate(ctx, key.path, key.target, key.settings)
	sess.finishValidation(gen, key, report)
	return report, nil
}

// AppendSession applies settings to sess and appends its file to the
// selected target, provided the last validation passed for the same file,
// target and settings. Otherwise it returns ErrNotValidated without reading
// the file.
func (s *Service) AppendSession(ctx context.Context, sess *Session, settings ParseSettings) (int64, error) {
	if err := sess.SetSettings(settings); err != nil {
		return 0, stageErr(StageAppend, err)
	}
	key, err := sess.beginAppend()
	if err != nil {
		return 0, stageErr(StageAppend, err)
	}

	inserted, err := s.Append(ctx, key.path, key.target, key.settings)
	if orphan := sess.finishAppend(err == nil); orphan != "" {
		s.removeFile(ctx, orphan)
	}
	return inserted, err
}
