package executor

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// imageExtensions are the artifact files tracked per section.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// sectionOutput accumulates a section's recorded text and observed
// artifact filenames. Both grow monotonically within a session.
type sectionOutput struct {
	content []string
	images  map[string]struct{}
}

func (s *Session) section(name string) *sectionOutput {
	sec, ok := s.sectionOutputs[name]
	if !ok {
		sec = &sectionOutput{images: make(map[string]struct{})}
		s.sectionOutputs[name] = sec
	}
	return sec
}

// AddContent appends text to a section's record, creating the section
// if needed.
func (s *Session) AddContent(section, text string) {
	s.section(section).content = append(s.section(section).content, text)
}

// CodeOutput returns everything recorded for a section, newline-joined.
func (s *Session) CodeOutput(section string) string {
	sec, ok := s.sectionOutputs[section]
	if !ok {
		return ""
	}
	return strings.Join(sec.content, "\n")
}

// SectionImages returns every artifact filename observed for a section
// so far, sorted.
func (s *Session) SectionImages(section string) []string {
	sec, ok := s.sectionOutputs[section]
	if !ok {
		return nil
	}
	return sortedKeys(sec.images)
}

// GetCreatedImages lists the sandbox's image files, registers them
// under the section, and returns the ones not yet reported by any
// earlier call in this session. A filename is reported as new at most
// once per session, across all sections. An inactive sandbox or a
// listing failure yields an empty list, never an error.
func (s *Session) GetCreatedImages(ctx context.Context, section string) []string {
	if s.handle == nil || !s.handle.IsRunning(ctx) {
		s.logger.Warn("image listing skipped: sandbox not active", zap.String("section", section))
		return nil
	}

	files, err := s.handle.ListFiles(ctx, RemoteDataDir)
	if err != nil {
		s.suppress("list sandbox images", err)
		return nil
	}

	sec := s.section(section)
	for _, f := range files {
		if imageExtensions[strings.ToLower(filepath.Ext(f.Name))] {
			sec.images[f.Name] = struct{}{}
		}
	}

	var created []string
	for name := range sec.images {
		if _, seen := s.seenImages[name]; !seen {
			created = append(created, name)
		}
	}
	sort.Strings(created)

	for name := range sec.images {
		s.seenImages[name] = struct{}{}
	}

	s.logger.Info("new images", zap.String("section", section), zap.Strings("images", created))
	return created
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
