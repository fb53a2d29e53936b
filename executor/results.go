package executor

import (
	"fmt"
	"regexp"
	"strings"

	"codesession/model"
	"codesession/sandbox"
)

const defaultTruncateLimit = 1000

// truncationMarker is counted inside the cap, so truncating an already
// truncated string changes nothing.
const truncationMarker = "\n... (output truncated) ...\n"

var ansiEscape = regexp.MustCompile(`(\x9B|\x1B\[)[0-?]*[ -/]*[@-~]`)

// normalizeExecution turns a raw execution outcome into the ordered
// display list and the machine-facing summary. Order: error, stdout,
// stderr, then result representations in engine order, each probed in
// the fixed format priority.
func (s *Session) normalizeExecution(execution *sandbox.Execution) *model.ExecutionResult {
	var textToGPT []string
	var display []model.DisplayItem
	errorOccurred := false
	errorMessage := ""

	if execution.Error != nil {
		raw := fmt.Sprintf("Error: %s: %s\n%s",
			execution.Error.Name, execution.Error.Value, execution.Error.Traceback)
		cleaned := stripColorControlChars(raw)
		truncated := s.truncate(cleaned)

		errorOccurred = true
		errorMessage = truncated
		display = append(display, model.DisplayItem{Kind: model.KindError, Msg: truncated})
		textToGPT = append(textToGPT, truncated)
		s.record("record error output", func(r Recorder) error { return r.AddCodeCellError(cleaned) })
	}

	if len(execution.Stdout) > 0 {
		joined := strings.Join(execution.Stdout, "\n")
		display = append(display, model.DisplayItem{Kind: model.KindStdout, Msg: joined})
		textToGPT = append(textToGPT, s.truncate("[stdout]\n"+joined))
		// The transcript keeps the untruncated text; only the machine
		// summary is capped.
		s.record("record cell output", func(r Recorder) error { return r.AddCodeCellOutput(joined) })
	}

	if len(execution.Stderr) > 0 {
		joined := strings.Join(execution.Stderr, "\n")
		display = append(display, model.DisplayItem{Kind: model.KindStderr, Msg: joined})
		textToGPT = append(textToGPT, s.truncate("[stderr]\n"+joined))
	}

	for _, result := range execution.Results {
		for _, format := range sandbox.FormatPriority {
			payload, ok := probeRepresentation(result, format)
			if !ok {
				continue
			}

			display = append(display, model.DisplayItem{
				Kind:   model.KindResult,
				Format: string(format),
				Msg:    payload,
			})

			if sandbox.IsBinaryMedia(format) {
				// Binary payloads never enter the summary buffer.
				textToGPT = append(textToGPT, fmt.Sprintf("[%s item generated, data not shown]", format))
				switch format {
				case sandbox.FormatPNG:
					s.record("record image", func(r Recorder) error { return r.AddImage(payload, "image/png") })
				case sandbox.FormatJPEG:
					s.record("record image", func(r Recorder) error { return r.AddImage(payload, "image/jpeg") })
				}
			} else {
				textToGPT = append(textToGPT, s.truncate(fmt.Sprintf("[%s]\n%s", format, payload)))
			}
		}
	}

	return &model.ExecutionResult{
		CombinedText:  strings.Join(textToGPT, "\n"),
		ErrorOccurred: errorOccurred,
		ErrorMessage:  errorMessage,
		Display:       display,
	}
}

// probeRepresentation asks a result value for one format and treats any
// panic from the probe as "not available".
func probeRepresentation(result sandbox.Result, format sandbox.Format) (payload string, ok bool) {
	defer func() {
		if recover() != nil {
			payload, ok = "", false
		}
	}()
	return result.Representation(format)
}

func (s *Session) truncate(text string) string {
	return truncateText(text, s.truncateLimit)
}

// truncateText caps text at limit, keeping the head and tail around the
// truncation marker. The output never exceeds limit, which makes the
// operation idempotent.
func truncateText(text string, limit int) string {
	if limit <= 0 {
		limit = defaultTruncateLimit
	}
	if len(text) <= limit {
		return text
	}

	half := (limit - len(truncationMarker)) / 2
	if half < 1 {
		return text[:limit]
	}
	return text[:half] + truncationMarker + text[len(text)-half:]
}

// stripColorControlChars removes ANSI color-control sequences from
// terminal output.
func stripColorControlChars(text string) string {
	return ansiEscape.ReplaceAllString(text, "")
}
