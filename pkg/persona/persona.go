// Package persona shapes final answers in the voice of the backend that
// produced them.
package persona

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/backend"
)

// ErrUnknownBackend is returned for a backend id missing from the registry.
var ErrUnknownBackend = errors.New("unknown backend")

// Personalizer formats content for the user.
type Personalizer interface {
	Format(content, backendID string, success bool) (string, error)
}

// PersonalizerFunc adapts a function to Personalizer.
type PersonalizerFunc func(content, backendID string, success bool) (string, error)

// Format calls f.
func (f PersonalizerFunc) Format(content, backendID string, success bool) (string, error) {
	return f(content, backendID, success)
}

// Passthrough returns content unchanged.
var Passthrough = PersonalizerFunc(func(content, _ string, _ bool) (string, error) {
	return content, nil
})

// Verbosity controls how much of an answer is kept.
type Verbosity string

const (
	VerbosityBrief  Verbosity = "brief"
	VerbosityNormal Verbosity = "normal"
)

// Voice is how one family of backends signs its answers. An empty
// Signature leaves content untouched.
type Voice struct {
	Name      string
	Signature string
}

// DefaultVoices returns the built-in voices keyed by name.
func DefaultVoices() map[string]Voice {
	return map[string]Voice{
		"companion":   {Name: "companion"},
		"terse":       {Name: "terse"},
		"engineer":    {Name: "engineer", Signature: "engineering desk"},
		"librarian":   {Name: "librarian", Signature: "reference desk"},
		"mechanic":    {Name: "mechanic", Signature: "repair bench"},
		"storyteller": {Name: "storyteller", Signature: "writing room"},
		"philosopher": {Name: "philosopher", Signature: "thinking chair"},
		"artist":      {Name: "artist", Signature: "studio"},
	}
}

// VoiceFormatter signs successful answers with the backend's voice. Failed
// results are returned as they are, since they already carry a user-safe
// message.
type VoiceFormatter struct {
	registry  *backend.Registry
	voices    map[string]Voice
	verbosity Verbosity
}

// NewVoiceFormatter creates a formatter. A nil voices map uses DefaultVoices.
func NewVoiceFormatter(reg *backend.Registry, voices map[string]Voice, verbosity Verbosity) *VoiceFormatter {
	if voices == nil {
		voices = DefaultVoices()
	}
	if verbosity == "" {
		verbosity = VerbosityNormal
	}
	return &VoiceFormatter{registry: reg, voices: voices, verbosity: verbosity}
}

// Format implements Personalizer.
func (f *VoiceFormatter) Format(content, backendID string, success bool) (string, error) {
	if !success {
		return content, nil
	}
	desc, ok := f.registry.Get(backendID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, backendID)
	}
	// command output is shown exactly as produced
	if desc.Transport == backend.TransportLoopback {
		return content, nil
	}

	voice, ok := f.voices[desc.Voice]
	if !ok {
		voice = Voice{Name: desc.Voice}
	}

	body := strings.TrimSpace(content)
	if f.verbosity == VerbosityBrief {
		body = firstParagraph(body)
	}
	if voice.Signature == "" {
		return body, nil
	}
	return fmt.Sprintf("%s\n\n~ %s (%s)", body, voice.Signature, desc.ID), nil
}

// firstParagraph keeps text up to the first blank line unless the answer
// contains code, which is never cut.
func firstParagraph(text string) string {
	if strings.Contains(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n\n"); idx != -1 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

// SafeFormat runs p and falls back to the raw content on error or panic.
func SafeFormat(p Personalizer, log zerolog.Logger, content, backendID string, success bool) (out string) {
	if p == nil {
		return content
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("backend", backendID).Interface("panic", r).Msg("personalizer panicked")
			out = content
		}
	}()

	formatted, err := p.Format(content, backendID, success)
	if err != nil {
		log.Warn().Str("backend", backendID).Err(err).Msg("personalizer failed")
		return content
	}
	return formatted
}
