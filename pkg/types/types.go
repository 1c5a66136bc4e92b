// Package types defines the shared types used across all Babelrelay packages.
//
// These types form the lingua franca between the transport hub, the
// segmentation engine, the dispatch layer, and the providers. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Transcript represents a single speech-recognition update received from a
// speaker. Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the cumulative recognized speech for the current utterance.
	Text string

	// IsFinal indicates whether the recognizer has committed this text.
	// Partial transcripts may still be revised.
	IsFinal bool

	// Timestamp marks when the recognizer produced this update.
	Timestamp time.Time

	// Offset is the start of the utterance relative to session start.
	// Zero when the recognizer does not report it.
	Offset time.Duration

	// Duration is the length of the utterance so far. Zero when unknown.
	Duration time.Duration

	// Translations optionally carries client-side translations keyed by
	// target language. When present, the relay uses them verbatim and skips
	// the translator.
	Translations map[string]string
}

// AudioChunk is a piece of synthesized audio on its way to listeners.
type AudioChunk struct {
	// Data is the encoded audio payload.
	Data []byte

	// Format is the container/codec hint listeners use to play the audio
	// (e.g., "mp3", "pcm_16000").
	Format string

	// Language is the target language this audio was synthesized for.
	Language string

	// Text is the source text of the audio, when known.
	Text string

	// Sequence mirrors the originating Utterance sequence number.
	Sequence uint64

	// IsFinal marks audio produced from a final transcript.
	IsFinal bool

	// Confidence is the segmentation stability score of the source
	// utterance, in [0, 1]. Zero when the policy does not compute one.
	Confidence float64

	// Streaming is true when the chunk came from a persistent synthesis
	// channel rather than a one-shot request.
	Streaming bool
}

// Voice describes a synthesis voice offered by a TTS provider.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is the BCP-47 language code the voice is tuned for.
	Language string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}
