package hub

import "encoding/json"

// Envelope is the wire framing for every message on the duplex transport: a
// string event name and a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-sent event names.
const (
	EventSpeakerJoin    = "speaker-join"
	EventTranscript     = "transcript"
	EventListenerJoin   = "listener-join"
	EventChangeLanguage = "change-language"
	EventUpdateVoice    = "update-voice"
	EventListenerLeave  = "listener-leave"
)

// Server-emitted event names.
const (
	EventJoined               = "joined"
	EventSessionStarted       = "session-started"
	EventSessionNotFound      = "session-not-found"
	EventSpeakerDisconnected  = "speaker-disconnected"
	EventLanguageChanged      = "language-changed"
	EventVoiceUpdated         = "voice-updated"
	EventTranslationUpdate    = "translation-update"
	EventAudioStream          = "audio-stream"
	EventTranslationBroadcast = "translation-broadcast"
)

// SpeakerJoin creates a session under a 4-character code.
type SpeakerJoin struct {
	Code        string   `json:"code"`
	SourceLang  string   `json:"source_lang"`
	TargetLangs []string `json:"target_langs,omitempty"`
	SourceHint  string   `json:"source_hint,omitempty"`
}

// TranscriptEvent is a speech-recognition update from the speaker. Timestamp
// is Unix milliseconds; Offset and Duration are in milliseconds too.
type TranscriptEvent struct {
	Code         string            `json:"code"`
	Text         string            `json:"text"`
	IsFinal      bool              `json:"is_final"`
	Timestamp    int64             `json:"timestamp,omitempty"`
	Offset       int64             `json:"offset,omitempty"`
	Duration     int64             `json:"duration,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
}

// ListenerJoin subscribes a connection to a session's output for one language.
type ListenerJoin struct {
	Code  string `json:"code"`
	Lang  string `json:"lang"`
	Voice string `json:"voice,omitempty"`
}

// ChangeLanguage switches a listener's subscription language.
type ChangeLanguage struct {
	Code string `json:"code"`
	Lang string `json:"lang"`
}

// UpdateVoice changes a listener's voice preference.
type UpdateVoice struct {
	Code  string `json:"code"`
	Voice string `json:"voice"`
}

// ListenerLeave removes a listener from a session.
type ListenerLeave struct {
	Code string `json:"code"`
}

// Joined acknowledges a successful speaker or listener join.
type Joined struct {
	OK                 bool     `json:"ok"`
	Code               string   `json:"code"`
	Mode               string   `json:"mode,omitempty"`
	AvailableLanguages []string `json:"available_languages,omitempty"`
	SourceLang         string   `json:"source_lang,omitempty"`
}

// SessionEvent is the payload of the code-only server events:
// session-started, session-not-found and speaker-disconnected.
type SessionEvent struct {
	Code string `json:"code"`
}

// LanguageChanged confirms a change-language request.
type LanguageChanged struct {
	Code string `json:"code"`
	Lang string `json:"lang"`
}

// VoiceUpdated confirms an update-voice request.
type VoiceUpdated struct {
	Code  string `json:"code"`
	Voice string `json:"voice"`
}

// TranslationUpdate carries translated display text to listeners.
type TranslationUpdate struct {
	Text          string `json:"text"`
	Language      string `json:"language"`
	IsFinal       bool   `json:"is_final"`
	PartialNumber int    `json:"partial_number,omitempty"`
}

// AudioStream carries one synthesized audio chunk. Audio marshals to base64.
type AudioStream struct {
	Audio      []byte  `json:"audio"`
	Format     string  `json:"format"`
	Language   string  `json:"language"`
	Text       string  `json:"text,omitempty"`
	Sequence   uint64  `json:"sequence,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	IsStable   bool    `json:"isStable,omitempty"`
	IsFinal    bool    `json:"isFinal,omitempty"`
	Streaming  bool    `json:"streaming,omitempty"`
}

// TranslationBroadcast is the diagnostic fan-out of one transcript event and
// everything it translated to. Latency is in milliseconds.
type TranslationBroadcast struct {
	Original     string            `json:"original"`
	Translations map[string]string `json:"translations"`
	IsFinal      bool              `json:"is_final"`
	Timestamp    int64             `json:"timestamp"`
	Latency      int64             `json:"latency"`
}
