package types

import "encoding/json"

// Command names understood on inbound text frames.
const (
	CmdTTS   = "tts"
	CmdError = "error"
	CmdPing  = "ping"
)

// EndOfSpeechMarker is the binary frame a client sends when the user stops speaking.
var EndOfSpeechMarker = []byte("sttend")

// Command is the inbound text frame envelope.
type Command struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TTSData is the payload of a "tts" command.
type TTSData struct {
	Text *string `json:"text"`
}

// TranscriptMessage is sent uncompressed as a text frame.
type TranscriptMessage struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
	IsEnd      bool   `json:"is_end"`
}

// ResponseMessage is the tts / error envelope sent as a compressed binary frame.
type ResponseMessage struct {
	Cmd          string  `json:"cmd"`
	OK           bool    `json:"ok"`
	Status       int     `json:"status"`
	AudioContent *string `json:"audioContent,omitempty"`
	Message      string  `json:"message,omitempty"`
	ToastType    string  `json:"toastType,omitempty"`
	ToastMessage string  `json:"toastMessage,omitempty"`
}

// MarshalJSON keeps audioContent present (as null) on tts envelopes.
func (m ResponseMessage) MarshalJSON() ([]byte, error) {
	type plain ResponseMessage
	if m.Cmd != CmdTTS {
		return json.Marshal(plain(m))
	}
	return json.Marshal(struct {
		plain
		AudioContent *string `json:"audioContent"`
	}{plain: plain(m), AudioContent: m.AudioContent})
}

// TTSOK is the envelope for a successful synthesis.
func TTSOK(audioB64 string) ResponseMessage {
	return ResponseMessage{Cmd: CmdTTS, OK: true, Status: 200, AudioContent: &audioB64}
}

// TTSNoSpeech is the envelope for a synthesis that returned no audio.
func TTSNoSpeech() ResponseMessage {
	return ResponseMessage{
		Cmd:          CmdTTS,
		OK:           false,
		Status:       500,
		Message:      "No speech?",
		ToastType:    "info",
		ToastMessage: "No speech?",
	}
}

// Error is the envelope for a failed command.
func Error() ResponseMessage {
	return ResponseMessage{
		Cmd:          CmdError,
		OK:           false,
		Status:       500,
		Message:      "error",
		ToastType:    "error",
		ToastMessage: "error",
	}
}
