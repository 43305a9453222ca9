package model

// AudioChunk represents one inbound binary frame of PCM16 audio.
type AudioChunk []byte

// Sentinel is an in-band control marker carried by the audio queue.
type Sentinel int

const (
	// NoSentinel marks an item that carries audio.
	NoSentinel Sentinel = iota
	// EndOfSpeech is queued when the client reports the user stopped speaking.
	EndOfSpeech
	// Close is queued by teardown to release the recognition worker.
	Close
)

func (s Sentinel) String() string {
	switch s {
	case EndOfSpeech:
		return "end_of_speech"
	case Close:
		return "close"
	default:
		return "audio"
	}
}

// Item is an element of the audio ingest queue: either a chunk or a sentinel.
type Item struct {
	Chunk    AudioChunk
	Sentinel Sentinel
}

// AudioItem wraps a chunk for the queue.
func AudioItem(chunk AudioChunk) Item {
	return Item{Chunk: chunk}
}

// ControlItem wraps a sentinel for the queue.
func ControlItem(s Sentinel) Item {
	return Item{Sentinel: s}
}

// IsAudio reports whether the item carries audio.
func (i Item) IsAudio() bool {
	return i.Sentinel == NoSentinel
}

// TranscriptEvent is produced for every recognition result sent to the client.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
	IsEnd   bool
}
