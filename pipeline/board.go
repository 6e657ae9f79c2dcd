package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/transcription"
)

// MixedChannel is the channel id of a mixed-mode recording. Channels 1 and
// 2 hold per-speaker audio in separated mode.
const MixedChannel = 0

// BoardConfig is the static configuration a run is started with.
type BoardConfig struct {
	// OSSPrefix is prepended to every object key.
	OSSPrefix string `yaml:"oss_prefix" mapstructure:"oss_prefix"`
	AppKey    string `yaml:"app_key" mapstructure:"app_key"`

	EnableSummarization      bool `yaml:"enable_summarization" mapstructure:"enable_summarization"`
	EnableMeetingAssistance  bool `yaml:"enable_meeting_assistance" mapstructure:"enable_meeting_assistance"`
	EnableSpeakerDiarization bool `yaml:"enable_speaker_diarization" mapstructure:"enable_speaker_diarization"`
	SpeakerCount             int  `yaml:"speaker_count" mapstructure:"speaker_count"`

	// UploadOriginal also stores the untranscoded recording.
	UploadOriginal bool `yaml:"upload_original" mapstructure:"upload_original"`
}

// ChannelData holds the artifacts and remote state of one audio channel.
type ChannelData struct {
	RawAudioPath       string
	RawAudioURL        string
	ProcessedAudioPath string
	ProcessedAudioURL  string

	TaskID        string
	TaskStatus    transcription.NormalizedStatus
	APIStatus     string
	TaskKey       string
	StatusText    string
	BizDuration   int
	OutputMP3Path string

	Transcript  string
	Summary     string
	KeyPoints   string
	ActionItems string

	// Raw JSON documents kept for audit.
	OverviewData     string
	TranscriptData   string
	ConversationData string
	RawData          string

	LastError  string
	FailedStep *task.Status
}

// AudioURL is the address handed to the transcription provider: the
// uploaded URL when present, the local file otherwise.
func (c ChannelData) AudioURL() string {
	if c.ProcessedAudioURL != "" {
		return c.ProcessedAudioURL
	}
	if c.ProcessedAudioPath != "" {
		return "file://" + c.ProcessedAudioPath
	}
	return ""
}

// Board is the per-run scratchpad nodes read from and write to. It is
// created from a task, owned by one run, and never persisted.
type Board struct {
	RecordingID string
	CreatedAt   time.Time
	Config      BoardConfig

	mu       sync.RWMutex
	channels map[int]ChannelData
}

// NewBoardFor creates an empty board for a recording.
func NewBoardFor(recordingID string, createdAt time.Time, cfg BoardConfig) *Board {
	return &Board{
		RecordingID: recordingID,
		CreatedAt:   createdAt,
		Config:      cfg,
		channels:    make(map[int]ChannelData),
	}
}

// UpdateChannel applies fn to channel id, inserting an empty channel first
// when it does not exist. It is the only way channel state changes.
func (b *Board) UpdateChannel(id int, fn func(*ChannelData)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := b.channels[id]
	fn(&ch)
	b.channels[id] = ch
}

// Channel returns a copy of channel id.
func (b *Board) Channel(id int) (ChannelData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.channels[id]
	if !ok {
		return ChannelData{}, ChannelNotFound(id)
	}
	return ch, nil
}

// Channels returns the ids of all channels in ascending order.
func (b *Board) Channels() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int, 0, len(b.channels))
	for id := range b.channels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FormattedDatePath is the yyyy/MM/dd prefix shared by every object key of
// the recording.
func (b *Board) FormattedDatePath() string {
	return b.CreatedAt.Format("2006/01/02")
}

// ObjectKey builds {prefix}/{yyyy/MM/dd}/{recordingID}/{artifact}.
func (b *Board) ObjectKey(artifact string) string {
	key := fmt.Sprintf("%s/%s/%s", b.FormattedDatePath(), b.RecordingID, artifact)
	if prefix := strings.TrimSuffix(b.Config.OSSPrefix, "/"); prefix != "" {
		return prefix + "/" + key
	}
	return key
}

// artifactName names a channel's file: mixed{suffix} or speakerN{suffix}.
func artifactName(channel int, suffix string) string {
	if channel == MixedChannel {
		return "mixed" + suffix
	}
	return fmt.Sprintf("speaker%d%s", channel, suffix)
}
