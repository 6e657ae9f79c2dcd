package pipeline

import (
	"os"

	"github.com/kbukum/voicememo/task"
)

// NewBoard hydrates a board from the persisted task. Only the mixed channel
// is populated. The transcoded file is picked up when it exists on disk, so
// a run resuming after transcoding finds it.
func NewBoard(t *task.Task, cfg BoardConfig) *Board {
	b := NewBoardFor(t.RecordingID, t.CreatedAt, cfg)
	b.UpdateChannel(MixedChannel, func(c *ChannelData) {
		c.RawAudioPath = t.LocalFilePath
		c.RawAudioURL = t.RawOSSURL
		if t.LocalFilePath != "" {
			if p := processedPath(t.LocalFilePath, MixedChannel); fileExists(p) {
				c.ProcessedAudioPath = p
			}
		}
		c.ProcessedAudioURL = t.OSSURL

		c.TaskID = t.TaskID
		c.TaskKey = t.TaskKey
		c.APIStatus = t.APIStatus
		c.StatusText = t.StatusText
		c.BizDuration = t.BizDuration
		c.OutputMP3Path = t.OutputMP3Path

		c.Transcript = t.Transcript
		c.Summary = t.Summary
		c.KeyPoints = t.KeyPoints
		c.ActionItems = t.ActionItems
		c.RawData = t.RawResponse

		c.LastError = t.LastError
		if t.FailedStep != nil {
			s := *t.FailedStep
			c.FailedStep = &s
		}
	})
	return b
}

// Merge folds the mixed channel back into the task. Each task field has
// exactly one node that produces it, and Merge copies the board value
// whether or not it changed, so the board is the only source of truth for
// derived fields during a run:
//
//	RawOSSURL                           UploadOriginalNode
//	OSSURL                              UploadNode (cleared by TranscodeNode)
//	TaskID                              CreateTaskNode
//	TaskKey APIStatus StatusText
//	BizDuration OutputMP3Path           PollingNode, every poll
//	Transcript                          PollingNode, partial while running
//	Summary KeyPoints ActionItems
//	RawResponse                         PollingNode, on success
//
// Status, FailedStep, LastError and RetryCount belong to the orchestrator
// and are never touched here.
func Merge(t *task.Task, b *Board) {
	c, err := b.Channel(MixedChannel)
	if err != nil {
		return
	}
	t.RawOSSURL = c.RawAudioURL
	t.OSSURL = c.ProcessedAudioURL
	t.TaskID = c.TaskID
	t.TaskKey = c.TaskKey
	t.APIStatus = c.APIStatus
	t.StatusText = c.StatusText
	t.BizDuration = c.BizDuration
	t.OutputMP3Path = c.OutputMP3Path
	t.Transcript = c.Transcript
	t.Summary = c.Summary
	t.KeyPoints = c.KeyPoints
	t.ActionItems = c.ActionItems
	t.RawResponse = c.RawData
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
