package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/storage"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/transcription"
)

// processedPath is where the transcoded file of a channel lives: next to
// the raw recording, named mixed_48k.m4a or speakerN_48k.m4a.
func processedPath(rawPath string, channel int) string {
	return filepath.Join(filepath.Dir(rawPath), artifactName(channel, "_48k.m4a"))
}

// TranscodeNode re-encodes the channel's raw recording into the format the
// providers accept.
type TranscodeNode struct{ Channel int }

func (n TranscodeNode) Name() string    { return fmt.Sprintf("transcode[%d]", n.Channel) }
func (TranscodeNode) Step() task.Status { return task.StatusTranscoding }

// Run validates the input, removes any stale output and transcodes. Running
// it twice yields the same file.
func (n TranscodeNode) Run(ctx context.Context, b *Board, s *Services) error {
	ch, err := b.Channel(n.Channel)
	if err != nil {
		return err
	}
	if ch.RawAudioPath == "" {
		return InputMissing("Input file path missing")
	}

	output := processedPath(ch.RawAudioPath, n.Channel)
	if output == ch.RawAudioPath {
		return TranscodeFailed(fmt.Errorf("input %s would be overwritten", filepath.Base(output)))
	}

	if _, err := s.Transcoder.Probe(ctx, ch.RawAudioPath); err != nil {
		return TranscodeFailed(err)
	}
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		return TranscodeFailed(err)
	}
	if err := s.Transcoder.Transcode(ctx, ch.RawAudioPath, output); err != nil {
		return TranscodeFailed(err)
	}

	b.UpdateChannel(n.Channel, func(c *ChannelData) {
		c.ProcessedAudioPath = output
		// A new file invalidates anything derived from the old one.
		c.ProcessedAudioURL = ""
	})
	return nil
}

// UploadOriginalNode stores the untranscoded recording.
type UploadOriginalNode struct{ Channel int }

func (n UploadOriginalNode) Name() string    { return fmt.Sprintf("upload_original[%d]", n.Channel) }
func (UploadOriginalNode) Step() task.Status { return task.StatusUploadingRaw }

func (n UploadOriginalNode) Run(ctx context.Context, b *Board, s *Services) error {
	ch, err := b.Channel(n.Channel)
	if err != nil {
		return err
	}
	if ch.RawAudioPath == "" {
		return InputMissing(fmt.Sprintf("Raw audio path missing for channel %d", n.Channel))
	}
	if ch.RawAudioURL != "" {
		return nil
	}

	url, err := storage.UploadFile(ctx, s.Storage, b.ObjectKey(artifactName(n.Channel, "_raw.m4a")), ch.RawAudioPath)
	if err != nil {
		return CloudError(err)
	}
	b.UpdateChannel(n.Channel, func(c *ChannelData) { c.RawAudioURL = url })
	return nil
}

// UploadNode stores the transcoded file and records its public URL.
type UploadNode struct{ Channel int }

func (n UploadNode) Name() string    { return fmt.Sprintf("upload[%d]", n.Channel) }
func (UploadNode) Step() task.Status { return task.StatusUploading }

func (n UploadNode) Run(ctx context.Context, b *Board, s *Services) error {
	ch, err := b.Channel(n.Channel)
	if err != nil {
		return err
	}
	if ch.ProcessedAudioPath == "" {
		return InputMissing("Processed audio path missing")
	}
	if ch.ProcessedAudioURL != "" {
		return nil
	}

	url, err := storage.UploadFile(ctx, s.Storage, b.ObjectKey(artifactName(n.Channel, ".m4a")), ch.ProcessedAudioPath)
	if err != nil {
		return CloudError(err)
	}
	b.UpdateChannel(n.Channel, func(c *ChannelData) { c.ProcessedAudioURL = url })
	return nil
}

// CreateTaskNode submits the channel's audio to the transcription provider.
type CreateTaskNode struct{ Channel int }

func (n CreateTaskNode) Name() string    { return fmt.Sprintf("create_task[%d]", n.Channel) }
func (CreateTaskNode) Step() task.Status { return task.StatusCreated }

func (n CreateTaskNode) Run(ctx context.Context, b *Board, s *Services) error {
	ch, err := b.Channel(n.Channel)
	if err != nil {
		return err
	}
	if ch.TaskID != "" {
		return nil
	}

	audioURL := ch.AudioURL()
	if audioURL == "" {
		return InputMissing("Audio URL missing (OSS or Local)")
	}

	id, err := s.Transcription.CreateTask(ctx, audioURL)
	if err != nil {
		return providerError(err)
	}
	b.UpdateChannel(n.Channel, func(c *ChannelData) {
		c.TaskID = id
		c.TaskStatus = transcription.StatusRunning
	})
	return nil
}

// providerError keeps provider AppErrors as they are and wraps anything
// else as a cloud error.
func providerError(err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return CloudError(err)
}
