// Package transcription defines the speech-to-text service contract shared
// by the cloud and on-device backends, and the registry that selects one
// from configuration.
//
// # Backends
//
//   - transcription/tingwu: Aliyun Tingwu offline tasks (ACS3 signed)
//   - transcription/volcengine: Volcengine big-model ASR
//   - transcription/local: whisper and pyannote sidecars driven in-process
package transcription

import (
	"context"

	"github.com/kbukum/voicememo/provider"
)

// Service is implemented by every transcription backend.
type Service interface {
	provider.Provider // embeds Name() and IsAvailable()

	// CreateTask submits the audio at fileURL and returns the remote task id.
	CreateTask(ctx context.Context, fileURL string) (string, error)
	// GetTaskInfo reports the normalized status of a task with its raw payload.
	GetTaskInfo(ctx context.Context, taskID string) (TaskInfo, error)
	// FetchJSON downloads a JSON document referenced by a task result.
	FetchJSON(ctx context.Context, url string) (map[string]any, error)
	// RequiresRemoteURL reports whether audio must be uploaded before
	// CreateTask. Backends that read local files return false.
	RequiresRemoteURL() bool
}
