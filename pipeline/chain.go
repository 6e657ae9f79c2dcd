package pipeline

import "github.com/kbukum/voicememo/task"

// completedStatus is the status a task holds after the node running at
// step succeeds.
var completedStatus = map[task.Status]task.Status{
	task.StatusUploadingRaw: task.StatusUploadedRaw,
	task.StatusTranscoding:  task.StatusTranscoded,
	task.StatusUploading:    task.StatusUploaded,
	task.StatusCreated:      task.StatusPolling,
	task.StatusPolling:      task.StatusCompleted,
}

// ChainOptions are the inputs besides the start status that shape a chain.
type ChainOptions struct {
	Channel int
	// RemoteURL is true when the provider only accepts uploaded audio.
	RemoteURL bool
	// UploadOriginal stores the raw recording before transcoding.
	UploadOriginal bool
}

// Chain returns the nodes to run for a task at start, in order.
//
//	recorded, failed, transcoding  Transcode, Upload*, CreateTask, Polling
//	uploading_raw                  UploadOriginal, Transcode, ...
//	uploaded_raw                   Transcode, ...
//	transcoded, uploading          Upload*, CreateTask, Polling
//	uploaded, created              CreateTask, Polling
//	polling                        Polling
//	completed                      (nothing)
//
// Upload only runs when opts.RemoteURL is set. With opts.UploadOriginal a
// chain starting at recorded begins with UploadOriginal.
func Chain(start task.Status, opts ChainOptions) []Node {
	ch := opts.Channel

	fromCreate := []Node{CreateTaskNode{Channel: ch}, PollingNode{Channel: ch}}
	fromUpload := fromCreate
	if opts.RemoteURL {
		fromUpload = append([]Node{UploadNode{Channel: ch}}, fromCreate...)
	}
	fromTranscode := append([]Node{TranscodeNode{Channel: ch}}, fromUpload...)

	switch start {
	case task.StatusRecorded:
		if opts.UploadOriginal {
			return append([]Node{UploadOriginalNode{Channel: ch}}, fromTranscode...)
		}
		return fromTranscode
	case task.StatusFailed, task.StatusTranscoding, task.StatusUploadedRaw:
		return fromTranscode
	case task.StatusUploadingRaw:
		return append([]Node{UploadOriginalNode{Channel: ch}}, fromTranscode...)
	case task.StatusTranscoded, task.StatusUploading:
		return fromUpload
	case task.StatusUploaded, task.StatusCreated:
		return fromCreate
	case task.StatusPolling:
		return []Node{PollingNode{Channel: ch}}
	default:
		return nil
	}
}
