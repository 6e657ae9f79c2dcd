package task

import "testing"

func TestNew(t *testing.T) {
	tk := New("rec-1", "/tmp/mixed.m4a", "Standup")
	if tk.ID == "" {
		t.Error("expected generated id")
	}
	if tk.Status != StatusRecorded {
		t.Errorf("expected recorded, got %s", tk.Status)
	}
	if tk.Mode != ModeMixed {
		t.Errorf("expected mixed mode, got %s", tk.Mode)
	}
	if !tk.Consistent() {
		t.Error("new task should be consistent")
	}
}

func TestFailAndAdvanceKeepFailedStepInSync(t *testing.T) {
	tk := New("rec-1", "/tmp/a.m4a", "")
	tk.Fail(StatusUploading, "Input missing: processed audio")
	if tk.Status != StatusFailed || tk.FailedStep == nil || *tk.FailedStep != StatusUploading {
		t.Fatalf("unexpected failure state %+v", tk)
	}
	if !tk.Consistent() {
		t.Error("failed task should be consistent")
	}

	tk.MarkRunning(StatusUploading)
	if tk.FailedStep != nil || !tk.Consistent() {
		t.Error("running task must not carry a failed step")
	}

	tk.Advance(StatusUploaded)
	if tk.LastSuccessfulStatus != StatusUploaded || tk.LastError != "" {
		t.Errorf("unexpected state after advance %+v", tk)
	}
}

func TestResumePoint(t *testing.T) {
	tk := New("rec-1", "/tmp/a.m4a", "")
	if tk.ResumePoint() != StatusRecorded {
		t.Errorf("expected recorded, got %s", tk.ResumePoint())
	}

	tk.Fail(StatusPolling, "Task failed: x")
	if tk.ResumePoint() != StatusPolling {
		t.Errorf("expected polling, got %s", tk.ResumePoint())
	}

	tk.FailedStep = nil
	if tk.ResumePoint() != StatusRecorded {
		t.Errorf("failed without step should resume from recorded, got %s", tk.ResumePoint())
	}
}

func TestResetDerived(t *testing.T) {
	tk := New("rec-1", "/tmp/a.m4a", "Keep me")
	tk.TaskID = "remote"
	tk.Transcript = "hello"
	tk.RetryCount = 2
	tk.Fail(StatusPolling, "boom")

	tk.ResetDerived()
	if tk.TaskID != "" || tk.Transcript != "" || tk.FailedStep != nil || tk.Status != StatusRecorded {
		t.Errorf("derived fields not cleared: %+v", tk)
	}
	if tk.Title != "Keep me" || tk.RetryCount != 2 || tk.LocalFilePath != "/tmp/a.m4a" {
		t.Errorf("identity fields must survive reset: %+v", tk)
	}
}

func TestClone(t *testing.T) {
	tk := New("rec-1", "/tmp/a.m4a", "")
	tk.Fail(StatusCreated, "x")
	c := tk.Clone()
	*c.FailedStep = StatusPolling
	if *tk.FailedStep != StatusCreated {
		t.Error("clone must not share the failed step pointer")
	}
}

func TestStatusOrdering(t *testing.T) {
	if !StatusPolling.Reached(StatusUploaded) {
		t.Error("polling has passed uploaded")
	}
	if StatusTranscoded.Reached(StatusUploaded) {
		t.Error("transcoded has not reached uploaded")
	}
	if StatusFailed.Reached(StatusRecorded) {
		t.Error("failed never counts as reached")
	}
	if StatusRecorded.Ordinal() != 0 || Status("bogus").Ordinal() != -1 {
		t.Error("unexpected ordinals")
	}
	if !StatusCompleted.IsTerminal() || StatusPolling.IsTerminal() {
		t.Error("unexpected terminal classification")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("expected error for unknown status")
	}
}
