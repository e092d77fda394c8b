package job

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// Job is one asset handed over for transcoding, as it arrives on the queue.
type Job struct {
	Path           string `json:"path"`
	ExpectedFrames int    `json:"expected_frames,omitempty"` // informational only
}

// Task is a job with its position in a batch
type Task struct {
	Job
	Idx int
}

func New(path string) Job {
	return Job{Path: path}
}

func FromPaths(paths []string) []Job {
	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = New(p)
	}
	return jobs
}

func Parse(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("bad job message: %w", err)
	}
	return j, j.Validate()
}

func (j Job) Validate() error {
	if j.Path == "" {
		return fmt.Errorf("job has no path")
	}
	if j.ExpectedFrames < 0 {
		return fmt.Errorf("job %s: negative frame count %d", j.Path, j.ExpectedFrames)
	}
	return nil
}

func (j Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

func (j *Job) Print() string {
	return fmt.Sprintf("Job: %s, expected frames: %d", filepath.Base(j.Path), j.ExpectedFrames)
}
