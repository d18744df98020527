package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// VideoInfo is the probed geometry and frame rate of a video.
type VideoInfo struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frameRate"`
}

// Job describes an orchestrator job in a transport-friendly format.
type Job struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Input        string     `json:"input"`
	Output       string     `json:"output,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	FrameRate    float64    `json:"frameRate,omitempty"`
	Info         *VideoInfo `json:"info,omitempty"`
	Outcome      string     `json:"outcome,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	OutputBytes  int64      `json:"outputBytes,omitempty"`
	QueuedAt     string     `json:"queuedAt,omitempty"`
	StartedAt    string     `json:"startedAt,omitempty"`
	FinishedAt   string     `json:"finishedAt,omitempty"`
}

// TranscoderStatus reports the provisioned executable.
type TranscoderStatus struct {
	Ready  bool   `json:"ready"`
	Path   string `json:"path,omitempty"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StatusResponse aggregates runtime information for API consumers.
type StatusResponse struct {
	State        string             `json:"state"`
	Queued       int                `json:"queued"`
	Current      *Job               `json:"current,omitempty"`
	Last         *Job               `json:"last,omitempty"`
	Transcoder   TranscoderStatus   `json:"transcoder"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ProbeRequest is the body of POST /api/probe.
type ProbeRequest struct {
	Path string `json:"path"`
}

// ConvertRequest is the body of POST /api/convert. Resolution may be given
// as "WxH" instead of width and height.
type ConvertRequest struct {
	Input      string  `json:"input"`
	Output     string  `json:"output"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	FrameRate  float64 `json:"frameRate,omitempty"`
	// Force skips the input size limit.
	Force bool `json:"force,omitempty"`
}

// AcceptedResponse acknowledges queued work.
type AcceptedResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ErrorResponse is returned for every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
