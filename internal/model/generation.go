package model

// Request defaults applied when a field is left at its zero value
const (
	DefaultDurationSeconds = 35
	DefaultMaxScenes       = 4
)

// GenerationRequest is the input of one pipeline run
type GenerationRequest struct {
	Concept         string `json:"concept" validate:"required,max=500"`
	Goal            string `json:"goal" validate:"omitempty,max=1000"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=1,max=600"`
	MaxScenes       int    `json:"max_scenes" validate:"min=1,max=20"`
	FastMode        bool   `json:"fast_mode"`
	AutoRender      bool   `json:"auto_render"`
}

// ApplyDefaults fills zero-valued numeric fields with the service defaults.
func (r *GenerationRequest) ApplyDefaults() {
	if r.DurationSeconds == 0 {
		r.DurationSeconds = DefaultDurationSeconds
	}
	if r.MaxScenes == 0 {
		r.MaxScenes = DefaultMaxScenes
	}
}

// EstimatedSeconds is the rough wall-clock budget reported to clients.
func (r GenerationRequest) EstimatedSeconds() int {
	if r.AutoRender {
		return 30
	}
	return 15
}

// JobResponse is returned when a job is created
type JobResponse struct {
	JobID                string    `json:"job_id"`
	Status               JobStatus `json:"status"`
	EstimatedTimeSeconds int       `json:"estimated_time_seconds"`
}

// StatusResponse is the read-only view of a job
type StatusResponse struct {
	JobID             string    `json:"job_id"`
	Status            JobStatus `json:"status"`
	Progress          int       `json:"progress"`
	CurrentStep       *string   `json:"current_step"`
	VideoURL          *string   `json:"video_url"`
	Error             *string   `json:"error"`
	Plan              Document  `json:"plan"`
	ManimCode         *string   `json:"manim_code"`
	Understanding     Document  `json:"understanding"`
	ValidationPassed  *bool     `json:"validation_passed,omitempty"`
	ValidationMetrics Document  `json:"validation_metrics,omitempty"`
}

// NewStatusResponse projects a job snapshot onto the status view.
func NewStatusResponse(j *Job) *StatusResponse {
	return &StatusResponse{
		JobID:             j.ID,
		Status:            j.Status,
		Progress:          j.Progress,
		CurrentStep:       j.CurrentStep,
		VideoURL:          j.VideoURL,
		Error:             j.Error,
		Plan:              j.Plan,
		ManimCode:         j.Code,
		Understanding:     j.Understanding,
		ValidationPassed:  j.ValidationPassed,
		ValidationMetrics: j.ValidationMetrics,
	}
}
