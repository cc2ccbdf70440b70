package vidu

// JobSpec carries everything the lifecycle engine knows about a job at
// submission time. The client turns it into the service's task payload.
type JobSpec struct {
	// AssetRef is the uploaded image reference ("ssupload:?id=...").
	AssetRef string
	// Prompt is the user's motion prompt; the client prefixes the image tag.
	Prompt string
	// Width and Height are the source image dimensions in pixels, used for
	// the selected region of the image prompt entry.
	Width  int
	Height int
	// AspectRatio is the descriptor derived from the image dimensions.
	AspectRatio string
	// OffPeak selects the service's discounted scheduling mode.
	OffPeak bool
}

// StateSnapshot is the result of one poll of a task's remote state.
type StateSnapshot struct {
	RawState          string `json:"state"`
	EstimatedTimeLeft int    `json:"estimated_time_left"`
	ErrCode           string `json:"err_code,omitempty"`
}

// HistoryPage is one page of the remote history feed.
type HistoryPage struct {
	Items []HistoryItem `json:"tasks"`
	Total int           `json:"total"`
}

// HistoryItem is one remote task descriptor from the history feed.
type HistoryItem struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	Type      string     `json:"type,omitempty"`
	Scene     string     `json:"scene,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
	ErrCode   string     `json:"err_code,omitempty"`
	Creations []Creation `json:"creations,omitempty"`
}

// Creation is one rendered artifact produced by a task. A task may yield
// several; each exposes up to three interchangeable download URLs.
type Creation struct {
	ID          string     `json:"id"`
	Type        string     `json:"type,omitempty"`
	Grade       string     `json:"grade,omitempty"`
	Duration    int        `json:"duration,omitempty"`
	URI         string     `json:"uri,omitempty"`
	DownloadURI string     `json:"download_uri,omitempty"`
	NomarkURI   string     `json:"nomark_uri,omitempty"`
	CoverURI    string     `json:"cover_uri,omitempty"`
	HasAudio    bool       `json:"has_audio,omitempty"`
	Resolution  Resolution `json:"resolution,omitempty"`
}

// Resolution describes a creation's pixel dimensions.
type Resolution struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// PreferredURL returns the creation's best download URL in the fixed
// preference order: unwatermarked before watermarked. Empty when the
// creation exposes no usable URL.
func (c Creation) PreferredURL() string {
	switch {
	case c.NomarkURI != "":
		return c.NomarkURI
	case c.DownloadURI != "":
		return c.DownloadURI
	case c.URI != "":
		return c.URI
	default:
		return ""
	}
}

// createTaskRequest is the wire form of a task submission.
type createTaskRequest struct {
	Input    taskInput    `json:"input"`
	Type     string       `json:"type"`
	Settings taskSettings `json:"settings"`
}

type taskInput struct {
	Prompts    []promptEntry `json:"prompts"`
	EditorMode string        `json:"editor_mode"`
	Enhance    bool          `json:"enhance"`
}

// promptEntry is one element of the prompts array: either the text prompt or
// the image reference with its selected region.
type promptEntry struct {
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	SrcImgs        []string        `json:"src_imgs,omitempty"`
	SelectedRegion *selectedRegion `json:"selected_region,omitempty"`
	Name           string          `json:"name,omitempty"`
}

type selectedRegion struct {
	TopLeft     point `json:"top_left"`
	BottomRight point `json:"bottom_right"`
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type taskSettings struct {
	Style             string `json:"style"`
	Duration          int    `json:"duration"`
	Resolution        string `json:"resolution"`
	MovementAmplitude string `json:"movement_amplitude"`
	AspectRatio       string `json:"aspect_ratio"`
	SampleCount       int    `json:"sample_count"`
	ScheduleMode      string `json:"schedule_mode"`
	ModelVersion      string `json:"model_version"`
	UseTrial          bool   `json:"use_trial"`
}

// createTaskResponse is the wire form of a successful submission. The
// service returns the new task's ID under "id".
type createTaskResponse struct {
	ID string `json:"id"`
}

// errorResponse is the service's error body shape.
type errorResponse struct {
	Message string `json:"message"`
}
