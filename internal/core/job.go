package core

import "time"

// FetchKind selects which worker routine runs a download job and
// which timeout applies to it.
type FetchKind string

const (
	FetchKindPost  FetchKind = "post"
	FetchKindStory FetchKind = "story"
	FetchKindSong  FetchKind = "song"
	FetchKindAlbum FetchKind = "album"
	FetchKindShort FetchKind = "short"
)

// Feature names understood by the feature-flag map.
const (
	FeatureInst     = "inst"
	FeatureYTShorts = "yt_shorts"
	FeatureYTM      = "ytm"
	FeatureYT       = "yt"
)

// DefaultFeatures is the compiled-in feature state used when no backup
// exists or the backup cannot be read.
func DefaultFeatures() map[string]bool {
	return map[string]bool{
		FeatureInst:     true,
		FeatureYTShorts: true,
		FeatureYTM:      true,
		FeatureYT:       true,
	}
}

// FeatureNames maps feature keys to the user-facing platform name.
var FeatureNames = map[string]string{
	FeatureInst:     "Instagram",
	FeatureYTShorts: "YouTube Shorts",
	FeatureYTM:      "YouTube Music",
	FeatureYT:       "YouTube (audio)",
}

// FeatureForKind returns the feature a job kind belongs to. A fatal
// outcome for that kind disables this feature.
func FeatureForKind(kind FetchKind) string {
	switch kind {
	case FetchKindPost, FetchKindStory:
		return FeatureInst
	case FetchKindShort:
		return FeatureYTShorts
	case FetchKindSong, FetchKindAlbum:
		return FeatureYTM
	default:
		return ""
	}
}

// JobSpec describes one bounded, retryable external fetch operation.
type JobSpec struct {
	// ID is the external identifier: an Instagram shortcode,
	// a YouTube video id or an album playlist id.
	ID   string
	Kind FetchKind
	// Dir is the working directory owned by the job's worker process.
	// Nobody else reads or writes it until the job reports completion.
	Dir string
}

// JobState is a state of a download job.
type JobState string

const (
	JobStatePending       JobState = "JOB_PENDING"
	JobStateRunning       JobState = "JOB_RUNNING"
	JobStateSucceeded     JobState = "JOB_SUCCEEDED"
	JobStateTimedOutRetry JobState = "JOB_TIMED_OUT_RETRY"
	JobStateTimedOutFatal JobState = "JOB_TIMED_OUT_FATAL"
	JobStateFailed        JobState = "JOB_FAILED"
)

// Terminal reports whether the state ends the job.
// JobStateTimedOutRetry is not terminal: the job goes back to pending.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateTimedOutFatal, JobStateFailed:
		return true
	default:
		return false
	}
}

// Outcome is the terminal result of a job, reported exactly once.
type Outcome struct {
	State    JobState
	ExitCode int
	Attempts int
	// Degraded is set when the outcome disabled a feature.
	Degraded bool

	Err error

	FinishedAt time.Time
}

// Succeeded reports whether the worker process exited cleanly.
func (o Outcome) Succeeded() bool {
	return o.State == JobStateSucceeded
}
