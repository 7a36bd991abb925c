package tasks

// JobState is the pipeline stage a job is in.
type JobState int

const (
	Idle JobState = iota
	Triggering
	CheckingHash
	Downloading
	Reconciling
)

func (s JobState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggering:
		return "triggering"
	case CheckingHash:
		return "checking_hash"
	case Downloading:
		return "downloading"
	case Reconciling:
		return "reconciling"
	default:
		return ""
	}
}

// Completion statuses passed to [Observer.OnSyncComplete].
const (
	StatusOK       = "OK"
	StatusNoChange = "OK (No Change)"
	StatusError    = "Error"
)

// ProgressUpdate is a single observer notification, used where updates travel over channels.
type ProgressUpdate struct {
	Job     int      // Job index in registry order
	State   JobState // Stage the job entered; Idle once Done is set
	Percent int      // Percent complete at this checkpoint
	Message string   // Progress message or completion status
	Done    bool     // Set on the completion notification
}

// Failed reports whether this is a completion with [StatusError].
func (u ProgressUpdate) Failed() bool {
	return u.Done && u.Message == StatusError
}

type checkpoint struct {
	state   JobState
	percent int
	message string
}

var checkpoints = map[JobState]checkpoint{
	Triggering:   {Triggering, 10, "Triggering sync..."},
	CheckingHash: {CheckingHash, 30, "Checking..."},
	Downloading:  {Downloading, 50, "Downloading..."},
	Reconciling:  {Reconciling, 80, "Updating Playlist..."},
}
