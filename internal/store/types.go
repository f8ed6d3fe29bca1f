package store

// WikiStatus enumerates spec §4.9's phase state machine.
type WikiStatus string

const (
	WikiQueued     WikiStatus = "queued"
	WikiCloning    WikiStatus = "cloning"
	WikiAnalyzing  WikiStatus = "analyzing"
	WikiGenerating WikiStatus = "generating"
	WikiIndexing   WikiStatus = "indexing"
	WikiCompleted  WikiStatus = "completed"
	WikiFailed     WikiStatus = "failed"
)

// JobStatus enumerates spec §4.10's job lifecycle.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Wiki mirrors the wikis table (spec §3).
type Wiki struct {
	ID               string
	Owner            string
	Repo             string
	GithubURL        string
	Branch           string
	CommitSHA        *string
	Status           WikiStatus
	TotalPages       int
	CompletedPages   int
	StoragePath      string
	AnalysisPlan     *string
	RepoLanguages    *string
	RepoDescription  *string
	CreatedAt        string
	StartedAt        *string
	CompletedAt      *string
	ErrorMessage     *string
}

// Job mirrors the jobs table (spec §3).
type Job struct {
	ID           string
	Kind         string
	WikiID       string
	Status       JobStatus
	Attempts     int
	MaxAttempts  int
	Priority     int
	WorkerID     *string
	CreatedAt    string
	StartedAt    *string
	CompletedAt  *string
	ErrorMessage *string
}

// WikiPage mirrors a wiki_pages row (spec §3).
type WikiPage struct {
	WikiID    string
	Slug      string
	Title     string
	Section   string
	SortOrder int
	Summary   *string
	FilePath  string
}

// Conversation mirrors the conversations table.
type Conversation struct {
	ID        string
	WikiID    string
	CreatedAt string
}

// Message mirrors the messages table. Role is "user" or "assistant".
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	ContextPages   *string // JSON-encoded []string, nullable
	CreatedAt      string
}

// Repo mirrors the repos table used by the ingestion/chat surface.
type Repo struct {
	ID         string
	URL        string
	Name       string
	Status     string
	IngestedAt string
}

// FileRow mirrors a files row (spec §3's File Row).
type FileRow struct {
	ID          int64
	RepoID      string
	Path        string
	Name        string
	Extension   *string
	ParentPath  string
	Depth       int
	IsDirectory bool
	Content     *string
}
