package archivequeue

// ArchiveSweepJob snapshots and removes sessions that ended longer ago
// than the retention window.
type ArchiveSweepJob struct{}

// Kind returns the job type identifier for River.
func (ArchiveSweepJob) Kind() string { return "archive_sweep" }
