package kvdb

const (
	// RequestsBucket maps a load request id to its progress.
	RequestsBucket = "requests"
	// SnapshotsBucket maps a snapshot generation to its SnapshotRecord.
	SnapshotsBucket = "snapshots"
)

var buckets = []string{RequestsBucket, SnapshotsBucket}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
	Close() error
}
