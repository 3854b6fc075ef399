package searchdb

type DB interface {
	Rebuild(entries []Entry) error
	Suggest(queryString string, limit int) (*Response, error)
	GetDocCount() (uint64, error)
	Close() error
}
