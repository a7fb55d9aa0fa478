package postgres

// ObjectRecord is the row shape returned by every read path. Not every
// column is populated by every query — callers should only rely on the
// fields their statement actually selects.
type ObjectRecord struct {
	OID       string
	TID       int64
	StateSize int64
	Resource  bool
	Of        string
	ParentID  string
	ID        string
	Type      string
	State     []byte
}

// BlobChunkRecord is one row of a chunked blob.
type BlobChunkRecord struct {
	BID        string
	OID        string
	ChunkIndex int
	Data       []byte
}
