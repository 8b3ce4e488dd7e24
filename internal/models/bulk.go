package models

// BulkAction names a bulk mutation applied to a set of subscriber ids.
type BulkAction string

const (
	BulkAddTag      BulkAction = "add_tag"
	BulkRemoveTag   BulkAction = "remove_tag"
	BulkAddList     BulkAction = "add_list"
	BulkRemoveList  BulkAction = "remove_list"
	BulkUnsubscribe BulkAction = "unsubscribe"
	BulkExportCSV   BulkAction = "export_csv"
)

const (
	// MaxBulkIDs caps the total id set of a single bulk job.
	MaxBulkIDs = 5000
	// MaxBulkChunk caps how many ids one request may process.
	MaxBulkChunk = 1000
	// DefaultBulkChunk is used when the caller does not specify a limit.
	DefaultBulkChunk = 500
)

// ValidBulkAction reports whether the action name is recognized.
func ValidBulkAction(a string) bool {
	switch BulkAction(a) {
	case BulkAddTag, BulkRemoveTag, BulkAddList, BulkRemoveList, BulkUnsubscribe, BulkExportCSV:
		return true
	}
	return false
}

// BulkRequest is the wire payload for POST /bulk. The job is stateless
// between calls: offset is the resume cursor into IDs.
type BulkRequest struct {
	Action  string  `json:"action" validate:"required"`
	IDs     []int64 `json:"ids" validate:"required,min=1"`
	TagIDs  []int64 `json:"tag_ids"`
	ListIDs []int64 `json:"list_ids"`
	Offset  int     `json:"offset" validate:"min=0"`
	Limit   int     `json:"limit"`
}

// BulkResult is the uniform response envelope for every bulk action.
// Remaining <= 0 is the caller's termination signal.
type BulkResult struct {
	OK          bool   `json:"ok"`
	Processed   int    `json:"processed"`
	Remaining   int    `json:"remaining"`
	DownloadURL string `json:"download_url,omitempty"`
	Message     string `json:"message,omitempty"`
}
