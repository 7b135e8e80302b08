package provision

import "fmt"

// DownloadError reports a failed release-index or archive request.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError reports a malformed archive or a failure writing one of its entries.
type ExtractionError struct {
	Entry string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("archive extraction failed at '%s': %v", e.Entry, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
