// internal/app/system/limits/limits.go
package limits

// Request body limits for the API.
const (
	// MaxJSONBody caps JSON request bodies (submission content, status changes).
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxUploadSize caps a whole multipart submission, files included.
	MaxUploadSize = 64 << 20 // 64 MB

	// MaxUploadMemory is how much of a multipart body is held in memory
	// before spilling to temp files.
	MaxUploadMemory = 8 << 20 // 8 MB

	// MaxFilesPerSubmission caps attachments on one create.
	MaxFilesPerSubmission = 20
)
