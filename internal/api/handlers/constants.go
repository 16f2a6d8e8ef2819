package handlers

const (
	// multipart form fields of the upload endpoint
	formFieldFile = "file"
	formFieldRole = "role"

	// multipart framing on top of the file itself
	multipartOverhead = 1 << 20

	contentTypeMIDI = "audio/midi"
	contentTypeWAV  = "audio/wav"

	generatedFileName = "sparkles.mid"
	previewSuffix     = ".wav"
)
