package types

// Resource is a model weight file found in the resource directory.
type Resource struct {
	// File name, used as a stable identifier.
	// example: v1-5-pruned-emaonly.safetensors
	ID string `json:"id" example:"v1-5-pruned-emaonly.safetensors"`
	// Absolute path to the file on disk.
	// example: /home/user/models/sd/v1-5-pruned-emaonly.safetensors
	Path string `json:"path" example:"/home/user/models/sd/v1-5-pruned-emaonly.safetensors"`
	// Weight format derived from the extension.
	// example: safetensors
	Format string `json:"format" example:"safetensors"`
	// Size of the file in bytes.
	// example: 4265380512
	SizeBytes int64 `json:"size_bytes" example:"4265380512"`
}

// ResourcesResponse wraps GET /resources.
type ResourcesResponse struct {
	ResourceDir string     `json:"resource_dir"`
	Resources   []Resource `json:"resources"`
}
