package data

// Unlimited requests every result from a listing.
const Unlimited = 0

// Item is a file or directory discovered below a declared directory.
// FullPath includes the container segment.
type Item struct {
	FullPath string `json:"full_path"`
	IsFolder bool   `json:"is_folder"`
}
