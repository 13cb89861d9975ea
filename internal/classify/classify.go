// Package classify maps filenames to the coarse content categories the
// canvas client knows how to render.
package classify

import (
	"mime"
	"path/filepath"
)

// Category is a coarse content classification.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryAudio    Category = "audio"
	CategoryDir      Category = "dir"
)

// mimeCategories is the fixed allow-list of renderable MIME types.
// Everything else is dropped from listings.
var mimeCategories = map[string]Category{
	"image/png":       CategoryImage,
	"image/jpeg":      CategoryImage,
	"video/mp4":       CategoryVideo,
	"application/pdf": CategoryDocument,
	"audio/mpeg":      CategoryAudio,
}

// extensionTypes pins the allow-list extensions to their MIME types.
// Go's built-in table lacks .mp4 and .mp3, and the host's mime files
// (/etc/mime.types) may be absent, so without this registration videos
// and audio would vanish from listings on minimal hosts.
var extensionTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".mp4":  "video/mp4",
	".pdf":  "application/pdf",
	".mp3":  "audio/mpeg",
}

func init() {
	for ext, typ := range extensionTypes {
		mime.AddExtensionType(ext, typ)
	}
}

// Classify returns the category for a filename based on its extension
// alone. It never inspects file contents. The second return value is
// false when the MIME type is unknown or not in the allow-list.
func Classify(filename string) (Category, bool) {
	t := mime.TypeByExtension(filepath.Ext(filename))
	if t == "" {
		return "", false
	}
	// TypeByExtension may include parameters (e.g. "; charset=utf-8").
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		t = mt
	}
	cat, ok := mimeCategories[t]
	return cat, ok
}
