// Package webapp provides the embedded static files for the canvas
// file browser web app.
package webapp

import "embed"

//go:embed index.html css js
var Assets embed.FS
