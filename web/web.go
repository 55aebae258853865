// Package web embeds the review page templates and static assets. The
// server reads them from disk instead when a web directory is configured.
package web

import "embed"

//go:embed templates static
var FS embed.FS
