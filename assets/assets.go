// Package assets holds the files embedded in the binaries.
package assets

import "embed"

//go:embed all:templates
var FS embed.FS

// EmailTemplatesDir is the directory of the email templates within FS.
const EmailTemplatesDir = "templates/email"
