// Package powra provides embedded assets for production builds.
package powra

import "embed"

// TemplateFS holds the portal page templates.
// In dev mode (IsDev=true), templates are loaded from disk for hot reloading.
//
//go:embed all:web/templates
var TemplateFS embed.FS
