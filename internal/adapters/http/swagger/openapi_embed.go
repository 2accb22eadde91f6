package swagger

import "embed"

// OpenAPI is the job API document served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte

// static holds the docs page template and stylesheet.
//
//go:embed static/index.html.tmpl static/docs.css
var static embed.FS
