// Package oapi embeds the OpenAPI description served by the process.
package oapi

import "embed"

const SpecPath = "openapi-streamhub.yaml"

//go:embed openapi-streamhub.yaml
var FS embed.FS
