// Package api carries the HTTP contract served under /api/docs.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3.0 document of the read API.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
