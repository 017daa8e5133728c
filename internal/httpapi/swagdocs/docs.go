// Package swagdocs holds the OpenAPI document served by the swagger UI when
// the binary is built with -tags=swagger. Regenerate with
// `swag init -g cmd/img2imgd/docs.go -o internal/httpapi/swagdocs`.
package swagdocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Lifecycle state and status line",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/params": {
            "get": {
                "produces": ["application/json"],
                "tags": ["params"],
                "summary": "Current generation parameters",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Params"}}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["params"],
                "summary": "Update generation parameters",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.ParamsUpdate"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Params"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/generate": {
            "post": {
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Trigger one generation",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "409": {"description": "Ignored: busy or not ready", "schema": {"$ref": "#/definitions/types.GenerateResponse"}}
                }
            }
        },
        "/output.png": {
            "get": {
                "produces": ["image/png"],
                "tags": ["pipeline"],
                "summary": "Last generated image",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "No output yet", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Generation in progress", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Not ready", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/resources": {
            "get": {
                "produces": ["application/json"],
                "tags": ["resources"],
                "summary": "Model files in the resource directory",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ResourcesResponse"}}}
            }
        },
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Recent runs, newest first",
                "parameters": [{"type": "integer", "default": 20, "maximum": 200, "in": "query", "name": "limit"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RunsResponse"}}}
            }
        },
        "/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["pipeline"],
                "summary": "Server-Sent Events stream of lifecycle events",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["pipeline"],
                "summary": "WebSocket stream of lifecycle events, one JSON object per text frame",
                "responses": {"101": {"description": "Switching Protocols"}, "400": {"description": "not a WebSocket handshake"}, "403": {"description": "origin not allowed"}}
            }
        },
        "/healthz": {"get": {"tags": ["ops"], "summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
        "/readyz": {"get": {"tags": ["ops"], "summary": "Readiness", "responses": {"200": {"description": "ready"}, "503": {"description": "loading"}}}}
    },
    "definitions": {
        "types.Params": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string", "example": "a cat"},
                "strength": {"type": "number", "example": 0.6},
                "steps": {"type": "integer", "example": 20},
                "seed": {"type": "integer", "example": 42},
                "guidance_scale": {"type": "number", "example": 7.5}
            }
        },
        "types.ParamsUpdate": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string"},
                "strength": {"type": "number"},
                "steps": {"type": "integer"},
                "seed": {"type": "integer"},
                "guidance_scale": {"type": "number"}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "accepted": {"type": "boolean"},
                "run_id": {"type": "string"},
                "state": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "status": {"type": "string", "example": "Generation time: 3.21 sec"},
                "trigger_enabled": {"type": "boolean"},
                "mode": {"type": "string"},
                "init_error": {"type": "string"},
                "last_run_id": {"type": "string"},
                "last_duration_seconds": {"type": "number"},
                "last_params": {"$ref": "#/definitions/types.Params"},
                "runs_total": {"type": "integer"},
                "failures_total": {"type": "integer"},
                "dropped_total": {"type": "integer"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        },
        "types.Resource": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "path": {"type": "string"},
                "format": {"type": "string"},
                "size_bytes": {"type": "integer"}
            }
        },
        "types.ResourcesResponse": {
            "type": "object",
            "properties": {
                "resource_dir": {"type": "string"},
                "resources": {"type": "array", "items": {"$ref": "#/definitions/types.Resource"}}
            }
        },
        "types.RunRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "started_at_unix": {"type": "integer"},
                "duration_seconds": {"type": "number"},
                "outcome": {"type": "string"},
                "error": {"type": "string"},
                "params": {"$ref": "#/definitions/types.Params"}
            }
        },
        "types.RunsResponse": {
            "type": "object",
            "properties": {"runs": {"type": "array", "items": {"$ref": "#/definitions/types.RunRecord"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "img2imgd API",
	Description:      "HTTP API for a single-flight image-to-image diffusion pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
