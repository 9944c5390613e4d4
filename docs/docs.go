// Package docs holds the OpenAPI description of the pipeline service.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/pipelines": {
            "get": {
                "description": "List all pipeline runs, newest first",
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "List pipeline runs",
                "responses": {
                    "200": {"description": "List of runs", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.RunRecord"}}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Validate a job spec and run it in the background",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Start a pipeline run",
                "parameters": [
                    {"description": "Job spec", "name": "pipeline", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.PipelineJobSpec"}}
                ],
                "responses": {
                    "202": {"description": "Run accepted", "schema": {"$ref": "#/definitions/handler.CreateResponse"}},
                    "400": {"description": "Invalid job spec", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Get a pipeline run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run details", "schema": {"$ref": "#/definitions/store.RunRecord"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Get the aggregate results of a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Results in request order"},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{id}/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Get the errors recorded for a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run errors"},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{id}/report": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["pipelines"],
                "summary": "Get the console report of a finished run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Report text"},
                    "404": {"description": "Run not found or not finished", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.CreateResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "runId": {"type": "string"},
                "status": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "string"}
            }
        },
        "model.PipelineJobSpec": {
            "type": "object",
            "required": ["name", "source"],
            "properties": {
                "name": {"type": "string"},
                "source": {"type": "object"},
                "rules": {"type": "object"},
                "derivations": {"type": "array", "items": {"type": "object"}},
                "requests": {"type": "array", "items": {"type": "object"}},
                "export": {"type": "object"},
                "workers": {"type": "object"},
                "jobTimeout": {"type": "string"}
            }
        },
        "store.RunRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "status": {"type": "string"},
                "fingerprint": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Insights Pipeline API",
	Description:      "Run ingest, clean, enrich and summarize jobs over tabular data.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
