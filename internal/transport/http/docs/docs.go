// Package docs registers the OpenAPI document served at /openapi.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Service health",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthStatus"}}}
            }
        },
        "/analyze-medication": {
            "post": {
                "tags": ["Medication"],
                "summary": "Identify a medication from a base64 image",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/AnalyzeRequest"}}],
                "responses": {
                    "200": {"description": "Identified", "schema": {"$ref": "#/definitions/SuccessBody"}},
                    "400": {"description": "Classified failure", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "500": {"description": "Critical failure", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/analyze-medication/upload": {
            "post": {
                "tags": ["Medication"],
                "summary": "Identify a medication from an uploaded image file",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "prompt", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Identified", "schema": {"$ref": "#/definitions/SuccessBody"}},
                    "400": {"description": "Classified failure", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/drug-info": {
            "post": {
                "tags": ["Medication"],
                "summary": "Look up an FDA drug label",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"type": "object", "properties": {"drug_name": {"type": "string"}}}}],
                "responses": {"200": {"description": "Label summary or error", "schema": {"type": "object"}}}
            }
        },
        "/recovery-plan": {
            "post": {
                "tags": ["Medication"],
                "summary": "Fetch the recovery plan for a post-operative day",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"type": "object", "properties": {"day": {"type": "integer"}}}}],
                "responses": {"200": {"description": "Plan", "schema": {"type": "object"}}, "500": {"description": "Bucket not configured"}}
            }
        },
        "/agent": {
            "post": {
                "tags": ["Agent"],
                "summary": "Action-group envelope entry point",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "Response envelope", "schema": {"type": "object"}}}
            }
        },
        "/history": {
            "get": {
                "tags": ["Ops"],
                "summary": "Recent analyses and aggregate stats",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/history/{request_id}": {
            "get": {
                "tags": ["Ops"],
                "summary": "One analysis record",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "request_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}, "404": {"description": "Not found"}}
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Metric registry snapshot and host stats",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        }
    },
    "definitions": {
        "AnalyzeRequest": {
            "type": "object",
            "properties": {
                "image_data": {"type": "string", "description": "base64 image, optionally a data URL"},
                "prompt": {"type": "string"},
                "confidence_check": {"type": "boolean"}
            }
        },
        "HealthStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "service": {"type": "string"},
                "timestamp": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "SuccessBody": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "medication_name": {"type": "string"},
                "confidence": {"type": "number"},
                "confidence_level": {"type": "string"},
                "user_response": {"type": "string"},
                "drug_info_available": {"type": "boolean"},
                "drug_info": {"type": "object"},
                "warnings": {"type": "array", "items": {"type": "string"}},
                "processing_time": {"type": "number"},
                "request_id": {"type": "string"},
                "performance_metrics": {"type": "object"}
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "error_code": {"type": "string"},
                "suggestions": {"type": "array", "items": {"type": "string"}},
                "retry_possible": {"type": "boolean"},
                "retry_after": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Medication Identification API",
	Description:      "Identifies medications from photos and looks up FDA label information.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
