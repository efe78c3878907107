package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "College ERP Marks API",
        "description": "Component marks entry, aggregation and export",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Components", "description": "Component mark entry, grids and bulk import"},
        {"name": "Totals", "description": "Materialized overall totals"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/components/grid": {
            "get": {
                "tags": ["Components"],
                "summary": "Component mark grid",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string", "required": true},
                    {"name": "component", "in": "query", "type": "string", "required": true, "enum": ["A1", "A2", "QZ", "SM"]},
                    {"name": "attemptNo", "in": "query", "type": "integer", "required": true},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Component not configured"}
                }
            }
        },
        "/components/entry": {
            "patch": {
                "tags": ["Components"],
                "summary": "Upsert a single component mark",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertMarkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Marks out of range"},
                    "412": {"description": "Component not configured"}
                }
            }
        },
        "/components/upload": {
            "post": {
                "tags": ["Components"],
                "summary": "Bulk import marks from a spreadsheet",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "subjectId", "in": "formData", "type": "string", "required": true},
                    {"name": "component", "in": "formData", "type": "string", "required": true},
                    {"name": "attemptNo", "in": "formData", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Per-row summary; row failures embedded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/components/template": {
            "get": {
                "tags": ["Components"],
                "summary": "Download a blank marks entry template",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string", "required": true},
                    {"name": "component", "in": "query", "type": "string", "required": true},
                    {"name": "attemptNo", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "xlsx file"}
                }
            }
        },
        "/totals/grid": {
            "get": {
                "tags": ["Totals"],
                "summary": "Paginated overall totals for a subject",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string", "required": true},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/totals/export": {
            "get": {
                "tags": ["Totals"],
                "summary": "Download subject totals",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered file"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "UpsertMarkRequest": {
            "type": "object",
            "properties": {
                "student_usn": {"type": "string"},
                "subject_id": {"type": "string"},
                "component": {"type": "string", "enum": ["A1", "A2", "QZ", "SM"]},
                "attempt_no": {"type": "integer"},
                "marks": {"type": "number"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
