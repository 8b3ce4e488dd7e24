package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Mail Admin API",
        "description": "Administrative console API for the mailing list subscriber database",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Operator login and identity"},
        {"name": "Meta", "description": "Filter-control catalogs"},
        {"name": "Subscribers", "description": "Filtered subscriber table"},
        {"name": "Bulk", "description": "Chunked bulk mutations and CSV export"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Access token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current operator",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Operator info"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/meta": {
            "get": {
                "tags": ["Meta"],
                "summary": "Filter metadata",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Tags, lists, custom fields and suggested NPA field"}
                }
            }
        },
        "/subscribers": {
            "get": {
                "tags": ["Subscribers"],
                "summary": "List subscribers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "tags", "in": "query", "type": "string"},
                    {"name": "tags_mode", "in": "query", "type": "string", "enum": ["any", "all"]},
                    {"name": "lists", "in": "query", "type": "string"},
                    {"name": "lists_mode", "in": "query", "type": "string", "enum": ["any", "all"]},
                    {"name": "npa", "in": "query", "type": "string"},
                    {"name": "npa_min", "in": "query", "type": "string"},
                    {"name": "npa_max", "in": "query", "type": "string"},
                    {"name": "npa_field_id", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "per_page", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "One page of subscribers plus filtered total"}
                }
            }
        },
        "/bulk": {
            "post": {
                "tags": ["Bulk"],
                "summary": "Execute one bulk chunk",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkRequest"}}
                ],
                "responses": {
                    "200": {"description": "Chunk applied; resume with offset = processed"},
                    "400": {"description": "Unknown action or invalid payload"}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Bulk"],
                "summary": "Download an export",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV stream"},
                    "401": {"description": "Invalid or expired token"},
                    "404": {"description": "Export no longer available"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "BulkRequest": {
            "type": "object",
            "required": ["action", "ids"],
            "properties": {
                "action": {"type": "string", "enum": ["add_tag", "remove_tag", "add_list", "remove_list", "unsubscribe", "export_csv"]},
                "ids": {"type": "array", "items": {"type": "integer"}},
                "tag_ids": {"type": "array", "items": {"type": "integer"}},
                "list_ids": {"type": "array", "items": {"type": "integer"}},
                "offset": {"type": "integer"},
                "limit": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Mail Admin API",
	Description:      "Administrative console API for the mailing list subscriber database",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
