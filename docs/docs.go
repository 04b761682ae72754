// Package docs holds the OpenAPI description served under /docs.
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
    "paths": {
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Server is running"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness",
                "description": "Checks the data directory and the session store",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/submit": {
            "post": {
                "tags": ["entries"],
                "summary": "Record study time",
                "description": "Append an entry to the selected database. Minute values are coerced to whole non-negative numbers.",
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/SubmitEntryRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/SubmitEntryResponse"}},
                    "400": {"description": "Date is required", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Failed to save data", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/data": {
            "get": {
                "tags": ["entries"],
                "summary": "Raw entries of the selected database",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Collection"}}
                }
            }
        },
        "/api/stats": {
            "get": {
                "tags": ["entries"],
                "summary": "Totals and percentages",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StatsResponse"}}
                }
            }
        },
        "/api/series": {
            "get": {
                "tags": ["entries"],
                "summary": "Running totals and daily averages",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SeriesResponse"}}
                }
            }
        },
        "/api/databases": {
            "get": {
                "tags": ["databases"],
                "summary": "List databases",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CollectionsResponse"}}
                }
            }
        },
        "/api/switch-db": {
            "post": {
                "tags": ["databases"],
                "summary": "Select a database",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/DatabaseRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Switched", "schema": {"$ref": "#/definitions/MessageResponse"}},
                    "400": {"description": "Invalid name", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/create-db": {
            "post": {
                "tags": ["databases"],
                "summary": "Create and select a database",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {"name": {"type": "string", "example": "midterm2"}}
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Created", "schema": {"$ref": "#/definitions/CreateCollectionResponse"}},
                    "400": {"description": "Invalid name or already exists", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/delete-db": {
            "post": {
                "tags": ["databases"],
                "summary": "Delete a database",
                "description": "Sessions that had it selected move to a remaining database",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/DatabaseRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/MessageResponse"}},
                    "400": {"description": "Invalid name or last database", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "Tally": {
            "type": "object",
            "properties": {
                "textbook": {"type": "integer"},
                "podcast": {"type": "integer"},
                "notes": {"type": "integer"},
                "flashcards": {"type": "integer"},
                "practice": {"type": "integer"},
                "inperson": {"type": "integer"},
                "lecture": {"type": "integer"}
            }
        },
        "SubmitEntryRequest": {
            "allOf": [
                {"$ref": "#/definitions/Tally"},
                {
                    "type": "object",
                    "required": ["date"],
                    "properties": {"date": {"type": "string", "example": "2024-01-01"}}
                }
            ]
        },
        "Entry": {
            "allOf": [
                {"$ref": "#/definitions/Tally"},
                {
                    "type": "object",
                    "properties": {
                        "date": {"type": "string", "example": "2024-01-01"},
                        "timestamp": {"type": "string", "format": "date-time"}
                    }
                }
            ]
        },
        "Collection": {
            "type": "object",
            "properties": {
                "entries": {"type": "array", "items": {"$ref": "#/definitions/Entry"}}
            }
        },
        "Stats": {
            "type": "object",
            "properties": {
                "totals": {"$ref": "#/definitions/Tally"},
                "grandTotal": {"type": "integer"},
                "percentages": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "StatsResponse": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "stats": {"$ref": "#/definitions/Stats"}
            }
        },
        "SeriesPoint": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "categories": {"type": "object", "additionalProperties": {"type": "number"}},
                "total": {"type": "number"}
            }
        },
        "SeriesResponse": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "running": {"type": "array", "items": {"$ref": "#/definitions/SeriesPoint"}},
                "averages": {"type": "array", "items": {"$ref": "#/definitions/SeriesPoint"}}
            }
        },
        "CollectionsResponse": {
            "type": "object",
            "properties": {
                "current": {"type": "string"},
                "databases": {"type": "array", "items": {"type": "string"}}
            }
        },
        "DatabaseRequest": {
            "type": "object",
            "required": ["database"],
            "properties": {"database": {"type": "string", "example": "midterm2.json"}}
        },
        "SubmitEntryResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "entry": {"$ref": "#/definitions/Entry"}
            }
        },
        "CreateCollectionResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "database": {"type": "string"}
            }
        },
        "MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "studylog API",
	Description:      "Study time logging over flat-file JSON databases",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
