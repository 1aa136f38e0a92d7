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
    "paths": {
        "/api/analyze": {
            "get": {
                "tags": ["Analyze"],
                "summary": "Report pipeline readiness",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analyze.Status"}}
                }
            },
            "post": {
                "tags": ["Analyze"],
                "summary": "Analyze a food photo",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "description": "Image file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Bearer token when auth is enabled", "name": "Authorization", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/food.Envelope"}},
                    "400": {"description": "Validation failure or no food detected", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "401": {"description": "Not authenticated", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Stage failure", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "food.Details": {
            "type": "object",
            "properties": {
                "Calories": {"type": "string", "example": "95 kcal"},
                "Protein": {"type": "string", "example": "0.5 g"},
                "Carbohydrates": {"type": "string", "example": "25 g"},
                "Fat": {"type": "string", "example": "N/A"}
            }
        },
        "food.ItemEnvelope": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["found", "not_found", "unavailable"]},
                "details": {"$ref": "#/definitions/food.Details"}
            }
        },
        "food.Envelope": {
            "type": "object",
            "properties": {
                "food_item": {"type": "string"},
                "description": {"type": "string"},
                "details": {"$ref": "#/definitions/food.Details"},
                "source": {"type": "string", "enum": ["lookup", "estimate", "unavailable"]},
                "items": {"type": "array", "items": {"$ref": "#/definitions/food.ItemEnvelope"}}
            }
        },
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "detail": {"type": "string"},
                "code": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "analyze.Status": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "vlm": {"type": "string"},
                "stats": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "NutriLens API",
	Description:      "Food photo nutrition analysis: food gate, VLM identification and nutrition lookup.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
