// Package docs registers the OpenAPI document served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/opentrusty/qaguard/issues"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health Check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current Actor",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CurrentActorResponse"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/organizations/{orgID}/tokens": {
            "get": {
                "security": [{"CookieAuth": []}],
                "tags": ["Tokens"],
                "summary": "List My API Tokens",
                "parameters": [{"type": "string", "name": "orgID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            },
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tokens"],
                "summary": "Create API Token",
                "parameters": [
                    {"type": "string", "name": "orgID", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateTokenRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/organizations/{orgID}/tokens/pending": {
            "get": {
                "security": [{"CookieAuth": []}],
                "tags": ["Tokens"],
                "summary": "List Pending API Tokens",
                "parameters": [{"type": "string", "name": "orgID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/organizations/{orgID}/tokens/{tokenID}/approve": {
            "post": {
                "security": [{"CookieAuth": []}],
                "tags": ["Tokens"],
                "summary": "Approve API Token",
                "parameters": [
                    {"type": "string", "name": "orgID", "in": "path", "required": true},
                    {"type": "string", "name": "tokenID", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/organizations/{orgID}/tokens/{tokenID}/reject": {
            "post": {
                "security": [{"CookieAuth": []}],
                "tags": ["Tokens"],
                "summary": "Reject API Token",
                "parameters": [
                    {"type": "string", "name": "orgID", "in": "path", "required": true},
                    {"type": "string", "name": "tokenID", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/tokens/{tokenID}": {
            "delete": {
                "security": [{"CookieAuth": []}],
                "tags": ["Tokens"],
                "summary": "Revoke API Token",
                "parameters": [{"type": "string", "name": "tokenID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        },
        "/organizations/{orgID}/members": {
            "get": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["Members"],
                "summary": "List Members",
                "parameters": [{"type": "string", "name": "orgID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            },
            "post": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["Members"],
                "summary": "Add Member",
                "parameters": [
                    {"type": "string", "name": "orgID", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.AddMemberRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}
            }
        },
        "/organizations/{orgID}/members/{userID}": {
            "patch": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["Members"],
                "summary": "Change Member Role",
                "parameters": [
                    {"type": "string", "name": "orgID", "in": "path", "required": true},
                    {"type": "string", "name": "userID", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.MemberRoleRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["Members"],
                "summary": "Remove Member",
                "parameters": [
                    {"type": "string", "name": "orgID", "in": "path", "required": true},
                    {"type": "string", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/organizations/{orgID}/projects": {
            "get": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["Projects"],
                "summary": "List Projects",
                "parameters": [{"type": "string", "name": "orgID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/projects/{projectID}/test-cases": {
            "get": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["TestCases"],
                "summary": "List Test Cases",
                "parameters": [{"type": "string", "name": "projectID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            },
            "post": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["TestCases"],
                "summary": "Create Test Case",
                "parameters": [
                    {"type": "string", "name": "projectID", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateTestCaseRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}}
            }
        },
        "/projects/{projectID}/test-cases/{testCaseID}": {
            "get": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["TestCases"],
                "summary": "Get Test Case",
                "parameters": [
                    {"type": "string", "name": "projectID", "in": "path", "required": true},
                    {"type": "string", "name": "testCaseID", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["TestCases"],
                "summary": "Delete Test Case",
                "parameters": [
                    {"type": "string", "name": "projectID", "in": "path", "required": true},
                    {"type": "string", "name": "testCaseID", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/projects/{projectID}/test-cases/{testCaseID}/comments": {
            "get": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["TestCases"],
                "summary": "List Comments",
                "parameters": [
                    {"type": "string", "name": "projectID", "in": "path", "required": true},
                    {"type": "string", "name": "testCaseID", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            },
            "post": {
                "security": [{"BearerAuth": []}, {"CookieAuth": []}],
                "tags": ["TestCases"],
                "summary": "Add Comment",
                "parameters": [
                    {"type": "string", "name": "projectID", "in": "path", "required": true},
                    {"type": "string", "name": "testCaseID", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CommentRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "definitions": {
        "http.AddMemberRequest": {
            "type": "object",
            "properties": {"user_id": {"type": "string"}, "role": {"type": "string", "example": "viewer"}}
        },
        "http.CommentRequest": {
            "type": "object",
            "properties": {"body": {"type": "string", "example": "Fails on Safari"}}
        },
        "http.CreateTestCaseRequest": {
            "type": "object",
            "properties": {"title": {"type": "string"}, "description": {"type": "string"}}
        },
        "http.CreateTokenRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "ci-pipeline"},
                "scope_type": {"type": "string", "example": "personal"},
                "permissions": {"type": "array", "items": {"type": "string"}},
                "project_ids": {"type": "array", "items": {"type": "string"}},
                "expires_at": {"type": "string"}
            }
        },
        "http.CurrentActorResponse": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "user_id": {"type": "string"},
                "organization_id": {"type": "string"},
                "token_id": {"type": "string"},
                "scope_type": {"type": "string"},
                "permissions": {"type": "array", "items": {"type": "string"}},
                "project_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.MemberRoleRequest": {
            "type": "object",
            "properties": {"role": {"type": "string", "example": "member"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "CookieAuth": {"type": "apiKey", "name": "qaguard_session", "in": "cookie"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "QAGuard API",
	Description:      "Access control for the test management platform: API tokens, memberships and guarded test artifacts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
