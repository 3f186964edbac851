package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Pass API",
        "description": "Campus outpass lifecycle with warden approval, gate verification, and live notifications",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh, logout"},
        {"name": "Outpasses", "description": "Outpass lifecycle and gate operations"},
        {"name": "Notifications", "description": "Per-recipient notification feed"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and issue a token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate the refresh token and mint a new access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke the caller's refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "204": {"description": "Logged out"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user identity and role",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/outpasses": {
            "post": {
                "tags": ["Outpasses"],
                "summary": "Request a new outpass (students)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOutpassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "403": {"description": "Forbidden"}
                }
            },
            "get": {
                "tags": ["Outpasses"],
                "summary": "List outpasses visible to the caller",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "hostel", "in": "query", "type": "string", "description": "Security and admin only"},
                    {"name": "overdue", "in": "query", "type": "boolean"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter"}
                }
            }
        },
        "/outpasses/stats": {
            "get": {
                "tags": ["Outpasses"],
                "summary": "Aggregate pass counts for dashboards",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/OutpassStats"}},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/outpasses/{id}": {
            "get": {
                "tags": ["Outpasses"],
                "summary": "Get one outpass with related users",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/outpasses/{id}/document": {
            "get": {
                "tags": ["Outpasses"],
                "summary": "Download a printable exit pass",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/outpasses/{id}/approve": {
            "post": {
                "tags": ["Outpasses"],
                "summary": "Approve a pending outpass (wardens)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ApproveOutpassRequest"}}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/outpasses/{id}/reject": {
            "post": {
                "tags": ["Outpasses"],
                "summary": "Reject a pending outpass (wardens)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectOutpassRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Reason required"},
                    "409": {"description": "Already decided"}
                }
            }
        },
        "/outpasses/{id}/cancel": {
            "post": {
                "tags": ["Outpasses"],
                "summary": "Cancel an own pending or approved outpass (students)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner"},
                    "409": {"description": "No longer cancellable"}
                }
            }
        },
        "/outpasses/{id}/check-out": {
            "post": {
                "tags": ["Outpasses"],
                "summary": "Record gate exit (security)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckOutRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checked out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Invalid pass code"},
                    "409": {"description": "Not approved for check-out"}
                }
            }
        },
        "/outpasses/{id}/check-in": {
            "post": {
                "tags": ["Outpasses"],
                "summary": "Record gate return (security)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CheckInRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checked in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not checked out"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's notifications",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/unread-count": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Count the caller's unread notifications",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/read-all": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark all notifications as read",
                "responses": {
                    "204": {"description": "Done"}
                }
            }
        },
        "/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark one notification as read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Done"},
                    "404": {"description": "Not found"}
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
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "CreateOutpassRequest": {
            "type": "object",
            "required": ["type", "reason", "destination", "from_date", "to_date"],
            "properties": {
                "type": {"type": "string", "enum": ["LOCAL", "HOME", "EMERGENCY", "MEDICAL", "OTHER"]},
                "reason": {"type": "string"},
                "destination": {"type": "string"},
                "from_date": {"type": "string", "format": "date-time"},
                "to_date": {"type": "string", "format": "date-time"}
            }
        },
        "ApproveOutpassRequest": {
            "type": "object",
            "properties": {
                "remarks": {"type": "string"}
            }
        },
        "RejectOutpassRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "CheckOutRequest": {
            "type": "object",
            "required": ["code"],
            "properties": {
                "code": {"type": "string"},
                "remarks": {"type": "string"}
            }
        },
        "CheckInRequest": {
            "type": "object",
            "properties": {
                "remarks": {"type": "string"}
            }
        },
        "OutpassStats": {
            "type": "object",
            "properties": {
                "pending": {"type": "integer"},
                "approved": {"type": "integer"},
                "rejected": {"type": "integer"},
                "cancelled": {"type": "integer"},
                "checked_out": {"type": "integer"},
                "checked_in": {"type": "integer"},
                "overdue": {"type": "integer"},
                "total": {"type": "integer"}
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
