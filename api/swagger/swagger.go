package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable Engine",
        "description": "Weekly classroom timetables with conflict-free teacher availability.",
        "version": "0.2.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetable", "description": "Classroom grids, assignments and regeneration"},
        {"name": "Teachers", "description": "Teacher availability and workload"},
        {"name": "Observability", "description": "Health and metrics"}
    ],
    "paths": {
        "/classrooms": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List classrooms",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/grid": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get classroom grid",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown classroom", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{id}/stats": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Classroom fill statistics",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/assignments/validate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Check an assignment without applying it",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignmentRequest"}}
                ],
                "responses": {"200": {"description": "Decision", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/assignments": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Assign a teacher and subject to a slot",
                "description": "Empty teacherId and subject clear the slot.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Applied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher double-booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Teacher not qualified", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Remove one teacher from a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "query", "required": true, "type": "integer"},
                    {"name": "period", "in": "query", "required": true, "type": "integer"},
                    {"name": "teacherId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Removed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Teacher not in slot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{id}/slots": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Replace every assignment of a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceSlotRequest"}}
                ],
                "responses": {"200": {"description": "Replaced", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Empty a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "query", "required": true, "type": "integer"},
                    {"name": "period", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {"200": {"description": "Cleared", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/regenerate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Regenerate a classroom grid",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Committed snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Generated grid double-books teachers; meta.conflicts lists them", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Generator failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Generator timed out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{id}/available-teachers": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Teachers who could take a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "query", "required": true, "type": "integer"},
                    {"name": "period", "in": "query", "required": true, "type": "integer"},
                    {"name": "subject", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/classrooms/{id}/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download a classroom timetable as CSV",
                "produces": ["text/csv"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List teachers",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers/{id}/schedule": {
            "get": {
                "tags": ["Teachers"],
                "summary": "A teacher's weekly bookings",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers/{id}/workload": {
            "get": {
                "tags": ["Teachers"],
                "summary": "A teacher's booked load",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers/{id}/availability": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Whether a teacher is free at a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "query", "required": true, "type": "integer"},
                    {"name": "period", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/teachers/{id}/export": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Download a teacher timetable as CSV",
                "produces": ["text/csv"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download every allocation as CSV",
                "produces": ["text/csv"],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/timetable/verify": {
            "get": {
                "tags": ["Observability"],
                "summary": "Audit the availability index against classroom grids",
                "responses": {
                    "200": {"description": "Consistent", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Drift detected; meta.report carries it", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AssignmentRequest": {
            "type": "object",
            "required": ["day", "period"],
            "properties": {
                "day": {"type": "integer", "minimum": 0, "maximum": 4},
                "period": {"type": "integer", "minimum": 0, "maximum": 5},
                "teacherId": {"type": "string"},
                "subject": {"type": "string"}
            }
        },
        "AssignmentPair": {
            "type": "object",
            "required": ["teacherId", "subject"],
            "properties": {
                "teacherId": {"type": "string"},
                "subject": {"type": "string"}
            }
        },
        "ReplaceSlotRequest": {
            "type": "object",
            "required": ["day", "period"],
            "properties": {
                "day": {"type": "integer", "minimum": 0, "maximum": 4},
                "period": {"type": "integer", "minimum": 0, "maximum": 5},
                "assignments": {"type": "array", "items": {"$ref": "#/definitions/AssignmentPair"}}
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
