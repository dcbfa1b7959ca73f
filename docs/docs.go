// Package docs registers the OpenAPI description served at /swagger when
// SWAGGER_ENABLED is set. Regenerate with `swag init -g cmd/server/main.go`
// after changing handler annotations.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/signup": {"post": {"operationId": "signup", "tags": ["Auth"], "summary": "Register a customer",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/services.SignupInput"}}],
            "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.AuthResponse"}},
                "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/auth/login": {"post": {"operationId": "login", "tags": ["Auth"], "summary": "Log in",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AuthResponse"}},
                "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/me": {"get": {"operationId": "me", "tags": ["Auth"], "summary": "Current customer", "security": [{"BearerAuth": []}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Customer"}}}}},
        "/me/profile": {"put": {"operationId": "updateProfile", "tags": ["Auth"], "summary": "Update cooking profile", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/services.ProfileInput"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Customer"}}}}},
        "/chat": {"post": {"operationId": "postChat", "tags": ["Chat"], "summary": "Send a chat message", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}},
                {"in": "header", "name": "Idempotency-Key", "type": "string"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatResponse"}},
                "402": {"description": "Insufficient credits", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                "429": {"description": "Provider rate limited", "schema": {"$ref": "#/definitions/handlers.ChatFailureResponse"}},
                "500": {"description": "Provider failure", "schema": {"$ref": "#/definitions/handlers.ChatFailureResponse"}}}}},
        "/sessions": {
            "get": {"operationId": "listSessions", "tags": ["Sessions"], "summary": "List chat sessions", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "page", "type": "integer"}, {"in": "query", "name": "page_size", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListSessionsResponse"}}, "304": {"description": "Not Modified"}}},
            "post": {"operationId": "createSession", "tags": ["Sessions"], "summary": "Create a chat session", "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.ChatSession"}}}}},
        "/sessions/search": {"get": {"operationId": "searchSessions", "tags": ["Sessions"], "summary": "Search chat sessions", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "query", "name": "q", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SearchSessionsResponse"}}}}},
        "/sessions/{id}": {
            "get": {"operationId": "getSession", "tags": ["Sessions"], "summary": "Get a chat session", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatSession"}}}},
            "delete": {"operationId": "deleteSession", "tags": ["Sessions"], "summary": "Delete a chat session", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"204": {"description": "No Content"}}}},
        "/sessions/{id}/title": {"put": {"operationId": "updateSessionTitle", "tags": ["Sessions"], "summary": "Rename a chat session", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatSession"}}}}},
        "/sessions/{id}/messages": {
            "get": {"operationId": "listSessionMessages", "tags": ["Messages"], "summary": "List session messages", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}}}},
            "post": {"operationId": "postSessionMessage", "tags": ["Messages"], "summary": "Send a message in a session", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatResponse"}}}}},
        "/recipes": {
            "get": {"operationId": "listRecipes", "tags": ["Recipes"], "summary": "List saved recipes", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListRecipesResponse"}}}},
            "post": {"operationId": "generateRecipe", "tags": ["Recipes"], "summary": "Generate a recipe", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/services.RecipeInput"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.RecipeResponse"}}}}},
        "/recipes/{id}": {"get": {"operationId": "getRecipe", "tags": ["Recipes"], "summary": "Get a saved recipe", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Recipe"}}}}},
        "/messages/{id}/feedback": {"post": {"operationId": "leaveFeedback", "tags": ["Feedback"], "summary": "Leave feedback on a message", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true},
                {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LeaveFeedbackRequest"}}],
            "responses": {"204": {"description": "No Content"}}}},
        "/payments": {"post": {"operationId": "createPayment", "tags": ["Payments"], "summary": "Buy a credit pack", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/services.PurchaseInput"}}],
            "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreatePaymentResponse"}},
                "501": {"description": "Gateway not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/payments/config": {"get": {"operationId": "paymentConfig", "tags": ["Payments"], "summary": "Payment configuration", "security": [{"BearerAuth": []}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PaymentConfigResponse"}}}}},
        "/payments/history": {"get": {"operationId": "paymentHistory", "tags": ["Payments"], "summary": "Purchase history", "security": [{"BearerAuth": []}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PaymentHistoryResponse"}}}}},
        "/payments/{id}": {"get": {"operationId": "paymentStatus", "tags": ["Payments"], "summary": "Transaction status", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.PaymentTransaction"}}}}},
        "/payments/callback/{gateway}": {"get": {"operationId": "paymentCallback", "tags": ["Payments"], "summary": "Gateway return URL",
            "parameters": [{"in": "path", "name": "gateway", "type": "string", "required": true, "enum": ["stripe", "phonepe"]},
                {"in": "query", "name": "txn", "type": "string"},
                {"in": "query", "name": "transactionId", "type": "string"}],
            "responses": {"302": {"description": "Redirect"}}}},
        "/webhooks/{gateway}": {"post": {"operationId": "paymentWebhook", "tags": ["Payments"], "summary": "Gateway notification",
            "parameters": [{"in": "path", "name": "gateway", "type": "string", "required": true, "enum": ["stripe", "phonepe"]}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WebhookResponse"}},
                "400": {"description": "Invalid signature or payload", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}}
    },
    "definitions": {
        "handlers.ErrorResponse": {"type": "object", "properties": {
            "request_id": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"},
            "details": {"type": "array", "items": {"$ref": "#/definitions/validation.FieldError"}}}},
        "validation.FieldError": {"type": "object", "properties": {
            "field": {"type": "string"}, "rule": {"type": "string"}, "message": {"type": "string"}}},
        "handlers.LoginRequest": {"type": "object", "required": ["email", "password"], "properties": {
            "email": {"type": "string"}, "password": {"type": "string"}}},
        "handlers.AuthResponse": {"type": "object", "properties": {
            "token": {"type": "string"}, "customer": {"$ref": "#/definitions/domain.Customer"}}},
        "services.SignupInput": {"type": "object", "required": ["email", "password", "first_name"], "properties": {
            "email": {"type": "string"}, "password": {"type": "string"}, "first_name": {"type": "string"}, "last_name": {"type": "string"}}},
        "services.ProfileInput": {"type": "object", "properties": {
            "skill_level": {"type": "string"}, "dietary_preferences": {"type": "array", "items": {"type": "string"}},
            "allergies": {"type": "array", "items": {"type": "string"}}, "favorite_ingredients": {"type": "array", "items": {"type": "string"}},
            "disliked_ingredients": {"type": "array", "items": {"type": "string"}}, "phone_number": {"type": "string"}, "age": {"type": "integer"}}},
        "domain.Customer": {"type": "object", "properties": {
            "id": {"type": "string"}, "email": {"type": "string"}, "first_name": {"type": "string"}, "last_name": {"type": "string"},
            "credits": {"type": "integer"}, "status": {"type": "string"}, "skill_level": {"type": "string"}}},
        "handlers.ChatRequest": {"type": "object", "required": ["message"], "properties": {
            "session_id": {"type": "string"}, "message": {"type": "string"},
            "conversation_history": {"type": "array", "items": {"type": "object", "properties": {"sender": {"type": "string"}, "message": {"type": "string"}}}}}},
        "handlers.ChatResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"}, "message": {"type": "string"}, "credits_remaining": {"type": "integer"},
            "session_id": {"type": "string"}, "message_id": {"type": "string"}, "model": {"type": "string"}, "tokens_used": {"type": "integer"}}},
        "handlers.ChatFailureResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"}, "code": {"type": "string"}, "message": {"type": "string"},
            "fallback_response": {"type": "string"}, "credits_remaining": {"type": "integer"}}},
        "domain.ChatSession": {"type": "object", "properties": {
            "session_id": {"type": "string"}, "title": {"type": "string"}, "title_locked": {"type": "boolean"},
            "message_count": {"type": "integer"}, "last_message_at": {"type": "string"}}},
        "handlers.Pagination": {"type": "object", "properties": {
            "page": {"type": "integer"}, "page_size": {"type": "integer"}, "total": {"type": "integer"},
            "total_pages": {"type": "integer"}, "has_next": {"type": "boolean"}}},
        "handlers.ListSessionsResponse": {"type": "object", "properties": {
            "sessions": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatSession"}}, "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.SearchSessionsResponse": {"type": "object", "properties": {
            "sessions": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatSession"}}}},
        "domain.Message": {"type": "object", "properties": {
            "id": {"type": "string"}, "sender": {"type": "string"}, "text": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.ListMessagesResponse": {"type": "object", "properties": {
            "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
            "total": {"type": "integer"}, "limit": {"type": "integer"}, "skip": {"type": "integer"}}},
        "services.RecipeInput": {"type": "object", "required": ["ingredients"], "properties": {
            "ingredients": {"type": "array", "items": {"type": "string"}}, "preferences": {"type": "string"}, "cuisine": {"type": "string"},
            "cooking_time": {"type": "string"}, "servings": {"type": "integer"}, "session_id": {"type": "string"}}},
        "domain.Recipe": {"type": "object", "properties": {
            "id": {"type": "string"}, "title": {"type": "string"}, "body": {"type": "string"},
            "ingredients": {"type": "array", "items": {"type": "string"}}, "model": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.RecipeResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"}, "recipe": {"$ref": "#/definitions/domain.Recipe"}, "credits_remaining": {"type": "integer"}, "message_id": {"type": "string"}}},
        "handlers.ListRecipesResponse": {"type": "object", "properties": {
            "recipes": {"type": "array", "items": {"$ref": "#/definitions/domain.Recipe"}}, "page": {"type": "integer"}}},
        "handlers.LeaveFeedbackRequest": {"type": "object", "required": ["value"], "properties": {
            "value": {"type": "integer", "enum": [-1, 1]}}},
        "services.PurchaseInput": {"type": "object", "required": ["gateway", "credit_pack"], "properties": {
            "gateway": {"type": "string", "enum": ["stripe", "phonepe"]}, "credit_pack": {"type": "integer"}, "phone": {"type": "string"}}},
        "handlers.CreatePaymentResponse": {"type": "object", "properties": {
            "transaction_id": {"type": "string"}, "redirect_url": {"type": "string"}}},
        "handlers.PaymentConfigResponse": {"type": "object", "properties": {
            "gateways": {"type": "array", "items": {"type": "object", "properties": {
                "name": {"type": "string"}, "currency": {"type": "string"},
                "packs": {"type": "array", "items": {"type": "object", "properties": {"credits": {"type": "integer"}, "amount": {"type": "string"}}}}}}}}},
        "domain.PaymentTransaction": {"type": "object", "properties": {
            "transaction_id": {"type": "string"}, "credits": {"type": "integer"}, "amount": {"type": "string"},
            "currency": {"type": "string"}, "gateway": {"type": "string"}, "status": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.PaymentHistoryResponse": {"type": "object", "properties": {
            "transactions": {"type": "array", "items": {"$ref": "#/definitions/domain.PaymentTransaction"}}}},
        "handlers.WebhookResponse": {"type": "object", "properties": {
            "received": {"type": "boolean"}, "outcome": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Recipe Chat API",
	Description:      "Credit-metered AI cooking assistant: chat, recipes, sessions and credit purchases.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
