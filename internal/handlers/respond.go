// Package handlers implements the request handlers behind the two inference
// endpoints. Each handler parses an API Gateway proxy event, runs the model
// and maps failures to JSON error bodies: 400 for malformed or invalid
// input, 500 for anything that breaks past validation.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// responseHeaders apply to every response. The demo front-end is served from
// a different origin, hence the permissive CORS header.
func responseHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": "*",
	}
}

func jsonResponse(status int, body any) (events.APIGatewayProxyResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: 500,
			Headers:    responseHeaders(),
			Body:       `{"error":"failed to encode response"}`,
		}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    responseHeaders(),
		Body:       string(data),
	}, nil
}

func errorResponse(status int, format string, args ...any) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
