package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"rule-chatbot/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	sessionHeader     = "X-Session-Id"
	allowedMethods    = "POST, OPTIONS"
	maxBodyBytes      = 1 << 20

	// errorReply is shown to users whenever a request cannot be answered.
	errorReply = "Sorry, I encountered an error processing your message."
)

// Replier answers one utterance.
type Replier interface {
	Reply(ctx context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error)
}

type chatRequest struct {
	Message json.RawMessage `json:"message"`
}

type chatResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// result is a transport-neutral response rendered by Handle and ServeHTTP.
type result struct {
	status  int
	headers map[string]string
	body    []byte
}

// Handler serves the chat endpoint over API Gateway proxy events and net/http.
type Handler struct {
	uc     Replier
	logger *slog.Logger
}

func NewHandler(uc Replier, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: replier must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// Handle answers an API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	header := func(key string) string {
		return headerValue(req.Headers, key)
	}
	res := h.dispatch(ctx, req.HTTPMethod, header, func() ([]byte, error) {
		if req.IsBase64Encoded {
			b, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return nil, fmt.Errorf("decode base64 body: %w", err)
			}
			return b, nil
		}
		return []byte(req.Body), nil
	})
	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers:    res.headers,
		Body:       string(res.body),
	}, nil
}

// ServeHTTP answers requests on any path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.dispatch(r.Context(), r.Method, r.Header.Get, func() ([]byte, error) {
		if r.ContentLength < 0 {
			return nil, errors.New("missing Content-Length header")
		}
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(b) > maxBodyBytes {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
		}
		return b, nil
	})
	for k, v := range res.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(res.status)
	if len(res.body) > 0 {
		if _, err := w.Write(res.body); err != nil {
			h.logger.WarnContext(r.Context(), "write response failed", "err", err)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, method string, header func(string) string, readBody func() ([]byte, error)) result {
	correlationID := strings.TrimSpace(header(correlationHeader))
	if correlationID == "" {
		correlationID = newUUID()
	}
	headers := map[string]string{correlationHeader: correlationID}

	switch method {
	case http.MethodOptions:
		setCORS(headers)
		return result{status: http.StatusOK, headers: headers}
	case http.MethodPost:
	default:
		headers["Allow"] = allowedMethods
		return result{status: http.StatusMethodNotAllowed, headers: headers}
	}

	out, err := h.reply(ctx, header, readBody, correlationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "chat request failed", "err", err, "correlation_id", correlationID)
		headers["Content-Type"] = "application/json"
		headers["Access-Control-Allow-Origin"] = "*"
		return h.render(ctx, http.StatusInternalServerError, headers, chatResponse{
			Success:  false,
			Response: errorReply,
			Error:    errorDetail(err),
		})
	}

	setCORS(headers)
	headers["Content-Type"] = "application/json"
	return h.render(ctx, http.StatusOK, headers, chatResponse{Success: true, Response: out.Reply})
}

func (h *Handler) reply(ctx context.Context, header func(string) string, readBody func() ([]byte, error), correlationID string) (usecase.ReplyOutput, error) {
	body, err := readBody()
	if err != nil {
		return usecase.ReplyOutput{}, usecase.NewInvalidInput("unreadable_body", err)
	}
	message, err := decodeMessage(body)
	if err != nil {
		return usecase.ReplyOutput{}, err
	}
	return h.uc.Reply(ctx, usecase.ReplyInput{
		Utterance:     message,
		SessionID:     header(sessionHeader),
		CorrelationID: correlationID,
	})
}

func (h *Handler) render(ctx context.Context, status int, headers map[string]string, body chatResponse) result {
	b, err := json.Marshal(body)
	if err != nil {
		h.logger.ErrorContext(ctx, "encode response failed", "err", err)
		status = http.StatusInternalServerError
		b = []byte(`{"success":false,"response":"` + errorReply + `"}`)
	}
	return result{status: status, headers: headers, body: b}
}

// decodeMessage extracts the utterance from a {"message": "..."} body. A
// missing key is the empty utterance; any other shape is rejected.
func decodeMessage(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", usecase.NewInvalidInput("invalid_body", errors.New("request body must be a JSON object"))
	}

	var req chatRequest
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&req); err != nil {
		return "", usecase.NewInvalidInput("invalid_json", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return "", usecase.NewInvalidInput("invalid_json", errors.New("multiple JSON values in request body"))
		}
		return "", usecase.NewInvalidInput("invalid_json", fmt.Errorf("trailing data: %w", err))
	}

	if len(req.Message) == 0 {
		return "", nil
	}
	if bytes.Equal(req.Message, []byte("null")) {
		return "", usecase.NewInvalidInput("invalid_message", errors.New("message must be a string"))
	}
	var message string
	if err := json.Unmarshal(req.Message, &message); err != nil {
		return "", usecase.NewInvalidInput("invalid_message", fmt.Errorf("message must be a string: %w", err))
	}
	return message, nil
}

// errorDetail prefers the underlying cause over the usecase envelope.
func errorDetail(err error) string {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) && ucErr.Err != nil {
		return ucErr.Err.Error()
	}
	return err.Error()
}

func setCORS(headers map[string]string) {
	headers["Access-Control-Allow-Origin"] = "*"
	headers["Access-Control-Allow-Methods"] = allowedMethods
	headers["Access-Control-Allow-Headers"] = "Content-Type"
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}
