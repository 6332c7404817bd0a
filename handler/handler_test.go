package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"rule-chatbot/internal/usecase"
)

type stubUseCase struct {
	out    usecase.ReplyOutput
	err    error
	in     usecase.ReplyInput
	called bool
}

func (s *stubUseCase) Reply(_ context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error) {
	s.in = in
	s.called = true
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/chatbot",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, uc Replier) *Handler {
	t.Helper()
	h, err := NewHandler(uc, nil)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_EndToEndHello(t *testing.T) {
	h := mustNewHandler(t, usecase.NewReplyService())

	resp, err := h.Handle(context.Background(), makeEvent(`{"message": "Hello!"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"success": true, "response": "goodbye"}`, resp.Body)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	require.Equal(t, "Content-Type", resp.Headers["Access-Control-Allow-Headers"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_PassesInputToUseCase(t *testing.T) {
	uc := &stubUseCase{out: usecase.ReplyOutput{Reply: "i'm fine", Rule: "how are you"}}
	h := mustNewHandler(t, uc)

	event := makeEvent(`{"message":"How are you?"}`)
	event.Headers["x-session-id"] = "sess-1"
	event.Headers["X-CORRELATION-ID"] = "corr-1"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ReplyInput{Utterance: "How are you?", SessionID: "sess-1", CorrelationID: "corr-1"}, uc.in)

	out := parseBody[chatResponse](t, resp.Body)
	require.True(t, out.Success)
	require.Equal(t, "i'm fine", out.Response)
	require.Equal(t, "corr-1", resp.Headers["X-Correlation-Id"])
}

func TestHandle_MissingMessageIsEmptyUtterance(t *testing.T) {
	h := mustNewHandler(t, usecase.NewReplyService())

	resp, err := h.Handle(context.Background(), makeEvent(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[chatResponse](t, resp.Body)
	require.Equal(t, "I received your message: ''. I can respond to 'hello', 'how are you?', and 'bye'.", out.Response)
}

func TestHandle_InvalidBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `not-json`},
		{name: "empty", body: ``},
		{name: "truncated", body: `{"message": "hi"`},
		{name: "trailing data", body: `{"message": "hi"} {}`},
		{name: "array", body: `["hello"]`},
		{name: "null body", body: `null`},
		{name: "numeric message", body: `{"message": 42}`},
		{name: "null message", body: `{"message": null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{}
			h := mustNewHandler(t, uc)

			resp, err := h.Handle(context.Background(), makeEvent(tc.body))
			require.NoError(t, err)
			require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			require.False(t, uc.called)
			require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])

			out := parseBody[chatResponse](t, resp.Body)
			require.False(t, out.Success)
			require.Equal(t, "Sorry, I encountered an error processing your message.", out.Response)
			require.NotEmpty(t, out.Error)
		})
	}
}

func TestHandle_UseCaseErrorReportsCause(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "transcript_write_error", Err: errors.New("dynamo down")}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"hello"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	out := parseBody[chatResponse](t, resp.Body)
	require.False(t, out.Success)
	require.Equal(t, "dynamo down", out.Error)
}

func TestHandle_UnexpectedError(t *testing.T) {
	uc := &stubUseCase{err: errors.New("boom")}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"hello"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "boom", parseBody[chatResponse](t, resp.Body).Error)
}

func TestHandle_Base64Body(t *testing.T) {
	h := mustNewHandler(t, usecase.NewReplyService())

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"message":"BYE!"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "bye bye", parseBody[chatResponse](t, resp.Body).Response)

	event.Body = "%%%"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandle_Options(t *testing.T) {
	uc := &stubUseCase{}
	h := mustNewHandler(t, uc)

	event := makeEvent("")
	event.HTTPMethod = http.MethodOptions
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Body)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	require.Equal(t, "Content-Type", resp.Headers["Access-Control-Allow-Headers"])
	require.False(t, uc.called)
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	event := makeEvent("")
	event.HTTPMethod = http.MethodGet
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, "POST, OPTIONS", resp.Headers["Allow"])
}

func TestHandle_GeneratesCorrelationID(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "generated-id" }
	t.Cleanup(func() { newUUID = orig })

	uc := &stubUseCase{out: usecase.ReplyOutput{Reply: "ok"}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"x"}`))
	require.NoError(t, err)
	require.Equal(t, "generated-id", resp.Headers["X-Correlation-Id"])
	require.Equal(t, "generated-id", uc.in.CorrelationID)
}

func TestServeHTTP_EndToEnd(t *testing.T) {
	h := mustNewHandler(t, usecase.NewReplyService())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	res, err := http.Post(srv.URL+"/api/chatbot", "application/json", strings.NewReader(`{"message": "Hello!"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"success": true, "response": "goodbye"}`, string(body))
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestServeHTTP_UnparsableBody(t *testing.T) {
	h := mustNewHandler(t, usecase.NewReplyService())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{oops`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	out := parseBody[chatResponse](t, rec.Body.String())
	require.False(t, out.Success)
	require.Equal(t, "Sorry, I encountered an error processing your message.", out.Response)
	require.NotEmpty(t, out.Error)
}

func TestServeHTTP_MissingContentLength(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hello"}`))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "missing Content-Length header", parseBody[chatResponse](t, rec.Body.String()).Error)
}

func TestServeHTTP_BodyTooLarge(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	big := `{"message":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, parseBody[chatResponse](t, rec.Body.String()).Error, "exceeds")
}

func TestServeHTTP_Options(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	req := httptest.NewRequest(http.MethodOptions, "/api/chatbot", nil)
	req.Header.Set("X-Correlation-Id", "corr-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, rec.Body.Len())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	require.Equal(t, "corr-7", rec.Header().Get("X-Correlation-Id"))
}
