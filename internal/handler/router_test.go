package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docqa-go/internal/middleware"
	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/extract"
	"docqa-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

type fakeQAService struct {
	lastInput service.RunInput
	err       error
}

func (f *fakeQAService) Run(_ context.Context, in service.RunInput) ([]string, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	answers := make([]string, len(in.Questions))
	for i, q := range in.Questions {
		answers[i] = "A: " + q
	}
	return answers, nil
}

func (f *fakeQAService) Stream(_ context.Context, in service.RunInput, sink service.AnswerSink) error {
	f.lastInput = in
	if f.err != nil {
		return f.err
	}
	for i, q := range in.Questions {
		if err := sink.Chunk(i, "A: "); err != nil {
			return err
		}
		if err := sink.Chunk(i, q); err != nil {
			return err
		}
		if err := sink.Answer(i, "A: "+q); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeQAService) Ingest(context.Context, service.RunInput) (*model.Document, error) {
	return &model.Document{ID: 1}, f.err
}

type fakeDocumentService struct {
	docs    []model.Document
	queries []model.Query
	deleted []uint
}

func (f *fakeDocumentService) List(_ context.Context, limit, offset int) (*service.DocumentPage, error) {
	return &service.DocumentPage{Items: f.docs, Total: int64(len(f.docs))}, nil
}

func (f *fakeDocumentService) find(id uint) (*model.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			return &f.docs[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDocumentService) Get(_ context.Context, id uint) (*model.Document, error) {
	return f.find(id)
}

func (f *fakeDocumentService) ListQueries(_ context.Context, id uint) ([]model.Query, error) {
	if _, err := f.find(id); err != nil {
		return nil, err
	}
	return f.queries, nil
}

func (f *fakeDocumentService) Delete(_ context.Context, id uint) error {
	if _, err := f.find(id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocumentService) GenerateDownloadURL(_ context.Context, id uint) (*service.DownloadInfoDTO, error) {
	if _, err := f.find(id); err != nil {
		return nil, err
	}
	return nil, service.ErrNoArchive
}

func newTestRouter(qa *fakeQAService, docs *fakeDocumentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterDeps{
		QAService:       qa,
		DocumentService: docs,
		Verifier:        token.NewVerifier(testToken, "", ""),
		MaxBytes:        1 << 20,
	})
}

func doJSON(t *testing.T, r http.Handler, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRun_ReturnsAnswersInOrder(t *testing.T) {
	qa := &fakeQAService{}
	r := newTestRouter(qa, &fakeDocumentService{})

	for _, path := range []string{"/api/v1/hackrx/run", "/hackrx/run"} {
		w := doJSON(t, r, http.MethodPost, path, testToken, RunRequest{
			DocumentURL: "https://example.com/policy.pdf",
			Questions:   []string{"one", "two"},
		})
		require.Equal(t, http.StatusOK, w.Code, path)

		var resp RunResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"A: one", "A: two"}, resp.Answers)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestRun_RequiresBearerToken(t *testing.T) {
	r := newTestRouter(&fakeQAService{}, &fakeDocumentService{})
	body := RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{"q"}}

	for _, bearer := range []string{"", "wrong"} {
		w := doJSON(t, r, http.MethodPost, "/api/v1/hackrx/run", bearer, body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"code":403,"message":"Invalid or missing Authorization token"}`, w.Body.String())
	}
}

func TestQueryToken_OnlyForStream(t *testing.T) {
	docs := &fakeDocumentService{docs: []model.Document{{ID: 7, Namespace: "ns"}}}
	r := newTestRouter(&fakeQAService{}, docs)
	body := RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{"q"}}

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/hackrx/run"},
		{http.MethodPost, "/api/v1/hackrx/run"},
		{http.MethodGet, "/api/v1/documents"},
		{http.MethodDelete, "/api/v1/documents/7"},
	}
	for _, tc := range cases {
		w := doJSON(t, r, tc.method, tc.path+"?access_token="+testToken, "", body)
		assert.Equal(t, http.StatusForbidden, w.Code, tc.path)
	}
	assert.Empty(t, docs.deleted)
}

func TestRun_InvalidInputIs400(t *testing.T) {
	r := newTestRouter(&fakeQAService{}, &fakeDocumentService{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/hackrx/run", testToken, RunRequest{Questions: []string{"q"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRun_ServiceErrorMapping(t *testing.T) {
	body := RunRequest{DocumentURL: "https://example.com/a.xyz", Questions: []string{"q"}}

	qa := &fakeQAService{err: extract.ErrUnsupportedFormat}
	w := doJSON(t, newTestRouter(qa, &fakeDocumentService{}), http.MethodPost, "/api/v1/hackrx/run", testToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	qa = &fakeQAService{err: errors.New("vector store down")}
	w = doJSON(t, newTestRouter(qa, &fakeDocumentService{}), http.MethodPost, "/api/v1/hackrx/run", testToken, body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "vector store down")
}

func TestHealthz_NoAuth(t *testing.T) {
	r := newTestRouter(&fakeQAService{}, &fakeDocumentService{})
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDocuments_ListQueriesDelete(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	docs := &fakeDocumentService{
		docs:    []model.Document{{ID: 7, URL: "https://example.com/a.pdf", Namespace: "ns", ChunkCount: 3, CreatedAt: created}},
		queries: []model.Query{{ID: 1, DocumentID: 7, Question: "q", Answer: "a", CreatedAt: created}},
	}
	r := newTestRouter(&fakeQAService{}, docs)

	w := doJSON(t, r, http.MethodGet, "/api/v1/documents?limit=10", testToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"createdAt":"2024-05-01 10:30:00"`)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/7/queries", testToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"question":"q"`)

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/8/queries", testToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents/7/download", testToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/documents/abc", testToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/documents/7", testToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uint{7}, docs.deleted)
}

func TestStream_WebSocket(t *testing.T) {
	qa := &fakeQAService{}
	srv := httptest.NewServer(newTestRouter(qa, &fakeDocumentService{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/hackrx/stream?access_token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(RunRequest{DocumentURL: "https://example.com/a.pdf", Questions: []string{"x", "y"}}))

	var types []string
	var answers []string
	for {
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		if msg.Type == "answer" {
			answers = append(answers, msg.Answer)
		}
		if msg.Type == "completion" || msg.Type == "error" {
			break
		}
	}
	assert.Equal(t, []string{"chunk", "chunk", "answer", "chunk", "chunk", "answer", "completion"}, types)
	assert.Equal(t, []string{"A: x", "A: y"}, answers)
}

func TestStream_RejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&fakeQAService{}, &fakeDocumentService{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/hackrx/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStream_InvalidRequestSendsError(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&fakeQAService{}, &fakeDocumentService{}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+testToken)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/hackrx/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(RunRequest{Questions: []string{"q"}}))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Message)
}
