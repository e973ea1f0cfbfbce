package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honestlens/lifecycle"
	"honestlens/storage"
	"honestlens/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type submission struct {
	kind     types.Kind
	payload  string
	priority types.Priority
}

type fakeService struct {
	submitted []submission
	err       error
	requests  map[string]*types.VerificationRequest
	results   map[string]*types.VerificationResult
}

func newFakeService() *fakeService {
	return &fakeService{
		requests: map[string]*types.VerificationRequest{},
		results:  map[string]*types.VerificationResult{},
	}
}

func (f *fakeService) Submit(_ context.Context, kind types.Kind, payload string, priority types.Priority) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, submission{kind, payload, priority})
	id := "req-1"
	if _, ok := f.requests[id]; !ok {
		f.requests[id] = &types.VerificationRequest{ID: id, Kind: kind, Payload: payload, State: types.StateProcessing}
	}
	return id, nil
}

func (f *fakeService) GetResult(_ context.Context, id string) (*types.VerificationRequest, *types.VerificationResult, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, nil, types.ErrNotFound
	}
	return req, f.results[id], nil
}

func (f *fakeService) Stats() lifecycle.Stats { return lifecycle.Stats{Submitted: int64(len(f.submitted))} }

func do(t *testing.T, r http.Handler, method, path string, body []byte, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestVerifyText(t *testing.T) {
	svc := newFakeService()
	r := NewRouter(svc, nil, Options{})

	w, body := do(t, r, http.MethodPost, "/api/verification/verify-text",
		[]byte(`{"text":"a claim worth checking","priority":"high"}`), "application/json")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "req-1", data["requestId"])
	assert.Equal(t, "processing", data["status"])
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, submission{types.KindText, "a claim worth checking", types.PriorityHigh}, svc.submitted[0])
}

func TestVerifyURLAlreadyVerified(t *testing.T) {
	svc := newFakeService()
	svc.requests["req-1"] = &types.VerificationRequest{ID: "req-1", Kind: types.KindURL, State: types.StateCompleted}
	svc.results["req-1"] = &types.VerificationResult{RequestID: "req-1", TruthScore: 86, CredibilityLevel: types.HighlyCredible}
	r := NewRouter(svc, nil, Options{})

	w, body := do(t, r, http.MethodPost, "/api/verification/verify-url",
		[]byte(`{"url":"https://pib.gov.in/a"}`), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "URL already verified", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.EqualValues(t, 86, data["result"].(map[string]any)["truthScore"])
}

func TestSubmitErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid input", types.ErrInvalidInput, http.StatusBadRequest},
		{"closed", lifecycle.ErrClosed, http.StatusServiceUnavailable},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc := newFakeService()
			svc.err = c.err
			w, body := do(t, NewRouter(svc, nil, Options{}), http.MethodPost, "/api/verification/verify-url",
				[]byte(`{"url":"nope"}`), "application/json")
			assert.Equal(t, c.code, w.Code)
			assert.Equal(t, false, body["success"])
		})
	}

	w, _ := do(t, NewRouter(newFakeService(), nil, Options{}), http.MethodPost, "/api/verification/verify-text",
		[]byte(`{"text":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartImage(t *testing.T, filename, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("priority", "urgent"))
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestVerifyImageUpload(t *testing.T) {
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := newFakeService()
	r := NewRouter(svc, storage.NewMux(local, nil), Options{})

	body, ct := multipartImage(t, "photo.PNG", "image/png", []byte("\x89PNG fake"))
	w, _ := do(t, r, http.MethodPost, "/api/verification/verify-image", body, ct)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.submitted, 1)

	sub := svc.submitted[0]
	assert.Equal(t, types.KindImage, sub.kind)
	assert.Equal(t, types.PriorityUrgent, sub.priority)
	assert.True(t, strings.HasPrefix(sub.payload, "file://"), sub.payload)
	assert.True(t, strings.HasSuffix(sub.payload, ".png"), sub.payload)

	stored, err := local.Get(context.Background(), sub.payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG fake"), stored)
}

func TestVerifyImageRejectsNonImages(t *testing.T) {
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := newFakeService()
	r := NewRouter(svc, storage.NewMux(local, nil), Options{})

	body, ct := multipartImage(t, "notes.txt", "text/plain", []byte("hello"))
	w, body2 := do(t, r, http.MethodPost, "/api/verification/verify-image", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", body2["message"])
	assert.Empty(t, svc.submitted)
}

func TestVerifyImageByReference(t *testing.T) {
	svc := newFakeService()
	w, _ := do(t, NewRouter(svc, nil, Options{}), http.MethodPost, "/api/verification/verify-image",
		[]byte(`{"imageRef":"s3://bucket/uploads/a.jpg"}`), "application/json")
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "s3://bucket/uploads/a.jpg", svc.submitted[0].payload)
}

func TestResult(t *testing.T) {
	svc := newFakeService()
	svc.requests["req-1"] = &types.VerificationRequest{ID: "req-1", Kind: types.KindText, State: types.StateProcessing}
	r := NewRouter(svc, nil, Options{})

	w, body := do(t, r, http.MethodGet, "/api/verification/result/req-1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "processing", data["request"].(map[string]any)["status"])
	assert.Nil(t, data["result"])

	w, body = do(t, r, http.MethodGet, "/api/verification/result/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Verification request not found", body["message"])
}

func TestHealthAndCORS(t *testing.T) {
	r := NewRouter(newFakeService(), nil, Options{AllowOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
}
