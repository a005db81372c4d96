package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/domain"
	chatuc "github.com/agentcv/agentcv/internal/usecase/chat"
	healthuc "github.com/agentcv/agentcv/internal/usecase/health"
	profileuc "github.com/agentcv/agentcv/internal/usecase/profilestore"
)

// --- Fakes ---

type fakeProfiles struct {
	rec        domain.ProfileRecord
	replaceErr error
	deleteErr  error
	history    []domain.ProfileRecord
	historyErr error

	gotTenant   string
	gotFilename string
	gotOpts     profileuc.ReplaceOptions
}

func (f *fakeProfiles) Replace(
	_ context.Context, tenantID, filename string, _ []byte, opts profileuc.ReplaceOptions,
) (domain.ProfileRecord, error) {
	f.gotTenant = tenantID
	f.gotFilename = filename
	f.gotOpts = opts
	return f.rec, f.replaceErr
}

func (f *fakeProfiles) Delete(_ context.Context, tenantID string) error {
	f.gotTenant = tenantID
	return f.deleteErr
}

func (f *fakeProfiles) History(_ context.Context, tenantID string) ([]domain.ProfileRecord, error) {
	f.gotTenant = tenantID
	return f.history, f.historyErr
}

type fakeChat struct {
	answer     string
	respondErr error
	fragments  []string
	streamErr  error

	gotReq chatuc.Request
}

func (f *fakeChat) Respond(_ context.Context, req chatuc.Request) (string, error) {
	f.gotReq = req
	return f.answer, f.respondErr
}

func (f *fakeChat) Stream(_ context.Context, req chatuc.Request, emit func(string) error) error {
	f.gotReq = req
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, fr := range f.fragments {
		if err := emit(fr); err != nil {
			return err
		}
	}
	return nil
}

type fakeCredentials struct {
	setErr    error
	deleteErr error

	gotTenant string
	gotCred   domain.Credential
}

func (f *fakeCredentials) SetCredential(_ context.Context, tenantID string, cred domain.Credential) error {
	f.gotTenant = tenantID
	f.gotCred = cred
	return f.setErr
}

func (f *fakeCredentials) DeleteCredential(_ context.Context, tenantID string) error {
	f.gotTenant = tenantID
	return f.deleteErr
}

type fakeHealth struct{ report healthuc.Report }

func (f *fakeHealth) Check(_ context.Context) healthuc.Report { return f.report }

func newTestServer(profiles *fakeProfiles, chat *fakeChat, creds *fakeCredentials, health *fakeHealth) http.Handler {
	if health == nil {
		health = &fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}}
	}
	return NewServer(profiles, chat, creds, health, zap.NewNop()).Router()
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

// --- Upload ---

func TestUpload_Success(t *testing.T) {
	profiles := &fakeProfiles{rec: domain.ProfileRecord{
		ID:           "p1",
		Filename:     "resume.txt",
		VectorCount:  7,
		ChunkSize:    400,
		ChunkOverlap: 20,
		Model:        "text-embedding-3-small",
		Published:    true,
	}}
	h := newTestServer(profiles, &fakeChat{}, &fakeCredentials{}, nil)

	body, contentType := multipartUpload(t, "resume.txt", "profile text", map[string]string{
		"chunk_size":    "300",
		"chunk_overlap": "30",
		"publish":       "true",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/profile/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if profiles.gotTenant != "t1" || profiles.gotFilename != "resume.txt" {
		t.Errorf("forwarded %s/%s", profiles.gotTenant, profiles.gotFilename)
	}
	want := profileuc.ReplaceOptions{ChunkSize: 300, ChunkOverlap: 30, Publish: true}
	if profiles.gotOpts != want {
		t.Errorf("opts = %+v, want %+v", profiles.gotOpts, want)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["vector_count"].(float64) != 7 {
		t.Errorf("vector_count = %v", resp["vector_count"])
	}
}

func TestUpload_RequiresTenant(t *testing.T) {
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, nil)

	body, contentType := multipartUpload(t, "resume.txt", "text", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/profile/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestUpload_ErrorMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrUnsupportedFile, http.StatusBadRequest, "unsupported_file"},
		{domain.ErrEmptyDocument, http.StatusBadRequest, "empty_document"},
		{domain.ErrCredentialMissing, http.StatusBadRequest, "credential_missing"},
		{domain.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found"},
		{domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"},
		{domain.ErrVectorIndex, http.StatusBadGateway, "vector_index_error"},
	}
	for _, tc := range cases {
		h := newTestServer(&fakeProfiles{replaceErr: tc.err}, &fakeChat{}, &fakeCredentials{}, nil)

		body, contentType := multipartUpload(t, "resume.txt", "text", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/profile/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(TenantHeader, "t1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != tc.wantStatus {
			t.Errorf("%v: status = %d, want %d", tc.err, rr.Code, tc.wantStatus)
		}
		var resp errorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Code != tc.wantCode {
			t.Errorf("%v: code = %q, want %q", tc.err, resp.Code, tc.wantCode)
		}
	}
}

func TestUpload_BadChunkParams(t *testing.T) {
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, nil)

	body, contentType := multipartUpload(t, "resume.txt", "text", map[string]string{"chunk_size": "abc"})
	req := httptest.NewRequest(http.MethodPost, "/api/profile/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- Delete / history ---

func TestDeleteProfile(t *testing.T) {
	profiles := &fakeProfiles{}
	h := newTestServer(profiles, &fakeChat{}, &fakeCredentials{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/profile", nil)
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if profiles.gotTenant != "t1" {
		t.Errorf("tenant = %q", profiles.gotTenant)
	}
}

func TestHistory(t *testing.T) {
	profiles := &fakeProfiles{history: []domain.ProfileRecord{
		{ID: "p2", Filename: "new.pdf", Active: true, CreatedAt: time.Now().UTC()},
		{ID: "p1", Filename: "old.pdf", CreatedAt: time.Now().UTC().Add(-time.Hour)},
	}}
	h := newTestServer(profiles, &fakeChat{}, &fakeCredentials{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/profile/history", nil)
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 2 || resp.Items[0].ProfileID != "p2" {
		t.Errorf("items = %+v", resp.Items)
	}
}

// --- Credentials ---

func TestSetCredential(t *testing.T) {
	creds := &fakeCredentials{}
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, creds, nil)

	body := `{"api_key":"sk-test","chat_model":"gpt-4o"}`
	req := httptest.NewRequest(http.MethodPut, "/api/settings/openai-key", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if creds.gotCred.APIKey != "sk-test" || creds.gotCred.ChatModel != "gpt-4o" {
		t.Errorf("stored cred = %+v", creds.gotCred)
	}
}

func TestSetCredential_MissingKey(t *testing.T) {
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/settings/openai-key", strings.NewReader(`{}`))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- Chat ---

func TestChat_Respond(t *testing.T) {
	chat := &fakeChat{answer: "They write Go."}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"what do they do?"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "They write Go." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if chat.gotReq.TenantID != "t1" {
		t.Errorf("tenant = %q", chat.gotReq.TenantID)
	}
}

func TestChat_HandleWithoutTenant(t *testing.T) {
	chat := &fakeChat{answer: "public answer"}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"handle":"gopher","messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if chat.gotReq.Handle != "gopher" {
		t.Errorf("handle = %q", chat.gotReq.Handle)
	}
}

func TestChat_AnonymousWithoutHandle(t *testing.T) {
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestChat_NoProfile(t *testing.T) {
	chat := &fakeChat{respondErr: domain.ErrNoProfile}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestChat_EmptyMessages(t *testing.T) {
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- Streaming ---

func TestChatStream_SSEFraming(t *testing.T) {
	chat := &fakeChat{fragments: []string{"Hello", " world"}}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	want := "data: Hello\n\ndata:  world\n\n"
	if rr.Body.String() != want {
		t.Errorf("body = %q, want %q", rr.Body.String(), want)
	}
}

func TestChatStream_MultilineFragment(t *testing.T) {
	chat := &fakeChat{fragments: []string{"line one\nline two"}}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	want := "data: line one\ndata: line two\n\n"
	if rr.Body.String() != want {
		t.Errorf("body = %q, want %q", rr.Body.String(), want)
	}
}

func TestChatStream_NoProfileMapsToNotFound(t *testing.T) {
	chat := &fakeChat{streamErr: domain.ErrNoProfile}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Code != "profile_not_found" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestChatStream_CredentialMissingMapsToBadRequest(t *testing.T) {
	chat := &fakeChat{streamErr: domain.ErrCredentialMissing}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestChatStream_EmptyStreamStillSSE(t *testing.T) {
	chat := &fakeChat{}
	h := newTestServer(&fakeProfiles{}, chat, &fakeCredentials{}, nil)

	body := `{"messages":[{"role":"user","content":"q"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(TenantHeader, "t1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rr.Body.String())
	}
}

// --- Health ---

func TestHealthz_Degraded(t *testing.T) {
	health := &fakeHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			"database": healthuc.CheckOK,
			"index":    healthuc.CheckError,
		},
	}}
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, health)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestHealthz_OK(t *testing.T) {
	h := newTestServer(&fakeProfiles{}, &fakeChat{}, &fakeCredentials{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}
