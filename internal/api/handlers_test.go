package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"

	"blamer/internal/blame"
	"blamer/internal/errors"
	"blamer/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock blame store
type MockBlameBox struct {
	blames   map[string]*blame.FileBlame
	mergeErr error
}

func NewMockBlameBox() *MockBlameBox {
	return &MockBlameBox{
		blames: make(map[string]*blame.FileBlame),
	}
}

func (m *MockBlameBox) Put(fb *blame.FileBlame) error {
	m.blames[fb.FileName()] = fb.Clone()
	return nil
}

func (m *MockBlameBox) Get(fileName string) (*blame.FileBlame, error) {
	if fb, ok := m.blames[blame.New(fileName).FileName()]; ok {
		return fb.Clone(), nil
	}
	return nil, errors.NotFound(fmt.Sprintf("entity not found: %s", fileName))
}

func (m *MockBlameBox) Merge(fb *blame.FileBlame) (*blame.FileBlame, error) {
	if m.mergeErr != nil {
		return nil, m.mergeErr
	}
	existing, ok := m.blames[fb.FileName()]
	if !ok {
		existing = blame.New(fb.FileName())
		m.blames[fb.FileName()] = existing
	}
	if err := existing.Merge(fb); err != nil {
		return nil, err
	}
	return existing.Clone(), nil
}

func (m *MockBlameBox) Delete(fileName string) error {
	name := blame.New(fileName).FileName()
	if _, ok := m.blames[name]; !ok {
		return errors.NotFound(fmt.Sprintf("entity not found: %s", fileName))
	}
	delete(m.blames, name)
	return nil
}

func (m *MockBlameBox) Files() ([]string, error) {
	var files []string
	for name := range m.blames {
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func (m *MockBlameBox) Load() (*blame.Blames, error) {
	blames := blame.NewBlames()
	for _, fb := range m.blames {
		if err := blames.Add(fb); err != nil {
			return nil, err
		}
	}
	return blames, nil
}

func newTestServer(box blame.Box) http.Handler {
	mux := http.NewServeMux()
	NewBlameHandler(box, &logging.Logger{Logger: zap.NewNop()}).Register(mux)
	return mux
}

func sampleBlame(file string, line int) *blame.FileBlame {
	fb := blame.New(file)
	fb.SetCommit(line, "abc123")
	fb.SetName(line, "Jane Doe")
	fb.SetEmail(line, "jane@example.com")
	fb.SetTime(line, 1_700_000_000)
	return fb
}

func TestBlameHandler_List(t *testing.T) {
	box := NewMockBlameBox()
	server := newTestServer(box)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/blames", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, box.Put(sampleBlame("b.go", 1)))
	require.NoError(t, box.Put(sampleBlame("a.go", 1)))

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/blames", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["a.go","b.go"]`, rec.Body.String())
}

func TestBlameHandler_Get(t *testing.T) {
	box := NewMockBlameBox()
	server := newTestServer(box)
	stored := sampleBlame("src/main.go", 3)
	require.NoError(t, box.Put(stored))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantErr    bool
	}{
		{
			name:       "existing file",
			query:      "?name=" + url.QueryEscape("src/main.go"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "backslash path",
			query:      "?name=" + url.QueryEscape(`src\main.go`),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing file",
			query:      "?name=nope.go",
			wantStatus: http.StatusNotFound,
			wantErr:    true,
		},
		{
			name:       "missing name",
			query:      "",
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/blames/file"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			if !tt.wantErr {
				got := blame.New("")
				require.NoError(t, json.NewDecoder(rec.Body).Decode(got))
				assert.True(t, stored.Equal(got))
			}
		})
	}
}

func TestBlameHandler_Merge(t *testing.T) {
	box := NewMockBlameBox()
	server := newTestServer(box)
	require.NoError(t, box.Put(sampleBlame("file.go", 1)))

	body, err := json.Marshal(sampleBlame("file.go", 2))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/blames/file", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	merged := blame.New("")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(merged))
	assert.Equal(t, []int{1, 2}, merged.LineNumbers())
	assert.Equal(t, "Jane Doe", merged.Name(2))

	tests := []struct {
		name       string
		body       string
		mergeErr   error
		wantStatus int
	}{
		{name: "invalid body", body: "{", wantStatus: http.StatusBadRequest},
		{name: "missing file name", body: `{"lines":[]}`, wantStatus: http.StatusBadRequest},
		{
			name:       "different files",
			body:       `{"file_name":"wrong"}`,
			mergeErr:   errors.InvalidArgument("cannot merge blames of different files: this instance: file, other instance: wrong"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			body:       `{"file_name":"file.go"}`,
			mergeErr:   fmt.Errorf("disk on fire"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box.mergeErr = tt.mergeErr
			defer func() { box.mergeErr = nil }()

			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/blames/file", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestBlameHandler_Replace(t *testing.T) {
	box := NewMockBlameBox()
	server := newTestServer(box)
	require.NoError(t, box.Put(sampleBlame("file.go", 1)))

	body, err := json.Marshal(sampleBlame("file.go", 2))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/blames/file?replace=true", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := box.Get("file.go")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, stored.LineNumbers())
}

func TestBlameHandler_All(t *testing.T) {
	box := NewMockBlameBox()
	server := newTestServer(box)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/blames/all", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, box.Put(sampleBlame("b.go", 2)))
	require.NoError(t, box.Put(sampleBlame("a.go", 1)))

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/blames/all", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []*blame.FileBlame
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 2)
	assert.Equal(t, "a.go", records[0].FileName())
	assert.Equal(t, "b.go", records[1].FileName())
	assert.Equal(t, "Jane Doe", records[1].Name(2))
}

func TestBlameHandler_Delete(t *testing.T) {
	box := NewMockBlameBox()
	server := newTestServer(box)
	require.NoError(t, box.Put(sampleBlame("file.go", 1)))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/blames/file?name=file.go", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/blames/file?name=file.go", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
