package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_IndexPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index_pdf", r.URL.Path)
		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "paper.pdf", fh.Filename)
		assert.Equal(t, "%PDF-1.4", string(body))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"message": "PDF indexed successfully from u", "chunks": 3})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	resp, err := NewClient(srv.URL+"/", time.Second).IndexPDF(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Chunks)
	assert.Equal(t, "PDF indexed successfully from u", resp.Message)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"An error occurred during indexing: boom","kind":"storage"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewClient(srv.URL, time.Second).IndexPDF(context.Background(), path)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "storage", apiErr.Kind)
}

func TestAsk_HighlightsNoAnswer(t *testing.T) {
	answer := "I don't know"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "who?", req["query"])
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": answer})
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), &out, NewClient(srv.URL, time.Second), "who?"))
	assert.Contains(t, out.String(), "Chatbot Response: I don't know")
}

func TestChat_ExitsOnCommand(t *testing.T) {
	var asked []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		asked = append(asked, req["query"])
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "Paris."})
	}))
	defer srv.Close()

	in := strings.NewReader("capital of France?\n\nexit\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, chat(context.Background(), in, &out, NewClient(srv.URL, time.Second)))

	assert.Equal(t, []string{"capital of France?"}, asked)
	assert.Contains(t, out.String(), "Paris.")
}

func TestIsNoAnswer(t *testing.T) {
	assert.True(t, IsNoAnswer("Sorry, I don't know."))
	assert.False(t, IsNoAnswer("Paris."))
}

func TestAbout(t *testing.T) {
	var out bytes.Buffer
	about(&out)
	for _, s := range []string{"Indexing", "Retrieval", "Generation"} {
		assert.Contains(t, out.String(), s)
	}
}
