package deepface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAnalyzeResponse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		single   string
		multiple []string
		wantErr  bool
	}{
		{
			name:     "results list",
			body:     `{"results": [{"dominant_emotion": "happy", "emotion": {"happy": 98.1}}, {"dominant_emotion": "sad"}]}`,
			multiple: []string{"happy", "sad"},
		},
		{
			name:   "bare object",
			body:   `{"dominant_emotion": "neutral", "region": {"x": 1, "y": 2, "w": 3, "h": 4}}`,
			single: "neutral",
		},
		{
			name:     "bare list",
			body:     `[{"dominant_emotion": "fear"}]`,
			multiple: []string{"fear"},
		},
		{
			name:     "empty list",
			body:     `{"results": []}`,
			multiple: []string{},
		},
		{
			name:     "legacy instances",
			body:     `{"instance_10": {"dominant_emotion": "sad"}, "instance_2": {"dominant_emotion": "angry"}, "instance_1": {"dominant_emotion": "happy"}}`,
			multiple: []string{"happy", "angry", "sad"},
		},
		{name: "error body", body: `{"error": "Face could not be detected"}`, wantErr: true},
		{name: "unknown object", body: `{"foo": 1}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeAnalyzeResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.single != "" {
				require.NotNil(t, resp.Single)
				require.Equal(t, tt.single, resp.Single.DominantEmotion)
				return
			}
			require.Nil(t, resp.Single)
			got := make([]string, 0, len(resp.Multiple))
			for _, f := range resp.Multiple {
				got = append(got, f.DominantEmotion)
			}
			require.Equal(t, tt.multiple, got)
		})
	}
}

func TestEngineAnalyze(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results": [{"dominant_emotion": "surprise"}]}`))
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{URL: srv.URL + "/", ImageField: "img"})
	resp, err := e.Analyze(context.Background(), &AnalyzeRequest{
		Image:           []byte{0xff, 0xd8},
		Actions:         []string{"emotion"},
		DetectorBackend: "mtcnn",
	})
	require.NoError(t, err)
	require.Equal(t, "surprise", resp.Multiple[0].DominantEmotion)

	require.True(t, strings.HasPrefix(got["img"].(string), "data:image/jpeg;base64,"))
	require.Equal(t, "mtcnn", got["detector_backend"])
	require.Equal(t, false, got["enforce_detection"])
	require.Equal(t, []any{"emotion"}, got["actions"])
}

func TestEngineAnalyzeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Exception while analyzing: img is invalid"}`))
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{URL: srv.URL})
	_, err := e.Analyze(context.Background(), &AnalyzeRequest{Image: []byte{1}})
	require.ErrorContains(t, err, "img is invalid")
}

func TestEngineAnalyzeCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine().SetConfig(Config{URL: srv.URL})
	_, err := e.Analyze(ctx, &AnalyzeRequest{Image: []byte{1}})
	require.Error(t, err)
}
