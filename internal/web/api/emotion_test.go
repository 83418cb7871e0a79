package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gowvp/moodline/internal/adapter/localfs"
	"github.com/gowvp/moodline/internal/adapter/minioadapter"
	"github.com/gowvp/moodline/internal/conf"
	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/stretchr/testify/require"
)

type testSource struct {
	fps   float64
	total int
	read  int
}

func (s *testSource) FrameRate() float64 { return s.fps }

func (s *testSource) Next() (image.Image, error) {
	if err := s.Skip(); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil
}

func (s *testSource) Skip() error {
	if s.read >= s.total {
		return io.EOF
	}
	s.read++
	return nil
}

func (s *testSource) Close() error { return nil }

type testClassifier struct {
	labels []string
	i      int
}

func (c *testClassifier) Analyze(context.Context, emotion.AnalyzeRequest) (emotion.AnalyzeResult, error) {
	defer func() { c.i++ }()
	if c.i >= len(c.labels) || c.labels[c.i] == "error" {
		return emotion.AnalyzeResult{}, errors.New("face could not be detected")
	}
	return emotion.MultipleResult([]emotion.FaceAnalysis{{DominantEmotion: c.labels[c.i]}}), nil
}

func newTestServer(t *testing.T, frames int, labels ...string) http.Handler {
	t.Helper()
	bc := conf.DefaultConfig()
	bc.Server.HTTP.MaxUploadMB = 1

	root := t.TempDir()
	local, err := localfs.NewStore(
		filepath.Join(root, "uploads"),
		filepath.Join(root, "frames"),
		filepath.Join(root, "graphs"),
		0,
	)
	require.NoError(t, err)

	core := emotion.NewCore(nil,
		emotion.WithArtifactStore(local),
		emotion.WithVideoOpener(emotion.VideoOpenerFunc(func(context.Context, string) (emotion.VideoSource, error) {
			return &testSource{fps: 30, total: frames}, nil
		})),
		emotion.WithClassifier(&testClassifier{labels: labels}, 0, "mtcnn"),
		emotion.WithSamplingInterval(bc.Analysis.SamplingInterval),
	)
	uc := Usecase{
		Conf:       &bc,
		EmotionAPI: NewEmotionAPI(core, &bc),
	}
	return NewHTTPHandler(&uc)
}

func uploadRequest(t *testing.T, field, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadAnalyzes(t *testing.T) {
	h := newTestServer(t, 90, "happy", "error", "sad")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "clip.mp4", []byte("fake video")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Message       string `json:"message"`
		FrameEmotions []struct {
			Time    float64 `json:"time"`
			Emotion string  `json:"emotion"`
		} `json:"frame_emotions"`
		Frames    []*string `json:"frames"`
		GraphName string    `json:"graph_name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "success", out.Message)
	require.Len(t, out.FrameEmotions, 3)
	require.Equal(t, "error", out.FrameEmotions[1].Emotion)
	require.Equal(t, 2.0, out.FrameEmotions[1].Time)
	require.Nil(t, out.Frames[1])
	require.Equal(t, "/frame/clip.mp4_frame_30.jpg", *out.Frames[0])
	require.Equal(t, "clip.mp4_emotion_graph.png", out.GraphName)

	// 预览与图表可以通过返回的名称取回
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, *out.Frames[0], nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph/"+out.GraphName, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestUploadFilenameNeedsEscaping(t *testing.T) {
	h := newTestServer(t, 30, "happy")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "take #1?.mp4", []byte("fake video")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Frames []*string `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Frames, 1)
	require.Equal(t, "/frame/take%20%231%3F.mp4_frame_30.jpg", *out.Frames[0])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, *out.Frames[0], nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
}

func TestUploadShortVideo(t *testing.T) {
	h := newTestServer(t, 10)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "short.mp4", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"frame_emotions":[]`)
	require.Contains(t, w.Body.String(), `"frames":[]`)
}

func TestUploadBadRequest(t *testing.T) {
	h := newTestServer(t, 30, "happy")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "video", "clip.mp4", []byte("x")))
	require.NotEqual(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "clip.mp4", bytes.Repeat([]byte("x"), 2<<20)))
	require.NotEqual(t, http.StatusOK, w.Code)
}

func TestServeArtifactNotFound(t *testing.T) {
	h := newTestServer(t, 30, "happy")

	for _, path := range []string{
		"/graph/missing_emotion_graph.png",
		"/frame/missing_frame_30.jpg",
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, 0)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "sampling_interval")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "moodline_http_requests_total")
}

func TestArtifactPruner(t *testing.T) {
	root := t.TempDir()
	local, err := localfs.NewStore(root, root, root, 0)
	require.NoError(t, err)

	remote, err := minioadapter.NewStore(minioadapter.Config{Endpoint: "127.0.0.1:9000", Bucket: "moodline"}, local)
	require.NoError(t, err)

	require.Same(t, remote, artifactPruner(remote, local))
	require.Same(t, local, artifactPruner(local, local))
}

func TestToReason(t *testing.T) {
	require.Error(t, toReason(emotion.ErrVideoUnreadable))
	require.Error(t, toReason(errors.New("x")))
}
