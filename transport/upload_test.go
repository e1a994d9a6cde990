package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicecue/devserver"
	"voicecue/encoder"
	"voicecue/transport"
)

func TestUploadToDevServer(t *testing.T) {
	_, base := startDevServer(t, devserver.Config{})

	res, err := transport.NewUploader(base+"/").Upload(context.Background(), encoder.WAV(make([]byte, 64), 16000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "File uploaded successfully" || !strings.HasSuffix(res.FilePath, transport.UploadFilename) {
		t.Errorf("result = %+v", res)
	}
}

func TestUploadPartHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Method != http.MethodPost {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		f, fh, err := r.FormFile(transport.UploadField)
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		if fh.Filename != "audio_recording.wav" {
			t.Errorf("filename = %q", fh.Filename)
		}
		if ct := fh.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("part content type = %q", ct)
		}
		data, _ := io.ReadAll(f)
		if string(data[:4]) != "RIFF" {
			t.Errorf("payload is not wav")
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	if _, err := transport.NewUploader(ts.URL).Upload(context.Background(), encoder.WAV([]byte{0, 0}, 16000)); err != nil {
		t.Fatal(err)
	}
}

func TestUploadErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid file format"}`, http.StatusBadRequest)
	}))
	t.Cleanup(ts.Close)

	_, err := transport.NewUploader(ts.URL).Upload(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "Invalid file format") {
		t.Fatalf("err = %v", err)
	}
}
