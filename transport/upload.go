package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	UploadField    = "audio"
	UploadFilename = "audio_recording.wav"
	UploadMIME     = "audio/wav"
)

type UploadResult struct {
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
}

// Uploader posts a finished recording to {BaseURL}/upload as multipart form data.
type Uploader struct {
	BaseURL string
	Client  *http.Client
}

func NewUploader(baseURL string) *Uploader {
	return &Uploader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *Uploader) Upload(ctx context.Context, wav []byte) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, UploadFilename))
	h.Set("Content-Type", UploadMIME)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("upload: reading response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("upload error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result UploadResult
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("upload response parse error: %w", err)
		}
	}
	return &result, nil
}
