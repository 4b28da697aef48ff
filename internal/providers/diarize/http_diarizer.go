package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/minuteflow/minuteflow/internal/models"
)

// HTTPDiarizer talks to a pyannote-style diarization sidecar over HTTP.
// The sidecar holds the GPU; device failures come back as plain-text error
// bodies ("CUDA out of memory", ...) which the GPU retry classifier reads.
type HTTPDiarizer struct {
	baseURL   string
	authToken string
	hc        *http.Client
}

func NewHTTPDiarizer(baseURL, authToken string) *HTTPDiarizer {
	return &HTTPDiarizer{
		baseURL:   baseURL,
		authToken: authToken,
		// diarization of a long recording can run for many minutes
		hc: &http.Client{Timeout: 60 * time.Minute},
	}
}

type diarizeResp struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

func (d *HTTPDiarizer) Diarize(ctx context.Context, audioPath string, numSpeakers int) ([]models.DiarizationSegment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if numSpeakers > 0 {
		if err := mw.WriteField("num_speakers", strconv.Itoa(numSpeakers)); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/diarize", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.authToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("diarizer http %d: %s", resp.StatusCode, string(b))
	}

	var dr diarizeResp
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, err
	}

	out := make([]models.DiarizationSegment, 0, len(dr.Segments))
	for _, s := range dr.Segments {
		if s.End < s.Start {
			continue
		}
		out = append(out, models.DiarizationSegment{Start: s.Start, End: s.End, Speaker: s.Speaker})
	}
	return out, nil
}

// ClearGPUCache asks the sidecar to free device memory. Best-effort; a
// failure here never matters more than the error that triggered it.
func (d *HTTPDiarizer) ClearGPUCache(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/gpu/cache/clear", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.authToken)

	resp, err := d.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("diarizer cache clear http %d", resp.StatusCode)
	}
	return nil
}

func (d *HTTPDiarizer) Close() error {
	d.hc.CloseIdleConnections()
	return nil
}
