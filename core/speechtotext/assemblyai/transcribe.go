package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext"
)

const (
	uploadURL     = "https://api.assemblyai.com/v2/upload"
	transcriptURL = "https://api.assemblyai.com/v2/transcript"

	pollInterval = 2 * time.Second
)

// TranscribeFile uploads a recorded audio file and waits for its transcript.
// It blocks until the transcript completes, fails, or ctx is cancelled.
func TranscribeFile(ctx context.Context, apiKey string, audio io.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe audio file")
	defer span.End()

	if apiKey == "" {
		span.RecordError(speechtotext.ErrMissingCredential)
		span.SetStatus(codes.Error, speechtotext.ErrMissingCredential.Error())
		return "", speechtotext.ErrMissingCredential
	}

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)}

	audioURL, err := uploadAudio(ctx, client, apiKey, audio)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	transcriptID, err := requestTranscript(ctx, client, apiKey, audioURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("transcript.id", transcriptID))

	for {
		status, text, err := pollTranscript(ctx, client, apiKey, transcriptID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}

		switch status {
		case "completed":
			return text, nil
		case "error":
			err := fmt.Errorf("assemblyai transcription failed for %s", transcriptID)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func uploadAudio(ctx context.Context, client *http.Client, apiKey string, audio io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, audio)
	if err != nil {
		return "", fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error uploading audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected upload status: %s", resp.Status)
	}

	var uploadResp struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("error decoding upload response: %w", err)
	}
	return uploadResp.UploadURL, nil
}

func requestTranscript(ctx context.Context, client *http.Client, apiKey string, audioURL string) (string, error) {
	reqBody, err := json.Marshal(struct {
		AudioURL string `json:"audio_url"`
	}{AudioURL: audioURL})
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, transcriptURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("error creating transcript request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error requesting transcript: %w", err)
	}
	defer resp.Body.Close()

	var transcriptResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&transcriptResp); err != nil {
		return "", fmt.Errorf("error decoding transcript response: %w", err)
	}
	if transcriptResp.ID == "" {
		return "", fmt.Errorf("transcript request was not accepted")
	}
	return transcriptResp.ID, nil
}

func pollTranscript(ctx context.Context, client *http.Client, apiKey string, transcriptID string) (status string, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transcriptURL+"/"+transcriptID, nil)
	if err != nil {
		return "", "", fmt.Errorf("error creating poll request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("error polling transcript: %w", err)
	}
	defer resp.Body.Close()

	var pollResp struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pollResp); err != nil {
		return "", "", fmt.Errorf("error decoding poll response: %w", err)
	}
	return pollResp.Status, pollResp.Text, nil
}
