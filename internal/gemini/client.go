// Package gemini is the HTTP boundary to the Generative Language API. It
// only shapes requests and decodes responses; quota checks, persistence and
// retries (none at this layer) belong to the callers.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mediagen/backend/internal/config"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	imageModel string
	videoModel string
	musicModel string
}

func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		imageModel: cfg.ImageModel,
		videoModel: cfg.VideoModel,
		musicModel: cfg.MusicModel,
	}
}

func (c *Client) ImageModel() string { return c.imageModel }
func (c *Client) VideoModel() string { return c.videoModel }
func (c *Client) MusicModel() string { return c.musicModel }

// Result is one generated artifact returned synchronously.
type Result struct {
	Data     []byte
	MimeType string
	Model    string
}

// VideoPoll is the state of a long-running video operation. Data is only
// set once Done is true and the operation succeeded.
type VideoPoll struct {
	Done         bool
	Progress     int
	Data         []byte
	MimeType     string
	ErrorMessage string
}

type ImageRequest struct {
	Prompt          string
	Model           string
	AspectRatio     string
	NegativePrompt  string
	ReferenceImages []string // base64, optionally data-URL prefixed
}

type EditRequest struct {
	Prompt       string
	Model        string
	SourceImages []string
}

type VideoRequest struct {
	Prompt         string
	Model          string
	NegativePrompt string
	FirstFrame     string
	LastFrame      string
}

type MusicRequest struct {
	Description     string
	DurationSeconds int
	Style           string
}

// Wire types for generateContent.

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Wire types for predictLongRunning (video) operations.

type predictRequest struct {
	Instances  []videoInstance  `json:"instances"`
	Parameters *videoParameters `json:"parameters,omitempty"`
}

type videoInstance struct {
	Prompt    string      `json:"prompt"`
	Image     *inlineData `json:"image,omitempty"`
	LastFrame *inlineData `json:"lastFrame,omitempty"`
}

type videoParameters struct {
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Metadata struct {
		ProgressPercent int `json:"progressPercent"`
	} `json:"metadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI                string `json:"uri"`
					BytesBase64Encoded string `json:"bytesBase64Encoded"`
					MimeType           string `json:"mimeType"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Result, error) {
	model := req.Model
	if model == "" {
		model = c.imageModel
	}

	parts := []part{{Text: req.Prompt}}
	if req.NegativePrompt != "" {
		parts[0].Text = fmt.Sprintf("%s\nAvoid: %s", req.Prompt, req.NegativePrompt)
	}
	for _, img := range req.ReferenceImages {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: "image/png",
			Data:     stripDataURL(img),
		}})
	}

	cfg := &generationConfig{ResponseModalities: []string{"IMAGE"}}
	if req.AspectRatio != "" && req.AspectRatio != "1:1" {
		cfg.ImageConfig = &imageConfig{AspectRatio: req.AspectRatio}
	}

	return c.generateInline(ctx, model, generateContentRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: cfg,
	})
}

func (c *Client) EditImage(ctx context.Context, req EditRequest) (*Result, error) {
	model := req.Model
	if model == "" {
		model = c.imageModel
	}

	parts := []part{{Text: req.Prompt}}
	for _, img := range req.SourceImages {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: "image/png",
			Data:     stripDataURL(img),
		}})
	}

	return c.generateInline(ctx, model, generateContentRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"IMAGE"}},
	})
}

func (c *Client) GenerateMusic(ctx context.Context, req MusicRequest) (*Result, error) {
	prompt := req.Description
	if req.Style != "" {
		prompt = fmt.Sprintf("%s\nStyle: %s", prompt, req.Style)
	}
	if req.DurationSeconds > 0 {
		prompt = fmt.Sprintf("%s\nDuration: %d seconds", prompt, req.DurationSeconds)
	}

	return c.generateInline(ctx, c.musicModel, generateContentRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"AUDIO"}},
	})
}

// StartVideo launches a long-running video generation and returns the
// operation name for polling.
func (c *Client) StartVideo(ctx context.Context, req VideoRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.videoModel
	}

	instance := videoInstance{Prompt: req.Prompt}
	if req.FirstFrame != "" {
		instance.Image = &inlineData{MimeType: "image/png", Data: stripDataURL(req.FirstFrame)}
	}
	if req.LastFrame != "" {
		instance.LastFrame = &inlineData{MimeType: "image/png", Data: stripDataURL(req.LastFrame)}
	}

	body := predictRequest{Instances: []videoInstance{instance}}
	if req.NegativePrompt != "" {
		body.Parameters = &videoParameters{NegativePrompt: req.NegativePrompt}
	}

	var op operationResponse
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, model)
	if err := c.postJSON(ctx, url, body, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", fmt.Errorf("gemini: operation name missing in response")
	}
	return op.Name, nil
}

func (c *Client) PollVideo(ctx context.Context, operationID string) (*VideoPoll, error) {
	var op operationResponse
	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(operationID, "/"))
	if err := c.getJSON(ctx, url, &op); err != nil {
		return nil, err
	}

	poll := &VideoPoll{Done: op.Done, Progress: op.Metadata.ProgressPercent}
	if !op.Done {
		return poll, nil
	}

	if op.Error != nil {
		poll.ErrorMessage = op.Error.Message
		return poll, nil
	}

	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 {
		poll.ErrorMessage = "operation finished without a video"
		return poll, nil
	}

	video := samples[0].Video
	poll.MimeType = video.MimeType
	if poll.MimeType == "" {
		poll.MimeType = "video/mp4"
	}

	if video.BytesBase64Encoded != "" {
		data, err := base64.StdEncoding.DecodeString(video.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("gemini: decoding video bytes: %w", err)
		}
		poll.Data = data
		return poll, nil
	}

	if video.URI != "" {
		data, err := c.download(ctx, video.URI)
		if err != nil {
			return nil, err
		}
		poll.Data = data
		return poll, nil
	}

	poll.ErrorMessage = "operation finished without video content"
	return poll, nil
}

func (c *Client) generateInline(ctx context.Context, model string, body generateContentRequest) (*Result, error) {
	var resp generateContentResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	if err := c.postJSON(ctx, url, body, &resp); err != nil {
		return nil, err
	}

	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: decoding inline data: %w", err)
			}
			return &Result{Data: data, MimeType: p.InlineData.MimeType, Model: model}, nil
		}
	}

	return nil, fmt.Errorf("gemini: no inline content in response from %s", model)
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gemini: upstream returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return json.Unmarshal(raw, out)
}

func (c *Client) download(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: video download returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func stripDataURL(value string) string {
	if idx := strings.Index(value, ","); idx >= 0 && strings.HasPrefix(value, "data:") {
		return value[idx+1:]
	}
	return value
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
