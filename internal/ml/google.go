package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

const barcodePrompt = `Look at this photo of a product and read the barcode printed on it.
Report whether the product is a food or drink, a short description of it, and
the digits of the barcode (UPC-A, EAN-8 or EAN-13). Copy the digits exactly as
printed, including leading zeros. Do not guess missing digits.

Format the response as a JSON object with exactly one of "error" or "success" populated.
{
	"error": {
		"error_reason": "string",
		"suggestion_for_better_results": "string"
	},
	"success": {
		"barcode": "string of digits",
		"is_food": boolean,
		"description": "string",
		"confidence": number between 0 and 1
	}
}`

// GoogleModel reads barcodes with a Gemini model on Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{config: f.config}, nil
}

// Load initializes the Vertex AI client
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}
	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.Model)
	m.model.SetTemperature(0)
	return nil
}

// ReadBarcode sends the photo to the model and parses its answer
func (m *GoogleModel) ReadBarcode(ctx context.Context, imageData []byte) (*BarcodeReading, error) {
	if m.model == nil {
		return nil, errors.New("model not loaded")
	}

	mimeType, err := imageMIMEType(imageData)
	if err != nil {
		return nil, err
	}
	img := genai.Blob{MIMEType: mimeType, Data: imageData}

	resp, err := m.model.GenerateContent(ctx, genai.Text(barcodePrompt), img)
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("no response generated")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, errors.New("no content in response")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return parseReading(text.String())
}

func (m *GoogleModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func imageMIMEType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return ct, nil
	default:
		return "", fmt.Errorf("unsupported image type %s", ct)
	}
}

type modelOutput struct {
	Error *struct {
		ErrorReason string `json:"error_reason"`
		Suggestion  string `json:"suggestion_for_better_results"`
	} `json:"error"`
	Success *BarcodeReading `json:"success"`
}

// parseReading decodes the model's JSON answer, with or without a markdown fence
func parseReading(text string) (*BarcodeReading, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w while parsing %s", err, text)
	}
	if out.Error != nil && out.Error.ErrorReason != "" {
		return nil, fmt.Errorf("%w: %s; suggestion: %s", ErrNoBarcode, out.Error.ErrorReason, out.Error.Suggestion)
	}
	if out.Success == nil {
		return nil, errors.New("missing or invalid success object in response")
	}

	reading := out.Success
	reading.Barcode = digitsOnly(reading.Barcode)
	if reading.Barcode == "" {
		return nil, ErrNoBarcode
	}
	return reading, nil
}

// digitsOnly drops the spaces and dashes models like to insert between groups
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
