package ml

import (
	"context"
	"errors"
	"fmt"

	"github.com/sugarcypher/sweetguard/internal/config"
)

// ErrNoBarcode means the image was readable but showed no usable barcode
var ErrNoBarcode = errors.New("no barcode found in image")

// BarcodeReading is what a model extracted from a product photo
type BarcodeReading struct {
	Barcode     string  `json:"barcode"`
	IsFood      bool    `json:"is_food"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Model reads product barcodes from images
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// ReadBarcode extracts the barcode printed on a product photo
	ReadBarcode(ctx context.Context, imageData []byte) (*BarcodeReading, error)
	Close() error
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the configured type
func NewModel(cfg config.MLConfig) (Model, error) {
	var factory ModelFactory

	switch cfg.Type {
	case "google":
		gc := GoogleConfig{
			ProjectID:       cfg.Google.ProjectID,
			Location:        cfg.Google.Location,
			CredentialsFile: cfg.Google.CredentialsFile,
			Model:           cfg.Google.Model,
		}
		gc.applyEnv()
		if err := gc.validate(); err != nil {
			return nil, fmt.Errorf("invalid google model config: %w", err)
		}
		factory = NewGoogleModelFactory(gc)
	case "local", "":
		lc := LocalConfig{ModelPath: cfg.Local.ModelPath}
		lc.applyEnv()
		factory = NewLocalModelFactory(lc)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Type)
	}
	return factory.CreateModel()
}
