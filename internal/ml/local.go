package ml

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by readers that cannot decode images
var ErrUnsupported = errors.New("image reading not supported by this model")

// LocalModel is the offline reader. It has no decoder, so scans fail fast
// and clients fall back to sending the barcode text.
type LocalModel struct {
	config LocalConfig
}

// LocalModelFactory implements ModelFactory for local models
type LocalModelFactory struct {
	config LocalConfig
}

func NewLocalModelFactory(config LocalConfig) *LocalModelFactory {
	return &LocalModelFactory{config: config}
}

func (f *LocalModelFactory) CreateModel() (Model, error) {
	return &LocalModel{config: f.config}, nil
}

func (m *LocalModel) Load(ctx context.Context) error { return nil }

func (m *LocalModel) ReadBarcode(ctx context.Context, imageData []byte) (*BarcodeReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

func (m *LocalModel) Close() error { return nil }
