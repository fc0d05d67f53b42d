package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/deepfeed/internal/config"
)

func TestReferenceProvider_CloseBeforeGenerate(t *testing.T) {
	r := NewReferenceProvider(config.ReferenceConfig{Headless: true, Language: "en", Paragraphs: 2}, nil)
	r.Close()
	r.Close()

	_, err := r.Generate(context.Background(), Request{Topic: "Octopus", Count: 1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Lookup(context.Background(), "Octopus")
	assert.ErrorIs(t, err, ErrClosed)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Nil(t, r.stop)
}
