package imagesvc

import "github.com/mkrupp/homecase-imagekv/internal/codec"

// ImageConfig holds configuration parameters for the image service.
type ImageConfig struct {
	// MaxConcurrent bounds how many commands transform images at the same time
	MaxConcurrent int `env:"MAX_CONCURRENT" default:"4"`

	// MaxSize is the largest blob in bytes accepted by Store
	MaxSize int64 `env:"MAX_SIZE" default:"33554432"`

	// JournalLimit is the default number of entries returned by Journal
	JournalLimit int `env:"JOURNAL_LIMIT" default:"50"`

	// Codec is the template cloned for every command
	Codec codec.Config `envPrefix:"CODEC_"`
}

// DefaultImageConfig returns the configuration used when none is loaded from the environment.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		MaxConcurrent: 4,        //nolint:mnd
		MaxSize:       32 << 20, //nolint:mnd
		JournalLimit:  50,       //nolint:mnd
		Codec:         codec.DefaultConfig(),
	}
}
