package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/homecase-imagekv/internal/infra/config"
)

type redisConfig struct {
	Addr string `env:"ADDR" default:"localhost:6379"`
	DB   int    `env:"DB" default:"0"`
}

type storeConfig struct {
	Backend string      `env:"BACKEND" default:"redis"`
	Redis   redisConfig `envPrefix:"REDIS_"`
}

type codecConfig struct {
	Quality   uint    `env:"JPEG_QUALITY" default:"75"`
	MaxPixels int64   `env:"MAX_PIXELS" default:"100000000"`
	Sigma     float64 `env:"SIGMA" default:"0.5"`
}

type serviceConfig struct {
	EnvConfig

	Store    storeConfig `envPrefix:"STORE_"`
	Codec    codecConfig `envPrefix:"CODEC_"`
	Download bool        `env:"DOWNLOAD" default:"false"`
	Label    string
}

func defaultServiceConfig() serviceConfig {
	//nolint:exhaustruct
	return serviceConfig{
		Store: storeConfig{Backend: "redis", Redis: redisConfig{Addr: "localhost:6379"}},
		Codec: codecConfig{Quality: 75, MaxPixels: 100000000, Sigma: 0.5},
	}
}

//nolint:paralleltest
func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		env       map[string]string
		want      func(cfg *serviceConfig)
	}{
		{
			name:      "defaults",
			namespace: "IMAGEKV_IMAGESVC",
			want:      func(*serviceConfig) {},
		},
		{
			name:      "nested prefixes",
			namespace: "IMAGEKV_IMAGESVC",
			env: map[string]string{
				"IMAGEKV_IMAGESVC_STORE_BACKEND":    "filesystem",
				"IMAGEKV_IMAGESVC_STORE_REDIS_ADDR": "redis:6380",
				"IMAGEKV_IMAGESVC_STORE_REDIS_DB":   "3",
			},
			want: func(cfg *serviceConfig) {
				cfg.Store.Backend = "filesystem"
				cfg.Store.Redis.Addr = "redis:6380"
				cfg.Store.Redis.DB = 3
			},
		},
		{
			name:      "falls back to shorter namespace",
			namespace: "IMAGEKV_IMAGESVC",
			env: map[string]string{
				"IMAGEKV_CODEC_JPEG_QUALITY": "90",
				"IMAGEKV_CODEC_SIGMA":        "1.5",
			},
			want: func(cfg *serviceConfig) {
				cfg.Codec.Quality = 90
				cfg.Codec.Sigma = 1.5
			},
		},
		{
			name:      "prefers the most specific namespace",
			namespace: "IMAGEKV_IMAGESVC",
			env: map[string]string{
				"IMAGEKV_DOWNLOAD":          "false",
				"IMAGEKV_IMAGESVC_DOWNLOAD": "true",
			},
			want: func(cfg *serviceConfig) {
				cfg.Download = true
			},
		},
		{
			name:      "empty values override defaults",
			namespace: "APP",
			env: map[string]string{
				"APP_STORE_BACKEND": "",
			},
			want: func(cfg *serviceConfig) {
				cfg.Store.Backend = ""
			},
		},
		{
			name:      "int64 beyond int32",
			namespace: "APP",
			env: map[string]string{
				"APP_CODEC_MAX_PIXELS": "8589934592",
			},
			want: func(cfg *serviceConfig) {
				cfg.Codec.MaxPixels = 8589934592
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			want := defaultServiceConfig()
			tt.want(&want)

			var cfg serviceConfig
			require.NoError(t, Parse(context.Background(), &cfg, tt.namespace))

			assert.Equal(t, want.Store, cfg.Store)
			assert.Equal(t, want.Codec, cfg.Codec)
			assert.Equal(t, want.Download, cfg.Download)
			assert.Empty(t, cfg.Label)
			assert.Equal(t, tt.namespace, cfg.Namespace())
		})
	}
}

//nolint:paralleltest
func TestParse_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "int", env: map[string]string{"APP_STORE_REDIS_DB": "zero"}},
		{name: "negative uint", env: map[string]string{"APP_CODEC_JPEG_QUALITY": "-1"}},
		{name: "float", env: map[string]string{"APP_CODEC_SIGMA": "half"}},
		{name: "bool", env: map[string]string{"APP_DOWNLOAD": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var cfg serviceConfig
			assert.Error(t, Parse(context.Background(), &cfg, "APP"))
		})
	}
}

func TestParse_MissingVariableNamesMostSpecificCandidate(t *testing.T) {
	t.Parallel()

	cfg := &struct {
		EnvConfig

		Value string `env:"VALUE"`
	}{}

	err := Parse(context.Background(), cfg, "IMAGEKV_TEST_UNSET")
	require.ErrorIs(t, err, ErrVarNotSet)
	assert.Contains(t, err.Error(), "IMAGEKV_TEST_UNSET_VALUE")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     any
		wantErr error
	}{
		{name: "non-pointer config", cfg: serviceConfig{}, wantErr: ErrInvalidConfig},
		{name: "non-struct pointer", cfg: new(string), wantErr: ErrInvalidConfig},
		{
			name: "missing EnvConfig embedding",
			cfg: &struct {
				Value string `env:"VALUE"`
			}{},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "required variable without default",
			cfg: &struct {
				EnvConfig

				Value string `env:"IMAGEKV_TEST_UNSET_REQUIRED"`
			}{},
			wantErr: ErrVarNotSet,
		},
		{
			name: "unsupported kind",
			cfg: &struct {
				EnvConfig

				Formats []string `env:"FORMATS" default:"PNG"`
			}{},
			wantErr: ErrUnsupportedVarType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, Parse(context.Background(), tt.cfg, ""), tt.wantErr)
		})
	}
}
