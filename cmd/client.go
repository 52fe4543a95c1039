package cmd

import (
	"errors"

	"github.com/dojo-hq/dojo-cli/internal/api"
	"github.com/dojo-hq/dojo-cli/internal/config"
)

// LoadConfig builds the effective configuration from flags, environment
// and defaults.
func LoadConfig(opts config.Options) (*config.Config, error) {
	if opts.APIURL == "" {
		opts.APIURL = flagAPIURL
	}
	return config.Load(opts)
}

// NewAPIClient creates an API client backed by the on-disk credential
// store.
func NewAPIClient(cfg *config.Config) (*api.Client, error) {
	tokens, err := api.NewTokenStore()
	if err != nil {
		return nil, err
	}
	return api.NewClient(api.ClientConfig{
		BaseURL: cfg.APIURL,
		Tokens:  tokens,
	})
}

// loginHint rewrites credential failures into an actionable message.
func loginHint(err error) error {
	if errors.Is(err, api.ErrCredential) {
		return errors.New("not logged in or session expired, run 'dojo login'")
	}
	return err
}
