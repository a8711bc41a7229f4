// Package setup implements the interactive `gridscope init` wizard.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/billie-coop/gridscope/internal/config"
)

// ErrAborted is returned when the user interrupts the wizard.
var ErrAborted = errors.New("setup aborted")

// Prompter asks the wizard's questions. The survey implementation talks
// to the terminal; tests script the answers.
type Prompter interface {
	Input(ctx context.Context, message, help, def string, validate func(string) error) (string, error)
	Password(ctx context.Context, message, help string) (string, error)
	Confirm(ctx context.Context, message string, def bool) (bool, error)
	Select(ctx context.Context, message string, options []string, def string) (string, error)
}

// Run walks the user through the backend and UI settings and saves the
// result through m. Themes lists the selectable theme names.
func Run(ctx context.Context, p Prompter, m *config.Manager, themes []string) error {
	cfg := *m.Get()

	var err error
	if cfg.APIURL, err = p.Input(ctx, "Backend URL", "Base URL of the statistics API", cfg.APIURL, validateURL); err != nil {
		return err
	}
	if cfg.APIPrefix, err = p.Input(ctx, "API prefix", "Path prefix in front of /plots and /tasks", cfg.APIPrefix, nil); err != nil {
		return err
	}

	token, err := p.Password(ctx, "API token", "Leave empty to keep the current token. Use $VAR to read it from the environment")
	if err != nil {
		return err
	}
	if token != "" {
		cfg.APIToken = token
	}

	if len(themes) > 0 {
		if cfg.Theme, err = p.Select(ctx, "Theme", themes, cfg.Theme); err != nil {
			return err
		}
	}

	filter, err := p.Input(ctx, "Filter debounce (ms)", "Quiet period before a filter edit triggers a new plot",
		strconv.Itoa(cfg.FilterDebounceMS), validatePositive)
	if err != nil {
		return err
	}
	cfg.FilterDebounceMS, _ = strconv.Atoi(filter)

	if cfg.MetricsAddr, err = p.Input(ctx, "Metrics address", "host:port for the Prometheus endpoint, empty disables it", cfg.MetricsAddr, nil); err != nil {
		return err
	}
	if cfg.Debug, err = p.Confirm(ctx, "Enable debug logging?", cfg.Debug); err != nil {
		return err
	}

	if err := m.Replace(&cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("expected an http(s) URL, got %q", s)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", s)
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", s)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// Survey prompts on the terminal.
type Survey struct{}

func (Survey) Input(ctx context.Context, message, help, def string, validate func(string) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{Message: message, Help: help, Default: def}
	var opts []survey.AskOpt
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			return validate(s)
		}))
	}
	if err := survey.AskOne(prompt, &out, opts...); err != nil {
		return "", translate(err)
	}
	return out, nil
}

func (Survey) Password(ctx context.Context, message, help string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	if err := survey.AskOne(&survey.Password{Message: message, Help: help}, &out); err != nil {
		return "", translate(err)
	}
	return out, nil
}

func (Survey) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out); err != nil {
		return false, translate(err)
	}
	return out, nil
}

func (Survey) Select(ctx context.Context, message string, options []string, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prompt := &survey.Select{Message: message, Options: options}
	for _, o := range options {
		if o == def {
			prompt.Default = def
		}
	}
	var out string
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translate(err)
	}
	return out, nil
}

func translate(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}
