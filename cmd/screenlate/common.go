package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/oukeidos/screenlate/internal/auth"
	"github.com/oukeidos/screenlate/internal/language"
	"github.com/oukeidos/screenlate/internal/logger"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	promptForKey = auth.PromptForAPIKey
)

// resolveAPIKey handles the logic for finding the API key.
func resolveAPIKey(service string, allowEnv, envOnly bool) (string, string, error) {
	if envOnly {
		allowEnv = true
	}
	if envOnly {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable", nil
		}
		return "", "", fmt.Errorf("env-only set but %s_API_KEY is not set", strings.ToUpper(service))
	}

	if key, source := getKey(service, false); key != "" {
		return key, source, nil
	}

	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable", nil
		}
	}

	if isTerminal(int(os.Stdin.Fd())) {
		svcName := "Gemini"
		if service == "openai" {
			svcName = "OpenAI"
		}
		key, err := promptForKey(fmt.Sprintf("%s API Key (press Enter to skip): ", svcName))
		if err != nil {
			return "", "", fmt.Errorf("error reading API key: %w", err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), "Terminal Prompt", nil
		}
	}

	if !isTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("no API key available (non-interactive shell); set keychain or use --allow-env")
	}
	if allowEnv {
		return "", "", fmt.Errorf("API key is required; not found in keychain or environment")
	}
	return "", "", fmt.Errorf("API key is required; not found in keychain (environment disabled by default; use --allow-env)")
}

// optionalAPIKey looks up a key without prompting. Used for the secondary
// backend, which is nice to have but never blocks startup.
func optionalAPIKey(service string, allowEnv bool) (string, string) {
	if key, source := getKey(service, false); key != "" {
		return key, source
	}
	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable"
		}
	}
	return "", ""
}

func resolveLanguageCode(input string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(input), language.Auto) {
		return language.Auto, nil
	}
	if lang, ok := language.GetLanguage(input); ok {
		return lang.Code, nil
	}
	needle := strings.TrimSpace(input)
	if needle == "" {
		return "", fmt.Errorf("language is empty")
	}
	for _, entry := range language.GetSupportedLanguages() {
		if strings.EqualFold(entry.Name, needle) {
			return entry.Code, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %s", input)
}

// parseRegion parses "x1,y1,x2,y2" into a rectangle.
func parseRegion(spec string) (image.Rectangle, error) {
	parts := strings.Split(strings.TrimSpace(spec), ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("region %q must be x1,y1,x2,y2", spec)
	}
	coords := make([]int, 4)
	for i, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("region %q has a non-numeric coordinate: %w", spec, err)
		}
		coords[i] = value
	}
	rect := image.Rect(coords[0], coords[1], coords[2], coords[3])
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("region %q has zero area", spec)
	}
	return rect, nil
}

func parseRegions(specs []string) ([]image.Rectangle, error) {
	rects := make([]image.Rectangle, 0, len(specs))
	for _, spec := range specs {
		rect, err := parseRegion(spec)
		if err != nil {
			return nil, err
		}
		rects = append(rects, rect)
	}
	return rects, nil
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Cancellation requested")
		cancel()
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
