package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultPath is the config file written by the wizard.
const DefaultPath = ".shardgate.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to shardgate! Let's configure your bot.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Bot token. Left blank, it is expected from SHARDGATE_TOKEN.
	tokenPrompt := promptui.Prompt{
		Label: "Bot token (leave blank to use SHARDGATE_TOKEN)",
		Mask:  '*',
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	cfg.Token = strings.TrimSpace(token)

	// 2. Application ID, needed for followups and command sync.
	appPrompt := promptui.Prompt{
		Label: "Application ID",
		Validate: func(s string) error {
			if s == "" {
				return nil
			}
			if _, err := strconv.ParseUint(s, 10, 64); err != nil {
				return fmt.Errorf("application id must be numeric")
			}
			return nil
		},
	}
	appID, err := appPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("application id: %w", err)
	}
	cfg.ApplicationID = appID

	// 3. Intents.
	intentsPrompt := promptui.Prompt{
		Label:   "Intents (comma-separated)",
		Default: strings.Join(DefaultIntents, ","),
	}
	intentsStr, err := intentsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("intents: %w", err)
	}
	if intents := splitAndTrim(intentsStr); len(intents) > 0 {
		cfg.Intents = intents
	}

	// 4. Payload compression.
	compressPrompt := promptui.Select{
		Label: "Compress gateway payloads",
		Items: []string{"no", "yes"},
	}
	compressIdx, _, err := compressPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("compression selection: %w", err)
	}
	cfg.Compress = compressIdx == 1

	// 5. Shard count.
	shardPrompt := promptui.Prompt{
		Label:   "Shard count (0 = recommended by the gateway)",
		Default: "0",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return fmt.Errorf("shard count must be a non-negative integer")
			}
			return nil
		},
	}
	shardStr, err := shardPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("shard count: %w", err)
	}
	cfg.Shards.Count, _ = strconv.Atoi(shardStr)

	if cfg.Token == "" && os.Getenv(EnvPrefix+"TOKEN") == "" {
		fmt.Printf("\nNote: Set %sTOKEN in your environment before running shardgate run.\n", EnvPrefix)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
