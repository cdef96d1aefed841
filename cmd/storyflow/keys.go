package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/storyflow/auth"
	"github.com/randalmurphal/storyflow/config"
)

var (
	saveKeyHash  bool
	tokenSubject string
	tokenProject string
	tokenTTL     time.Duration
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate an API key for the HTTP server",
	Long: `Generate a random API key. The key is printed once; configure its hash
as server_api_key_hash (or pass --save to write it to the global config).`,
	Args: cobra.NoArgs,
	RunE: generateAPIKey,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with server_jwt_secret",
	Args:  cobra.NoArgs,
	RunE:  mintToken,
}

func init() {
	apikeyCmd.Flags().BoolVar(&saveKeyHash, "save", false, "store the hash as server_api_key_hash in the global config")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "storyflow-cli", "token subject")
	tokenCmd.Flags().StringVar(&tokenProject, "project", "", "restrict the token to a project (default jira_project_key)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultAccessTokenTTL, "token lifetime")
	rootCmd.AddCommand(apikeyCmd, tokenCmd)
}

func generateAPIKey(cmd *cobra.Command, _ []string) error {
	key, err := auth.GenerateAPIKey(auth.APIKeyConfig{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API key: %s\n", key.Secret)
	fmt.Fprintf(out, "Prefix:  %s\n", key.Prefix)
	fmt.Fprintf(out, "Hash:    %s\n", key.Hash)

	if !saveKeyHash {
		fmt.Fprintf(out, "\nSet %s to the hash to enable it.\n", config.KeyServerAPIKeyHash)
		return nil
	}
	sc := config.NewSaveConfig(config.StoryflowResolver(configFile))
	if err := sc.SaveGlobal(config.KeyServerAPIKeyHash, key.Hash); err != nil {
		return err
	}
	path, _ := sc.GlobalPath()
	fmt.Fprintf(out, "\nSaved %s to %s\n", config.KeyServerAPIKeyHash, path)
	return nil
}

func mintToken(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if settings.Server.JWTSecret == "" {
		return errors.New(config.KeyServerJWTSecret + " is not set")
	}

	project := tokenProject
	if project == "" {
		project = settings.Jira.ProjectKey
	}

	token, err := auth.GenerateAccessToken(auth.JWTConfig{
		Secret:         []byte(settings.Server.JWTSecret),
		AccessTokenTTL: tokenTTL,
	}, tokenSubject, project)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
