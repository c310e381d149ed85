package cmd

import (
	"context"
	"fmt"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema and tag legacy channels with their provider",
	Run: func(cmd *cobra.Command, _ []string) {
		// the schema itself is migrated during initApp
		n, err := BackfillChannelProviders(cmd.Context(), channelRepo, resolver)
		StopApp()
		if err != nil {
			logrus.Fatalf("[MIGRATION] %v", err)
		}
		logrus.Infof("[MIGRATION] Done, %d channels tagged", n)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// BackfillChannelProviders persists the inferred provider on enabled channels
// that predate the explicit provider tag, so resolution stops guessing.
func BackfillChannelProviders(ctx context.Context, repo domainChannel.IChannelRepository, resolver domainChannel.ICredentialResolver) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logrus.Info("[MIGRATION] Checking for channels without a provider tag...")

	channels, err := repo.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list channels: %w", err)
	}

	tagged := 0
	for _, ch := range channels {
		if ch.Provider.Valid() {
			continue
		}
		// missing credentials still yield the provider they are missing for
		creds, err := resolver.Resolve(ch)
		if !creds.Provider.Valid() {
			logrus.WithError(err).Warnf("[MIGRATION] Could not decide provider for channel %s", ch.ID)
			continue
		}

		ch.Provider = creds.Provider
		if err := repo.Update(ctx, &ch); err != nil {
			logrus.Errorf("[MIGRATION] Failed to tag channel %s: %v", ch.ID, err)
			continue
		}
		logrus.Infof("[MIGRATION] Channel %s tagged as %s", ch.ID, ch.Provider)
		tagged++
	}
	return tagged, nil
}
