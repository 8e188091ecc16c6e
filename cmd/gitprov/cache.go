package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/traceworks/gitprov/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the API response cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop all cached API responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Purge(); err != nil {
			return err
		}
		fmt.Println("✓ Cache purged")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
