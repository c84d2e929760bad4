package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dasida/tutor/internal/catalog"
	"github.com/dasida/tutor/internal/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml>",
	Short: "Load problems, concepts and links from a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg, logger.Nop())
		if err != nil {
			return err
		}
		defer st.Close()

		seed, err := catalog.Apply(cmd.Context(), st.Catalog(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d problems, %d concepts, %d concept links, %d similar-problem links.\n",
			len(seed.Problems), len(seed.Concepts), len(seed.Links), len(seed.Similarities))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Open migrates.
		st, err := openStore(cfg, logger.Nop())
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Println("Schema up to date.")
		return nil
	},
}
