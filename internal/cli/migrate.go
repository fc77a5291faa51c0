package cli

import (
	"fmt"

	"docqa-go/internal/repository"
	"docqa-go/pkg/database"
	"docqa-go/pkg/vectorstore"

	"github.com/spf13/cobra"
)

var withVectorIndex bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the documents and queries tables",
	Long:  `Creates the documents and queries tables if they do not exist. With --vector-index the vector store index is created too.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&withVectorIndex, "vector-index", false, "also create the vector store index")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := repository.AutoMigrate(db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "tables documents, queries are ready")

	if !withVectorIndex {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	store, err := vectorstore.New(cfg.VectorStore, cfg.Embedding.Dimensions, sqlDB)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureIndex(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "vector index (%s) is ready\n", cfg.VectorStore.Type)
	return nil
}
