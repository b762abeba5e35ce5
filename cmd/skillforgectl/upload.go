package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"skillforge/pkg/config"
	"skillforge/pkg/models"
	"skillforge/pkg/parser"
	"skillforge/pkg/store"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Parse and persist a skill document",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	parsed, err := parser.Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parsing skill: %w", err)
	}

	cfg, err := config.Load(config.WithDefaults(), config.FromEnv())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := store.Open(cfg.DataDir + "/skillforge.db")
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	skills, err := store.NewStore(db, "skills", func(s models.Skill) string { return s.ID })
	if err != nil {
		return fmt.Errorf("opening skills bucket: %w", err)
	}

	now := time.Now()
	skill := models.Skill{
		ID:         uuid.New().String(),
		Name:       parsed.Name,
		RawContent: string(raw),
		ParsedData: parsed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := skill.Validate(); err != nil {
		return fmt.Errorf("invalid skill: %w", err)
	}

	if err := skills.Create(context.Background(), skill); err != nil {
		return fmt.Errorf("persisting skill: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), skill.ID)
	return nil
}
