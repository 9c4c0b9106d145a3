package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/service"
	"github.com/spf13/cobra"
)

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "Print stored predictions for a user",
	Long:  `Print a user's stored predictions, most urgent first, as JSON.`,
	RunE:  runPredictions,
}

var (
	predictionsUser          string
	predictionsUrgency       string
	predictionsMinConfidence string
	predictionsLimit         int
	predictionsList          bool
)

func init() {
	predictionsCmd.Flags().StringVarP(&predictionsUser, "user", "u", "", "User ID (required)")
	predictionsCmd.Flags().StringVar(&predictionsUrgency, "urgency", "", "Filter by urgency: urgent, this_week, later")
	predictionsCmd.Flags().StringVar(&predictionsMinConfidence, "min-confidence", "", "Minimum confidence: low, medium, high")
	predictionsCmd.Flags().IntVar(&predictionsLimit, "limit", service.DefaultListLimit, "Maximum predictions to print")
	predictionsCmd.Flags().BoolVar(&predictionsList, "shopping-list", false, "Print the bucketed shopping list instead")
	_ = predictionsCmd.MarkFlagRequired("user")
}

func runPredictions(cmd *cobra.Command, args []string) error {
	filter := models.PredictionFilter{Limit: predictionsLimit}
	if predictionsUrgency != "" {
		u, ok := models.ParseUrgency(predictionsUrgency)
		if !ok {
			return fmt.Errorf("invalid --urgency %q", predictionsUrgency)
		}
		filter.Urgency = &u
	}
	if predictionsMinConfidence != "" {
		c, ok := models.ParseConfidence(predictionsMinConfidence)
		if !ok {
			return fmt.Errorf("invalid --min-confidence %q", predictionsMinConfidence)
		}
		filter.MinConfidence = &c
	}

	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer syncLogger()

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if predictionsList {
		list, err := a.service.GetShoppingList(ctx, predictionsUser)
		if err != nil {
			return err
		}
		return enc.Encode(list)
	}

	predictions, err := a.service.ListPredictions(ctx, predictionsUser, filter)
	if err != nil {
		return err
	}
	return enc.Encode(predictions)
}
